// Package query implements the query parser (C8), planner (C9), executor
// (C10), and scorer/top-K (C11): parsing a query string into an AST,
// lowering it to a narrowing plan and a verification tree, executing both
// against an index reader, and ranking the results.
package query

// Kind discriminates verification-tree node types.
type Kind int

const (
	KindEmpty Kind = iota
	KindLiteral
	KindBoostedLiteral
	KindPhrase
	KindRegex
	KindNear
	KindAnd
	KindOr
	KindNot
)

// Node is both the parsed AST and (after trivial simplification by the
// parser itself) the verification tree the executor walks. Field use
// depends on Kind:
//   - Literal / BoostedLiteral / Phrase: Text
//   - BoostedLiteral: additionally Boost
//   - Regex: Text holds the raw pattern source
//   - Near: NearTerms, NearDistance
//   - And / Or / Not: Children (Not uses Children[0])
type Node struct {
	Kind         Kind
	Text         string
	Boost        float64
	NearTerms    []string
	NearDistance int
	Children     []*Node
}

func emptyNode() *Node { return &Node{Kind: KindEmpty} }

// SizeFilter constrains document size. Op is ">" or "<"; zero value Op
// means "no size filter".
type SizeFilter struct {
	Op    string
	Bytes uint64
}

// MtimeFilter constrains document modification time. Op is ">", "<", or
// "=" (the YYYY-MM-DD single-day-window form); zero value Op means "no
// mtime filter". StartUnix/EndUnix bound the day window for Op=="=".
type MtimeFilter struct {
	Op        string
	Unix      int64
	StartUnix int64
	EndUnix   int64
}

// LineFilter constrains which line(s) a match must fall on. Zero value
// (Low==0 && High==0) means "no line filter".
type LineFilter struct {
	Low  int
	High int
}

// Query is the parser's output: the verification tree (Root) plus the
// filter/option state accumulated from field terms (spec.md §4.8).
type Query struct {
	Root *Node

	PathGlob string
	Filename string
	Ext      string
	Lang     string
	Size     SizeFilter
	Mtime    MtimeFilter
	Line     LineFilter

	Sort string // "score" (default), "recency", "path"
	Top  int    // 0 = unlimited
}

// HasFilters reports whether any field-derived filter is in force.
func (q *Query) HasFilters() bool {
	return q.PathGlob != "" || q.Filename != "" || q.Ext != "" || q.Lang != "" ||
		q.Size.Op != "" || q.Mtime.Op != "" || q.Line.Low != 0 || q.Line.High != 0
}
