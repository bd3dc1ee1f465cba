package query

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fxsearch/fxs/internal/bitmap"
	"github.com/fxsearch/fxs/internal/indexreader"
	"github.com/fxsearch/fxs/internal/types"
)

// execContext threads the active query through a narrowing-step walk; the
// only step that needs it is StepFilter.
type execContext struct {
	query *Query
}

// Match is one verified hit, mirroring spec.md §6.2's SearchMatch.
type Match struct {
	DocID   types.DocId
	Path    string
	Line    int
	Start   int
	End     int
	Content string
	Score   float64
}

// Executor runs a Plan against an index reader, narrowing to a candidate
// set and then verifying each candidate's file content (spec.md §4.10).
type Executor struct {
	Reader *indexreader.Reader
	Now    time.Time // overridable for deterministic tests; zero means time.Now()
}

func NewExecutor(r *indexreader.Reader) *Executor { return &Executor{Reader: r} }

// Execute runs the full narrow → verify → score → sort → truncate
// pipeline for one parsed query.
func (e *Executor) Execute(q *Query) ([]Match, error) {
	plan := PlanQuery(q)
	ctx := &execContext{query: q}

	candidates, err := e.narrow(ctx, plan)
	if err != nil {
		return nil, err
	}

	compiledRegex := compileRegexNodes(plan.Verification)

	var matches []Match
	for _, docID := range candidates.ToSlice() {
		doc, ok := e.Reader.GetDocument(docID)
		if !ok || !doc.Flags.Valid() {
			continue
		}
		path, ok := e.Reader.GetPath(doc)
		if !ok {
			continue
		}
		fullPath, _ := e.Reader.GetFullPath(doc)
		content, err := os.ReadFile(fullPath)
		if err != nil {
			continue // unreadable at query time: skip, per spec.md §7 skip discipline
		}

		fileMatches := evaluate(plan.Verification, content, compiledRegex)
		fileMatches = filterByLine(fileMatches, q.Line)
		if len(fileMatches) == 0 {
			continue
		}

		now := e.Now
		if now.IsZero() {
			now = time.Now()
		}
		sc := buildScoreContext(plan.Verification, path, doc, fileMatches, now)
		score := Score(sc, e.Reader.Meta.Weights)

		for _, fm := range fileMatches {
			matches = append(matches, Match{
				DocID: docID, Path: path, Line: fm.Line, Start: fm.Start, End: fm.End,
				Content: fm.Content, Score: score,
			})
		}
	}

	sortMatches(matches, q.Sort, e.Reader)

	if q.Top > 0 && len(matches) > q.Top {
		matches = matches[:q.Top]
	}
	return matches, nil
}

func (e *Executor) narrow(ctx *execContext, plan *Plan) (*bitmap.Bitmap, error) {
	if plan.Narrowing == nil {
		return e.Reader.ValidDocIds(), nil
	}
	set, err := e.execStep(ctx, plan.Narrowing)
	if err != nil {
		return nil, err
	}
	return bitmap.Intersect(set, e.Reader.ValidDocIds()), nil
}

func (e *Executor) execStep(ctx *execContext, s *Step) (*bitmap.Bitmap, error) {
	if s.PhraseText != "" {
		if docs, ok := e.Reader.SearchLiteralExact(s.PhraseText); ok {
			return docs, nil
		}
		// no suffix array built for this index: fall straight through to
		// the trigram-based narrowing this step also carries.
	}
	switch s.Kind {
	case StepTrigramIntersect:
		var maps []*bitmap.Bitmap
		for _, tg := range s.Trigrams {
			if e.Reader.IsStopGram(tg) {
				continue
			}
			maps = append(maps, e.Reader.GetTrigramDocs(tg))
		}
		if len(maps) == 0 {
			return e.Reader.ValidDocIds(), nil
		}
		bitmap.SortByPopulationAscending(maps)
		return bitmap.Intersect(maps...), nil
	case StepTokenLookup:
		return e.Reader.GetTokenDocs(s.Token), nil
	case StepUnion:
		var maps []*bitmap.Bitmap
		for _, sub := range s.Sub {
			m, err := e.execStep(ctx, sub)
			if err != nil {
				return nil, err
			}
			maps = append(maps, m)
		}
		return bitmap.Union(maps...), nil
	case StepIntersect:
		var maps []*bitmap.Bitmap
		for _, sub := range s.Sub {
			m, err := e.execStep(ctx, sub)
			if err != nil {
				return nil, err
			}
			maps = append(maps, m)
		}
		bitmap.SortByPopulationAscending(maps)
		return bitmap.Intersect(maps...), nil
	case StepExclude:
		base, err := e.execStep(ctx, s.Sub[0])
		if err != nil {
			return nil, err
		}
		excl, err := e.execStep(ctx, s.Excluded)
		if err != nil {
			return nil, err
		}
		return bitmap.Exclude(base, excl), nil
	case StepFilter:
		return e.applyFilter(ctx, nil), nil
	}
	return bitmap.New(), nil
}

// applyFilter walks every document (or, if base is non-nil, only those in
// base) and keeps the ones passing the query's path/ext/lang/size/mtime
// filters. Tombstoned and stale documents are always dropped.
func (e *Executor) applyFilter(ctx *execContext, base *bitmap.Bitmap) *bitmap.Bitmap {
	out := bitmap.New()
	var ids []types.DocId
	if base != nil {
		ids = base.ToSlice()
	} else {
		ids = e.Reader.ValidDocIds().ToSlice()
	}
	for _, id := range ids {
		doc, ok := e.Reader.GetDocument(id)
		if !ok || !doc.Flags.Valid() {
			continue
		}
		path, ok := e.Reader.GetPath(doc)
		if !ok {
			continue
		}
		if !passesFilter(ctx.query, doc, path) {
			continue
		}
		out.Add(id)
	}
	return out
}

// filterByLine drops matches outside [Low, High] when a line: filter is in
// force (zero value means no filter).
func filterByLine(matches []fileMatch, lf LineFilter) []fileMatch {
	if lf.Low == 0 && lf.High == 0 {
		return matches
	}
	out := matches[:0]
	for _, m := range matches {
		if m.Line >= lf.Low && m.Line <= lf.High {
			out = append(out, m)
		}
	}
	return out
}

func passesFilter(q *Query, doc *types.Document, path string) bool {
	if q.PathGlob != "" {
		ok, err := doublestar.Match(q.PathGlob, path)
		if err != nil || !ok {
			return false
		}
	}
	if q.Filename != "" {
		if !strings.EqualFold(filepath.Base(path), q.Filename) {
			return false
		}
	}
	if q.Ext != "" {
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if !strings.EqualFold(ext, q.Ext) {
			return false
		}
	}
	if q.Lang != "" {
		lang, ok := types.ParseLanguage(q.Lang)
		if !ok || doc.Language != lang {
			return false
		}
	}
	if q.Size.Op != "" {
		switch q.Size.Op {
		case ">":
			if !(doc.Size > q.Size.Bytes) {
				return false
			}
		case "<":
			if !(doc.Size < q.Size.Bytes) {
				return false
			}
		}
	}
	if q.Mtime.Op != "" {
		mt := int64(doc.MtimeNs / 1e9)
		switch q.Mtime.Op {
		case ">":
			if !(mt > q.Mtime.Unix) {
				return false
			}
		case "<":
			if !(mt < q.Mtime.Unix) {
				return false
			}
		case "=":
			if !(mt >= q.Mtime.StartUnix && mt < q.Mtime.EndUnix) {
				return false
			}
		}
	}
	return true
}

// compileRegexNodes compiles every KindRegex node in the verification
// tree up front. A compile failure never aborts the walk: per spec.md
// §7, "the offending verification subtree produces zero matches for
// every document", so a failing node is simply left out of the returned
// map and evalNode's re == nil case turns it into a silent no-match,
// leaving any sibling literal/phrase terms free to still match.
func compileRegexNodes(n *Node) map[*Node]*regexp.Regexp {
	out := make(map[*Node]*regexp.Regexp)
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Kind == KindRegex {
			if re, err := regexp.Compile(n.Text); err == nil {
				out[n] = re
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

func sortMatches(matches []Match, sortMode string, r *indexreader.Reader) {
	switch sortMode {
	case "recency":
		sort.SliceStable(matches, func(i, j int) bool {
			di, _ := r.GetDocument(matches[i].DocID)
			dj, _ := r.GetDocument(matches[j].DocID)
			if di == nil || dj == nil {
				return false
			}
			return di.MtimeNs > dj.MtimeNs
		})
	case "path":
		sort.SliceStable(matches, func(i, j int) bool {
			if matches[i].Path != matches[j].Path {
				return matches[i].Path < matches[j].Path
			}
			return matches[i].Line < matches[j].Line
		})
	default:
		sort.SliceStable(matches, func(i, j int) bool {
			if matches[i].Score != matches[j].Score {
				return matches[i].Score > matches[j].Score
			}
			if matches[i].Path != matches[j].Path {
				return matches[i].Path < matches[j].Path
			}
			return matches[i].Line < matches[j].Line
		})
	}
}
