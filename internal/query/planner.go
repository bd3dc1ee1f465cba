package query

import (
	"strings"

	"github.com/fxsearch/fxs/internal/types"
)

// StepKind discriminates narrowing-plan steps.
type StepKind int

const (
	StepTrigramIntersect StepKind = iota
	StepTokenLookup
	StepUnion
	StepIntersect
	StepExclude
	StepFilter
)

// Step is one node of the narrowing plan (spec.md §4.9).
type Step struct {
	Kind     StepKind
	Trigrams []types.Trigram // StepTrigramIntersect
	Token    string          // StepTokenLookup
	Sub      []*Step         // StepUnion / StepIntersect
	Excluded *Step           // StepExclude

	// PhraseText is set only on the step lowered from a KindPhrase node.
	// Phrase verification is already case-sensitive exact-substring
	// matching, so the executor can answer it directly off the C7 suffix
	// array when one is built, skipping the case-variant trigram union
	// below entirely. Empty means "no suffix-array shortcut available
	// for this step" (every non-phrase step); any non-empty phrase sets
	// it, including one shorter than a trigram.
	PhraseText string
}

// Plan is the planner's full output: a narrowing plan to shrink the
// candidate set and the original verification tree to recheck it against
// file content.
type Plan struct {
	Narrowing    *Step // nil means "no narrowing, scan valid_doc_ids()"
	Verification *Node
	Query        *Query
}

// regexStopBytes are the characters that end a literal prefix extraction
// from a regex pattern (spec.md §4.9).
const regexStopBytes = ".*+?[](){}|$"

// PlanQuery lowers q into a narrowing plan and carries q's own verification
// tree through unchanged (the planner never emits a plan that can match
// more documents than the verification predicate would pass).
func PlanQuery(q *Query) *Plan {
	narrowing := lower(q.Root)
	if q.HasFilters() {
		filterStep := &Step{Kind: StepFilter}
		if narrowing == nil {
			narrowing = filterStep
		} else {
			narrowing = &Step{Kind: StepIntersect, Sub: []*Step{narrowing, filterStep}}
		}
	}
	return &Plan{Narrowing: narrowing, Verification: q.Root, Query: q}
}

func lower(n *Node) *Step {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindEmpty:
		return nil
	case KindLiteral, KindBoostedLiteral:
		return lowerTermText(n.Text)
	case KindPhrase:
		step := lowerTermText(n.Text)
		if step != nil {
			step.PhraseText = n.Text
		}
		return step
	case KindRegex:
		prefix := literalPrefix(n.Text)
		if len(prefix) >= 3 {
			return lowerTermText(prefix)
		}
		return nil
	case KindNear:
		var subs []*Step
		for _, t := range n.NearTerms {
			if s := lowerTermText(t); s != nil {
				subs = append(subs, s)
			}
		}
		if len(subs) == 0 {
			return nil
		}
		if len(subs) == 1 {
			return subs[0]
		}
		return &Step{Kind: StepIntersect, Sub: subs}
	case KindAnd:
		var subs []*Step
		for _, c := range n.Children {
			if s := lower(c); s != nil {
				subs = append(subs, s)
			}
		}
		if len(subs) == 0 {
			return nil
		}
		if len(subs) == 1 {
			return subs[0]
		}
		return &Step{Kind: StepIntersect, Sub: subs}
	case KindOr:
		var subs []*Step
		for _, c := range n.Children {
			s := lower(c)
			if s == nil {
				// one OR branch has no narrowing step (e.g. a bare regex
				// with no literal prefix): the union can't be bounded any
				// tighter than "all valid documents", so no narrowing at
				// all is emitted for the whole OR.
				return nil
			}
			subs = append(subs, s)
		}
		return &Step{Kind: StepUnion, Sub: subs}
	case KindNot:
		// Not alone narrows nothing (absence of a term can't shrink a
		// candidate set); it only matters combined with a sibling via And,
		// which is handled above.
		return nil
	}
	return nil
}

// lowerTermText lowers one literal/phrase string into TrigramIntersect
// (≥3 bytes) or TokenLookup (<3 bytes) steps, per spec.md §4.9. Because
// the trigram dictionary stores raw case-sensitive bytes while Literal
// verification is case-insensitive, this narrows by the union of three
// candidate sets, one per case variant (original-case, all-lowercase,
// all-uppercase) — each variant's own trigrams must all co-occur in a
// document for that variant's branch to match, and a document qualifies
// if any branch does. Flattening every variant's trigrams into one
// intersect would wrongly require a single document to contain
// lowercase, uppercase, and original-case trigrams simultaneously. This
// is a documented best-effort narrowing that may under-narrow on mixed
// internal case but never drops a document the verifier would accept for
// a fully-upper or fully-lower occurrence (see DESIGN.md).
func lowerTermText(text string) *Step {
	if len(text) >= 3 {
		variants := map[string]bool{text: true, strings.ToLower(text): true, strings.ToUpper(text): true}
		var branches []*Step
		for v := range variants {
			b := []byte(v)
			var trigrams []types.Trigram
			for i := 0; i+2 < len(b); i++ {
				trigrams = append(trigrams, types.PackTrigram(b[i], b[i+1], b[i+2]))
			}
			if len(trigrams) > 0 {
				branches = append(branches, &Step{Kind: StepTrigramIntersect, Trigrams: trigrams})
			}
		}
		if len(branches) == 1 {
			return branches[0]
		}
		if len(branches) > 1 {
			return &Step{Kind: StepUnion, Sub: branches}
		}
	}
	if text == "" {
		return nil
	}
	return &Step{Kind: StepTokenLookup, Token: strings.ToLower(text)}
}

// literalPrefix extracts the literal run at the start of a regex pattern,
// stopping at the first metacharacter or backslash escape (spec.md §4.9:
// "non-identifier escapes" stop extraction; treating every escape as a
// stop point is the conservative reading, since under-extracting only
// shrinks the narrowing hint and never invalidates it). A leading '^' is
// consumed as an anchor hint only.
func literalPrefix(pattern string) string {
	pattern = strings.TrimPrefix(pattern, "^")
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '\\' || strings.IndexByte(regexStopBytes, c) >= 0 {
			break
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
