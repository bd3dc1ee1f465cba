package query

import (
	"container/heap"
	"os"
	"regexp"
	"time"

	"github.com/fxsearch/fxs/internal/indexmeta"
	"github.com/fxsearch/fxs/internal/types"
)

// container/heap backs both priority queues below; no example repo in
// the pack imports a third-party heap library, so this stays stdlib.

// candidate is one doc-id pending verification in the WAND pipeline.
type candidate struct {
	docID types.DocId
	path  string
	doc   *types.Document
	upper float64
}

// upperHeap is a max-heap of candidates ordered by upper-bound score.
type upperHeap []candidate

func (h upperHeap) Len() int            { return len(h) }
func (h upperHeap) Less(i, j int) bool  { return h[i].upper > h[j].upper }
func (h upperHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *upperHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *upperHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// resultHeap is a min-heap of Match by score, capped at K, used to track
// the current top-K threshold theta.
type resultHeap []Match

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(Match)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ExecuteTopK runs the narrow → WAND-pruned-verify pipeline described in
// spec.md §4.10.4. It is equivalent to Execute followed by a sort and
// truncation to limit, but avoids verifying (reading + scoring) every
// candidate when limit is small relative to the candidate set.
func (e *Executor) ExecuteTopK(q *Query, limit int) ([]Match, error) {
	if limit <= 0 {
		return e.Execute(q)
	}
	if q.Sort == "recency" || q.Sort == "path" {
		// score pruning cannot pick the first limit results of these orders
		limited := *q
		limited.Top = limit
		return e.Execute(&limited)
	}

	plan := PlanQuery(q)
	ctx := &execContext{query: q}

	candidates, err := e.narrow(ctx, plan)
	if err != nil {
		return nil, err
	}
	compiledRegex := compileRegexNodes(plan.Verification)

	now := e.Now
	if now.IsZero() {
		now = time.Now()
	}
	weights := e.Reader.Meta.Weights

	boost := boostProduct(plan.Verification)
	upper := &upperHeap{}
	heap.Init(upper)
	for _, docID := range candidates.ToSlice() {
		doc, ok := e.Reader.GetDocument(docID)
		if !ok || !doc.Flags.Valid() {
			continue
		}
		path, ok := e.Reader.GetPath(doc)
		if !ok {
			continue
		}
		ub := upperBoundScore(pathDepth(path), doc.MtimeNs, boost, now, weights)
		heap.Push(upper, candidate{docID: docID, path: path, doc: doc, upper: ub})
	}

	results := &resultHeap{}
	heap.Init(results)

	for upper.Len() > 0 {
		theta := 0.0
		if results.Len() >= limit {
			theta = (*results)[0].Score
		}
		top := (*upper)[0]
		if results.Len() >= limit && top.upper <= theta {
			break
		}
		heap.Pop(upper)

		ms, err := e.verifyOne(top, plan, compiledRegex, weights, now)
		if err != nil {
			return nil, err
		}
		for _, m := range ms {
			if results.Len() < limit {
				heap.Push(results, m)
			} else if m.Score > (*results)[0].Score {
				heap.Pop(results)
				heap.Push(results, m)
			}
		}
	}

	out := make([]Match, len(*results))
	copy(out, *results)
	sortMatches(out, q.Sort, e.Reader)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (e *Executor) verifyOne(c candidate, plan *Plan, regexes map[*Node]*regexp.Regexp, weights indexmeta.Weights, now time.Time) ([]Match, error) {
	fullPath, _ := e.Reader.GetFullPath(c.doc)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, nil
	}
	fileMatches := evaluate(plan.Verification, content, regexes)
	fileMatches = filterByLine(fileMatches, plan.Query.Line)
	if len(fileMatches) == 0 {
		return nil, nil
	}
	sc := buildScoreContext(plan.Verification, c.path, c.doc, fileMatches, now)
	score := Score(sc, weights)

	out := make([]Match, 0, len(fileMatches))
	for _, fm := range fileMatches {
		out = append(out, Match{
			DocID: c.docID, Path: c.path, Line: fm.Line, Start: fm.Start, End: fm.End,
			Content: fm.Content, Score: score,
		})
	}
	return out, nil
}
