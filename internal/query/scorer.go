package query

import (
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fxsearch/fxs/internal/indexmeta"
	"github.com/fxsearch/fxs/internal/types"
)

// fileMatch is one verified hit within a single file, before scoring.
type fileMatch struct {
	Line    int
	Start   int
	End     int
	Content string
}

// evaluate walks the verification tree against one file's content,
// returning every match produced by the tree's root. Lines are split once
// and reused across every leaf predicate, satisfying the "read each file
// at most once" invariant at the executor level (evaluate itself never
// touches disk).
func evaluate(n *Node, content []byte, regexes map[*Node]*regexp.Regexp) []fileMatch {
	lines := splitLines(content)
	return evalNode(n, lines, regexes)
}

type textLine struct {
	num  int // 1-based
	text string
}

func splitLines(content []byte) []textLine {
	s := string(content)
	parts := strings.Split(s, "\n")
	lines := make([]textLine, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSuffix(p, "\r")
		lines = append(lines, textLine{num: i + 1, text: p})
	}
	return lines
}

func evalNode(n *Node, lines []textLine, regexes map[*Node]*regexp.Regexp) []fileMatch {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindEmpty:
		return nil
	case KindLiteral, KindBoostedLiteral:
		return matchLiteral(n.Text, lines, true)
	case KindPhrase:
		return matchLiteral(n.Text, lines, false)
	case KindRegex:
		re := regexes[n]
		if re == nil {
			return nil
		}
		return matchRegex(re, lines)
	case KindNear:
		return matchNear(n, lines)
	case KindAnd:
		var all []fileMatch
		for _, c := range n.Children {
			m := evalNode(c, lines, regexes)
			if len(m) == 0 {
				return nil
			}
			all = append(all, m...)
		}
		return all
	case KindOr:
		var all []fileMatch
		for _, c := range n.Children {
			all = append(all, evalNode(c, lines, regexes)...)
		}
		return all
	case KindNot:
		if len(evalNode(n.Children[0], lines, regexes)) == 0 {
			return []fileMatch{{Line: 1, Start: 0, End: 0, Content: firstLineText(lines)}}
		}
		return nil
	}
	return nil
}

func firstLineText(lines []textLine) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0].text
}

func matchLiteral(text string, lines []textLine, caseInsensitive bool) []fileMatch {
	if text == "" {
		return nil
	}
	needle := text
	if caseInsensitive {
		needle = strings.ToLower(text)
	}
	var out []fileMatch
	for _, l := range lines {
		hay := l.text
		if caseInsensitive {
			hay = strings.ToLower(hay)
		}
		idx := strings.Index(hay, needle)
		if idx < 0 {
			continue
		}
		out = append(out, fileMatch{Line: l.num, Start: idx, End: idx + len(text), Content: l.text})
	}
	return out
}

func matchRegex(re *regexp.Regexp, lines []textLine) []fileMatch {
	var out []fileMatch
	for _, l := range lines {
		loc := re.FindStringIndex(l.text)
		if loc == nil {
			continue
		}
		out = append(out, fileMatch{Line: l.num, Start: loc[0], End: loc[1], Content: l.text})
	}
	return out
}

// matchNear requires every term to occur on some line, with at least one
// choice of per-term line positions within n.NearDistance of each other.
func matchNear(n *Node, lines []textLine) []fileMatch {
	perTerm := make([][]int, len(n.NearTerms))
	for i, t := range n.NearTerms {
		needle := strings.ToLower(t)
		for _, l := range lines {
			if strings.Contains(strings.ToLower(l.text), needle) {
				perTerm[i] = append(perTerm[i], l.num)
			}
		}
		if len(perTerm[i]) == 0 {
			return nil
		}
	}
	best := -1
	var bestLines []int
	var rec func(idx int, chosen []int)
	rec = func(idx int, chosen []int) {
		if idx == len(perTerm) {
			mn, mx := chosen[0], chosen[0]
			for _, v := range chosen {
				if v < mn {
					mn = v
				}
				if v > mx {
					mx = v
				}
			}
			spread := mx - mn
			if spread <= n.NearDistance && (best == -1 || spread < best) {
				best = spread
				bestLines = append([]int(nil), chosen...)
			}
			return
		}
		for _, ln := range perTerm[idx] {
			next := make([]int, len(chosen)+1)
			copy(next, chosen)
			next[len(chosen)] = ln
			rec(idx+1, next)
		}
	}
	rec(0, nil)
	if best == -1 {
		return nil
	}
	minLine := bestLines[0]
	for _, v := range bestLines {
		if v < minLine {
			minLine = v
		}
	}
	var lineText string
	for _, l := range lines {
		if l.num == minLine {
			lineText = l.text
			break
		}
	}
	return []fileMatch{{Line: minLine, Start: 0, End: 0, Content: lineText}}
}

// ScoreContext is the per-document input to the score formula (spec.md
// §4.10.3).
type ScoreContext struct {
	MatchCount    int
	FilenameMatch bool
	Depth         int
	MtimeNs       uint64
	Boost         float64
	Now           time.Time
}

// buildScoreContext derives a ScoreContext from the verification tree, the
// file's matches, and its document record.
func buildScoreContext(root *Node, path string, doc *types.Document, matches []fileMatch, now time.Time) ScoreContext {
	terms := searchTerms(root)
	base := strings.ToLower(filepath.Base(path))
	filenameMatch := false
	for _, t := range terms {
		if strings.Contains(base, t) {
			filenameMatch = true
			break
		}
	}
	return ScoreContext{
		MatchCount:    len(matches),
		FilenameMatch: filenameMatch,
		Depth:         pathDepth(path),
		MtimeNs:       doc.MtimeNs,
		Boost:         boostProduct(root),
		Now:           now,
	}
}

func pathDepth(path string) int {
	path = strings.Trim(filepath.ToSlash(path), "/")
	if path == "" {
		return 0
	}
	return len(strings.Split(path, "/"))
}

// searchTerms collects the literal words of length >= 2 from the
// verification tree, excluding anything under a Not subtree (spec.md
// §4.10.3).
func searchTerms(n *Node) []string {
	var out []string
	var walk func(*Node, bool)
	walk = func(n *Node, negated bool) {
		if n == nil {
			return
		}
		switch n.Kind {
		case KindNot:
			walk(n.Children[0], true)
			return
		case KindLiteral, KindBoostedLiteral, KindPhrase:
			if !negated {
				for _, w := range strings.Fields(n.Text) {
					w = strings.ToLower(w)
					if len(w) >= 2 {
						out = append(out, w)
					}
				}
			}
		case KindNear:
			if !negated {
				for _, t := range n.NearTerms {
					t = strings.ToLower(t)
					if len(t) >= 2 {
						out = append(out, t)
					}
				}
			}
		}
		for _, c := range n.Children {
			walk(c, negated)
		}
	}
	walk(n, false)
	return out
}

// boostProduct multiplies every BoostedLiteral's boost applicable to the
// document (i.e. every BoostedLiteral not under a Not subtree).
func boostProduct(n *Node) float64 {
	product := 1.0
	var walk func(*Node, bool)
	walk = func(n *Node, negated bool) {
		if n == nil {
			return
		}
		if n.Kind == KindNot {
			walk(n.Children[0], true)
			return
		}
		if n.Kind == KindBoostedLiteral && !negated {
			product *= n.Boost
		}
		for _, c := range n.Children {
			walk(c, negated)
		}
	}
	walk(n, false)
	return product
}

// Score implements the exact formula from spec.md §4.10.3.
func Score(ctx ScoreContext, w indexmeta.Weights) float64 {
	base := math.Log2(float64(ctx.MatchCount)+1) * w.Match
	if ctx.FilenameMatch {
		base += w.Filename
	}
	base -= math.Min(float64(ctx.Depth)*w.Depth, w.DepthMax)

	mtime := time.Unix(0, int64(ctx.MtimeNs))
	ageSecs := ctx.Now.Sub(mtime).Seconds()
	if w.RecencyHalfLife > 0 {
		base += w.RecencyMax * math.Exp2(-ageSecs/w.RecencyHalfLife)
	}

	score := base * ctx.Boost
	return math.Max(0.1, score)
}

// upperBoundScore computes the provable upper bound used by the WAND
// top-K pipeline (spec.md §4.10.4): max_matches=100, filename_match
// assumed true, actual depth/mtime/boost.
func upperBoundScore(depth int, mtimeNs uint64, boost float64, now time.Time, w indexmeta.Weights) float64 {
	ctx := ScoreContext{
		MatchCount:    100,
		FilenameMatch: true,
		Depth:         depth,
		MtimeNs:       mtimeNs,
		Boost:         boost,
		Now:           now,
	}
	return Score(ctx, w)
}
