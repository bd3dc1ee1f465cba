// Package analysis implements the text analyzer (C1): byte-level trigram
// extraction, identifier tokenization, line-offset mapping, and the
// binary/minified detection that gates what gets indexed at all.
package analysis

import (
	"github.com/fxsearch/fxs/internal/types"
)

const (
	binarySampleSize    = 8 * 1024
	minifiedSampleSize  = 64 * 1024
	minifiedMaxLine     = 1000
	minifiedAvgLine     = 500
	singleLineMinified  = 10 * 1024
	tokenMinLen         = 2
	tokenMaxLen         = 128
)

// Result is the analyzer's output for one file: everything the segment
// writer needs to fold the file into the in-memory posting maps.
type Result struct {
	Trigrams    []types.Trigram
	Tokens      []string
	LineOffsets []uint32
	IsBinary    bool
	IsMinified  bool
	Stats       Stats
}

// Stats carries lightweight per-file counts; neither the builder nor its
// logging reads them.
type Stats struct {
	BytesScanned int
	TrigramCount int
	TokenCount   int
}

// Analyze runs the full C1 pipeline over raw file bytes. Callers should
// check IsBinary first: a binary result carries no trigrams, tokens, or
// line offsets and must not be fed to the segment writer.
func Analyze(content []byte) Result {
	if IsBinary(content) {
		return Result{IsBinary: true}
	}
	trigramSet := extractTrigrams(content)
	trigrams := make([]types.Trigram, 0, len(trigramSet))
	for tg := range trigramSet {
		trigrams = append(trigrams, tg)
	}
	tokenSet := extractTokens(content)
	tokens := make([]string, 0, len(tokenSet))
	for tok := range tokenSet {
		tokens = append(tokens, tok)
	}
	return Result{
		Trigrams:    trigrams,
		Tokens:      tokens,
		LineOffsets: lineOffsets(content),
		IsMinified:  IsMinified(content),
		Stats: Stats{
			BytesScanned: len(content),
			TrigramCount: len(trigrams),
			TokenCount:   len(tokens),
		},
	}
}

// IsBinary inspects the first 8 KiB: any NUL byte, or more than one eighth
// control-class bytes (below 0x20, excluding tab/LF/CR), declares the file
// binary.
func IsBinary(content []byte) bool {
	sample := content
	if len(sample) > binarySampleSize {
		sample = sample[:binarySampleSize]
	}
	if len(sample) == 0 {
		return false
	}
	control := 0
	for _, b := range sample {
		if b == 0 {
			return true
		}
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			control++
		}
	}
	return control*8 > len(sample)
}

// IsMinified scans up to 64 KiB and flags either a very long max line with
// a high average line length, or a single line exceeding 10 KiB.
func IsMinified(content []byte) bool {
	sample := content
	if len(sample) > minifiedSampleSize {
		sample = sample[:minifiedSampleSize]
	}
	if len(sample) == 0 {
		return false
	}
	maxLine, lineCount, totalLen := 0, 0, 0
	start := 0
	for i, b := range sample {
		if b == '\n' {
			ln := i - start
			if ln > maxLine {
				maxLine = ln
			}
			totalLen += ln
			lineCount++
			start = i + 1
		}
	}
	// trailing partial line (or the whole sample if there was no newline).
	tail := len(sample) - start
	if tail > maxLine {
		maxLine = tail
	}
	totalLen += tail
	lineCount++

	if lineCount == 1 && len(sample) > singleLineMinified {
		return true
	}
	avg := totalLen / lineCount
	return maxLine > minifiedMaxLine && avg > minifiedAvgLine
}

// extractTrigrams slides a 3-byte window over raw bytes. Files under 3
// bytes yield nothing.
func extractTrigrams(content []byte) map[types.Trigram]struct{} {
	set := make(map[types.Trigram]struct{})
	if len(content) < 3 {
		return set
	}
	for i := 0; i+2 < len(content); i++ {
		set[types.PackTrigram(content[i], content[i+1], content[i+2])] = struct{}{}
	}
	return set
}

func isAlnum(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
func isLower(b byte) bool { return b >= 'a' && b <= 'z' }

// extractTokens splits on underscore, non-alphanumeric bytes, and
// lowercase->uppercase transitions (camelCase boundaries). Non-ASCII bytes
// close the current token without starting one of their own.
func extractTokens(content []byte) map[string]struct{} {
	set := make(map[string]struct{})
	start := -1
	var lastWasLower bool

	flush := func(end int) {
		if start < 0 {
			return
		}
		tok := content[start:end]
		if len(tok) >= tokenMinLen && len(tok) <= tokenMaxLen {
			set[lowerASCII(tok)] = struct{}{}
		}
		start = -1
	}

	for i := 0; i < len(content); i++ {
		b := content[i]
		if !isAlnum(b) || b >= 0x80 {
			flush(i)
			lastWasLower = false
			continue
		}
		if start < 0 {
			start = i
			lastWasLower = isLower(b)
			continue
		}
		if lastWasLower && isUpper(b) {
			flush(i)
			start = i
		}
		lastWasLower = isLower(b)
	}
	flush(len(content))
	return set
}

func lowerASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// lineOffsets records offset 0, then every byte immediately following a
// '\n', excluding any position at end-of-file.
func lineOffsets(content []byte) []uint32 {
	offsets := []uint32{0}
	for i, b := range content {
		if b == '\n' && i+1 < len(content) {
			offsets = append(offsets, uint32(i+1))
		}
	}
	return offsets
}
