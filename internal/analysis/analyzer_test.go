package analysis

import (
	"strings"
	"testing"

	"github.com/fxsearch/fxs/internal/types"
	"github.com/stretchr/testify/require"
)

func TestIsBinaryNulByte(t *testing.T) {
	require.True(t, IsBinary([]byte("hello\x00world")))
	require.False(t, IsBinary([]byte("hello world\n")))
}

func TestIsMinified(t *testing.T) {
	longLine := strings.Repeat("x", 20000)
	require.True(t, IsMinified([]byte(longLine)))
	require.False(t, IsMinified([]byte("short\nlines\nhere\n")))
}

func TestExtractTrigramsShortFile(t *testing.T) {
	r := Analyze([]byte("ab"))
	require.Empty(t, r.Trigrams)
}

func TestExtractTrigramsBasic(t *testing.T) {
	r := Analyze([]byte("abcd"))
	want := map[types.Trigram]bool{
		types.PackTrigram('a', 'b', 'c'): true,
		types.PackTrigram('b', 'c', 'd'): true,
	}
	require.Len(t, r.Trigrams, 2)
	for _, tg := range r.Trigrams {
		require.True(t, want[tg])
	}
}

func TestTokenizationCamelAndSnake(t *testing.T) {
	r := Analyze([]byte("fooBarBaz some_other_name X"))
	tokens := map[string]bool{}
	for _, tk := range r.Tokens {
		tokens[tk] = true
	}
	require.True(t, tokens["foo"])
	require.True(t, tokens["bar"])
	require.True(t, tokens["baz"])
	require.True(t, tokens["some"])
	require.True(t, tokens["other"])
	require.True(t, tokens["name"])
	require.False(t, tokens["x"]) // length 1, dropped
}

func TestTokenizationUppercaseRunKeptWhole(t *testing.T) {
	r := Analyze([]byte("HTTPServer"))
	tokens := map[string]bool{}
	for _, tk := range r.Tokens {
		tokens[tk] = true
	}
	require.True(t, tokens["httpserver"])
}

func TestLineOffsets(t *testing.T) {
	r := Analyze([]byte("abc\ndef\nghi"))
	require.Equal(t, []uint32{0, 4, 8}, r.LineOffsets)
}

func TestLineOffsetsNoTrailingPastEOF(t *testing.T) {
	r := Analyze([]byte("abc\n"))
	require.Equal(t, []uint32{0}, r.LineOffsets)
}
