package query

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fxsearch/fxs/internal/indexmeta"
	"github.com/fxsearch/fxs/internal/indexreader"
	"github.com/fxsearch/fxs/internal/segment"
	"github.com/fxsearch/fxs/internal/suffixarray"
	"github.com/fxsearch/fxs/internal/types"
)

// trigramsOf extracts raw case-sensitive trigrams the same way the
// analyzer does, so the narrowing phase in these tests behaves like it
// would against a real build.
func trigramsOf(content []byte) []types.Trigram {
	var out []types.Trigram
	for i := 0; i+2 < len(content); i++ {
		out = append(out, types.PackTrigram(content[i], content[i+1], content[i+2]))
	}
	return out
}

// buildExecutorFixture writes real files under a root directory and a
// single-segment index describing them, so the executor can read content
// during verification the way it would against a live index.
func buildExecutorFixture(t *testing.T) *indexreader.Reader {
	t.Helper()
	return buildExecutorFixtureImpl(t, false)
}

// buildExecutorFixtureWithSuffixArray is buildExecutorFixture plus a C7
// suffix array built alongside the segment, for tests exercising the
// phrase exact-match shortcut in executor.go.
func buildExecutorFixtureWithSuffixArray(t *testing.T) *indexreader.Reader {
	t.Helper()
	return buildExecutorFixtureImpl(t, true)
}

func buildExecutorFixtureImpl(t *testing.T, withSuffixArray bool) *indexreader.Reader {
	t.Helper()
	root := t.TempDir()
	indexDir := t.TempDir()

	files := map[string]string{
		"pkg/widget.go": "package pkg\n\nfunc Hello() string {\n\treturn \"hello world\"\n}\n",
		"pkg/other.go":  "package pkg\n\nfunc Other() int {\n\treturn 42\n}\n",
		"cmd/hello/main.go": "package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n",
	}
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	w := segment.NewWriter(1, 0)
	var saInputs []suffixarray.BuildInput
	for _, rel := range []string{"pkg/widget.go", "pkg/other.go", "cmd/hello/main.go"} {
		info, err := os.Stat(filepath.Join(root, rel))
		require.NoError(t, err)
		content := []byte(files[rel])
		docID := w.AddProcessedFile(rel, uint64(info.Size()), uint64(info.ModTime().UnixNano()), types.LangGo, 0, trigramsOf(content), nil, []uint32{0})
		if withSuffixArray {
			saInputs = append(saInputs, suffixarray.BuildInput{DocID: uint32(docID), Content: content})
		}
	}
	_, err := w.Write(indexDir)
	require.NoError(t, err)
	if withSuffixArray {
		require.NoError(t, suffixarray.Build(w.SegmentDir(indexDir), saInputs, false))
	}

	meta := &indexmeta.Meta{
		Version:      indexmeta.CurrentVersion,
		RootPath:     root,
		DocCount:     3,
		SegmentCount: 1,
		BaseSegment:  1,
		Weights:      indexmeta.DefaultWeights(),
		CreatedAt:    time.Unix(0, 0).UTC(),
		UpdatedAt:    time.Unix(0, 0).UTC(),
	}
	require.NoError(t, indexmeta.Save(indexDir, meta))

	r, err := indexreader.Open(indexDir)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestExecuteRegexFindsMatches(t *testing.T) {
	r := buildExecutorFixture(t)
	e := NewExecutor(r)
	e.Now = time.Now()

	q := Parse(`re:/hello/`)
	matches, err := e.Execute(q)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		require.Contains(t, m.Content, "hello")
	}
}

func TestExecuteExtFilter(t *testing.T) {
	r := buildExecutorFixture(t)
	e := NewExecutor(r)
	e.Now = time.Now()

	q := Parse(`re:/func/ ext:go path:pkg/*`)
	matches, err := e.Execute(q)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		require.Contains(t, m.Path, "pkg/")
	}
}

// A regex contributes no search terms, so no filename bonus applies; both
// files only need a positive score.
func TestExecuteRegexMatchesScorePositive(t *testing.T) {
	r := buildExecutorFixture(t)
	e := NewExecutor(r)
	e.Now = time.Now()

	q := Parse(`re:/hello/`)
	matches, err := e.Execute(q)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	var fromHelloDir, fromWidget float64
	for _, m := range matches {
		if m.Path == "cmd/hello/main.go" {
			fromHelloDir = m.Score
		}
		if m.Path == "pkg/widget.go" {
			fromWidget = m.Score
		}
	}
	require.Greater(t, fromHelloDir, 0.0)
	require.Greater(t, fromWidget, 0.0)
}

func TestExecuteTopKMatchesExecuteOrdering(t *testing.T) {
	r := buildExecutorFixture(t)
	e := NewExecutor(r)
	e.Now = time.Now()

	q := Parse(`re:/func/`)
	all, err := e.Execute(q)
	require.NoError(t, err)

	top, err := e.ExecuteTopK(Parse(`re:/func/`), 2)
	require.NoError(t, err)
	require.LessOrEqual(t, len(top), 2)
	if len(all) >= 2 {
		require.Equal(t, all[0].Score, top[0].Score)
	}
}

func TestExecutePhraseUsesSuffixArrayWhenAvailable(t *testing.T) {
	r := buildExecutorFixtureWithSuffixArray(t)
	e := NewExecutor(r)
	e.Now = time.Now()

	docs, ok := r.SearchLiteralExact("hello world")
	require.True(t, ok)
	require.Equal(t, 1, docs.Count())

	q := Parse(`"hello world"`)
	matches, err := e.Execute(q)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		require.Equal(t, "pkg/widget.go", m.Path)
		require.Contains(t, m.Content, "hello world")
	}
}

func TestSearchLiteralExactUnavailableWithoutSuffixArray(t *testing.T) {
	r := buildExecutorFixture(t)
	_, ok := r.SearchLiteralExact("hello world")
	require.False(t, ok)
}

func TestExecuteNotMatchesAbsence(t *testing.T) {
	r := buildExecutorFixture(t)
	e := NewExecutor(r)
	e.Now = time.Now()

	q := Parse(`-re:/nosuchthing/`)
	matches, err := e.Execute(q)
	require.NoError(t, err)
	require.Len(t, matches, 3) // every file matches "absence of nosuchthing"
}
