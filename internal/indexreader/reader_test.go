package indexreader

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fxsearch/fxs/internal/doctable"
	"github.com/fxsearch/fxs/internal/indexmeta"
	"github.com/fxsearch/fxs/internal/segment"
	"github.com/fxsearch/fxs/internal/suffixarray"
	"github.com/fxsearch/fxs/internal/types"
)

func buildFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	tgFoo := types.PackTrigram('f', 'o', 'o')
	tgBar := types.PackTrigram('b', 'a', 'r')

	base := segment.NewWriter(1, 0)
	base.AddProcessedFile("a.go", 10, 1000, types.LangGo, 0,
		[]types.Trigram{tgFoo}, []string{"foo"}, []uint32{0, 4})
	base.AddProcessedFile("b.go", 20, 2000, types.LangGo, 0,
		[]types.Trigram{tgFoo, tgBar}, []string{"foo", "bar"}, []uint32{0, 8})
	baseRes, err := base.Write(dir)
	require.NoError(t, err)

	delta := segment.NewWriterFrom(2, 0, types.DocId(baseRes.DocCount+1))
	delta.AddProcessedFile("c.go", 5, 3000, types.LangGo, 0,
		[]types.Trigram{tgBar}, []string{"bar"}, []uint32{0})
	_, err = delta.WriteSegment(dir)
	require.NoError(t, err)

	// merge delta's docs/paths into the global tables. Unlike
	// builder.ApplyDelta, the delta's path ids are not remapped; no test
	// here reads doc 3's path.
	docs := append(base.Docs(), delta.Docs()...)
	paths := append(base.Paths(), delta.Paths()...)
	require.NoError(t, doctable.WriteDocs(dir, docs))
	require.NoError(t, doctable.WritePaths(dir, paths))

	meta := &indexmeta.Meta{
		Version:       indexmeta.CurrentVersion,
		RootPath:      "/repo",
		DocCount:      len(docs),
		SegmentCount:  2,
		BaseSegment:   1,
		DeltaSegments: []uint16{2},
		Weights:       indexmeta.DefaultWeights(),
		CreatedAt:     time.Unix(0, 0).UTC(),
		UpdatedAt:     time.Unix(0, 0).UTC(),
	}
	require.NoError(t, indexmeta.Save(dir, meta))

	return dir
}

func TestOpenUnionsSegments(t *testing.T) {
	dir := buildFixture(t)
	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 3, r.DocCount())

	fooDocs := r.GetTrigramDocs(types.PackTrigram('f', 'o', 'o')).ToSlice()
	require.Equal(t, []types.DocId{1, 2}, fooDocs)

	barDocs := r.GetTrigramDocs(types.PackTrigram('b', 'a', 'r')).ToSlice()
	require.Equal(t, []types.DocId{2, 3}, barDocs)

	require.EqualValues(t, 2, r.GetTrigramDocFreq(types.PackTrigram('b', 'a', 'r')))

	barTok := r.GetTokenDocs("BAR").ToSlice()
	require.Equal(t, []types.DocId{2, 3}, barTok)
}

func TestOffsetToLine(t *testing.T) {
	dir := buildFixture(t)
	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	line, ok := r.OffsetToLine(2, 9)
	require.True(t, ok)
	require.Equal(t, 2, line)

	_, ok = r.OffsetToLine(999, 0)
	require.False(t, ok)
}

func TestSearchLiteralExactUnavailableWithoutBuild(t *testing.T) {
	dir := buildFixture(t)
	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	_, ok := r.SearchLiteralExact("foo")
	require.False(t, ok)
}

func TestSearchLiteralExactUnavailableWhenOnlyOneSegmentHasIt(t *testing.T) {
	dir := buildFixture(t)
	baseSegDir := filepath.Join(dir, "segments", "seg_0001")
	require.NoError(t, suffixarray.Build(baseSegDir, []suffixarray.BuildInput{
		{DocID: 1, Content: []byte("foo")},
		{DocID: 2, Content: []byte("foobar")},
	}, false))
	// segment 2 (the delta) deliberately has no suffix array trio.

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	_, ok := r.SearchLiteralExact("foo")
	require.False(t, ok, "a suffix array missing from even one segment must fall back to the trigram path for the whole index")
}

func TestSearchLiteralExactUnionsAcrossSegments(t *testing.T) {
	dir := buildFixture(t)
	require.NoError(t, suffixarray.Build(filepath.Join(dir, "segments", "seg_0001"), []suffixarray.BuildInput{
		{DocID: 1, Content: []byte("foo")},
		{DocID: 2, Content: []byte("foobar")},
	}, false))
	require.NoError(t, suffixarray.Build(filepath.Join(dir, "segments", "seg_0002"), []suffixarray.BuildInput{
		{DocID: 3, Content: []byte("barfoo")},
	}, false))

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	docs, ok := r.SearchLiteralExact("foo")
	require.True(t, ok)
	require.Equal(t, []types.DocId{1, 2, 3}, docs.ToSlice())
}

func TestGetFullPathAndValidDocIds(t *testing.T) {
	dir := buildFixture(t)
	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	doc, ok := r.GetDocument(2)
	require.True(t, ok)
	full, ok := r.GetFullPath(doc)
	require.True(t, ok)
	require.Equal(t, "/repo/b.go", full)

	valid := r.ValidDocIds()
	require.Equal(t, 3, valid.Count())
}
