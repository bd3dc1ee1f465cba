package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fxsearch/fxs/internal/types"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(1, 0)

	tg1 := types.PackTrigram('a', 'b', 'c')
	tg2 := types.PackTrigram('x', 'y', 'z')

	w.AddProcessedFile("a.go", 10, 1000, types.LangGo, 0,
		[]types.Trigram{tg1}, []string{"foo"}, []uint32{0, 4})
	w.AddProcessedFile("b.go", 20, 2000, types.LangGo, 0,
		[]types.Trigram{tg1, tg2}, []string{"foo", "bar"}, []uint32{0})

	res, err := w.Write(dir)
	require.NoError(t, err)
	require.Equal(t, 2, res.DocCount)

	r, err := Open(filepath.Join(dir, "segments", "seg_0001"), 1)
	require.NoError(t, err)
	defer r.Close()

	docs := r.GetTrigramDocs(tg1)
	require.Equal(t, []types.DocId{1, 2}, docs)

	docs2 := r.GetTrigramDocs(tg2)
	require.Equal(t, []types.DocId{2}, docs2)

	require.Nil(t, r.GetTrigramDocs(types.PackTrigram('q', 'q', 'q')))

	require.EqualValues(t, 2, r.GetTrigramDocFreq(tg1))
	require.EqualValues(t, 0, r.GetTrigramDocFreq(types.PackTrigram('q', 'q', 'q')))

	fooDocs := r.GetTokenDocs("FOO")
	require.Equal(t, []types.DocId{1, 2}, fooDocs)

	require.Equal(t, []uint32{0, 4}, r.GetLineMap(1))
	require.Equal(t, []uint32{0}, r.GetLineMap(2))
	require.Nil(t, r.GetLineMap(99))
}

func TestStopGramsOmittedFromDictionary(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(1, 1) // keep just the single most frequent trigram out

	common := types.PackTrigram('t', 'h', 'e')
	rare := types.PackTrigram('z', 'q', 'x')

	for i := 0; i < 5; i++ {
		w.AddProcessedFile(filepath.Join("f", string(rune('a'+i))), 1, 1, types.LangGo, 0,
			[]types.Trigram{common}, nil, []uint32{0})
	}
	w.AddProcessedFile("rare.go", 1, 1, types.LangGo, 0, []types.Trigram{rare}, nil, []uint32{0})

	res, err := w.Write(dir)
	require.NoError(t, err)
	require.Equal(t, []types.Trigram{common}, res.StopGrams)

	r, err := Open(filepath.Join(dir, "segments", "seg_0001"), 1)
	require.NoError(t, err)
	defer r.Close()

	require.Nil(t, r.GetTrigramDocs(common))
	require.NotNil(t, r.GetTrigramDocs(rare))
}

func TestReaderTolerantOfTruncatedPostings(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(1, 0)
	tg := types.PackTrigram('a', 'b', 'c')
	for i := 0; i < 50; i++ {
		w.AddProcessedFile(filepath.Join("f", string(rune('a'+i))), 1, 1, types.LangGo, 0,
			[]types.Trigram{tg}, nil, []uint32{0})
	}
	_, err := w.Write(dir)
	require.NoError(t, err)

	segDir := filepath.Join(dir, "segments", "seg_0001")
	postingsPath := filepath.Join(segDir, GramsPostings)
	data, err := os.ReadFile(postingsPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(postingsPath, data[:len(data)-1], 0o644))

	r, err := Open(segDir, 1)
	require.NoError(t, err)
	defer r.Close()

	var docs []types.DocId
	require.NotPanics(t, func() {
		docs = r.GetTrigramDocs(tg)
	})
	require.Empty(t, docs, "a posting list truncated mid-encoding must decode to empty, not a partial result")
}
