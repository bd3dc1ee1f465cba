package suffixarray

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fxsearch/fxs/internal/types"
)

func toUint32s(docs []types.DocId) []uint32 {
	out := make([]uint32, len(docs))
	for i, d := range docs {
		out[i] = uint32(d)
	}
	return out
}

func TestBuildAndSearchRoundTrip(t *testing.T) {
	dir := t.TempDir()
	inputs := []BuildInput{
		{DocID: 1, Content: []byte("hello world")},
		{DocID: 2, Content: []byte("goodbye world")},
		{DocID: 3, Content: []byte("another file entirely")},
	}
	require.NoError(t, Build(dir, inputs, false))

	r, err := Open(dir)
	require.NoError(t, err)
	require.NotNil(t, r)
	defer r.Close()

	lo, hi := r.Search([]byte("world"))
	require.Greater(t, hi, lo)
	docs := r.DocIDsInRange(lo, hi)
	require.ElementsMatch(t, []uint32{1, 2}, toUint32s(docs))

	lo, hi = r.Search([]byte("nonexistent-pattern"))
	require.Equal(t, lo, hi)

	lo, hi = r.Search([]byte("goodbye"))
	docs = r.DocIDsInRange(lo, hi)
	require.ElementsMatch(t, []uint32{2}, toUint32s(docs))
}

func TestOpenMissingReturnsNilReader(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)
	require.Nil(t, r)

	lo, hi := r.Search([]byte("anything"))
	require.Equal(t, 0, lo)
	require.Equal(t, 0, hi)
}

func TestLowercaseFolding(t *testing.T) {
	dir := t.TempDir()
	inputs := []BuildInput{{DocID: 1, Content: []byte("HELLO World")}}
	require.NoError(t, Build(dir, inputs, true))

	data, err := os.ReadFile(filepath.Join(dir, ConcatFile))
	require.NoError(t, err)
	require.Equal(t, "hello world\x00", string(data)) // each document ends with a 0x00 sentinel
}
