package varint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<63 - 1} {
		buf := PutUvarint(nil, v)
		got, n := Uvarint(buf)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	xs := []uint32{1, 2, 3, 100, 101, 5000, 5001, 1 << 20}
	enc := EncodeDeltaU32(xs)
	dec := DecodeDeltaU32(enc)
	require.Equal(t, xs, dec)
}

func TestDeltaEmpty(t *testing.T) {
	require.Nil(t, DecodeDeltaU32(nil))
	require.Empty(t, EncodeDeltaU32(nil))
}

func TestDeltaTruncatedDoesNotPanic(t *testing.T) {
	xs := []uint32{10, 20, 30, 40}
	enc := EncodeDeltaU32(xs)
	truncated := enc[:len(enc)-1]
	require.NotPanics(t, func() {
		_ = DecodeDeltaU32(truncated)
	})
}

func TestUvarintTruncated(t *testing.T) {
	// a continuation byte with nothing after it is not a complete varint.
	v, n := Uvarint([]byte{0x80})
	require.Equal(t, 0, n)
	require.Equal(t, uint64(0), v)
}
