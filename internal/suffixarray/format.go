package suffixarray

const (
	// Magic identifies both concat.idx and sa.bin, per spec.md §4.7.
	Magic uint32 = 0x46585341 // "FXSA"

	FormatVersion uint32 = 1

	ConcatFile    = "concat.bin"
	ConcatIdxFile = "concat.idx"
	SuffixFile    = "sa.bin"

	// maxCompareLen bounds the per-comparison work during both the build
	// sort and a search's binary-search steps (spec.md §4.7: "bounded
	// (256-byte) suffix comparison").
	maxCompareLen = 256
)

// BoundaryEntry maps one document's byte range within concat.bin.
type BoundaryEntry struct {
	DocID uint32
	Start uint64
	End   uint64 // exclusive, before the sentinel byte
}
