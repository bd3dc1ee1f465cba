// Package suffixarray implements the optional per-segment concatenated-text
// suffix array (C7): a bounded-comparison exact-substring index that lets
// the query executor answer a literal search in O(m log n) instead of
// falling back to trigram narrowing plus full verification.
package suffixarray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fxsearch/fxs/internal/types"
)

// Reader memory-maps one segment's concat.bin/concat.idx/sa.bin trio. A nil
// *Reader (returned by Open when the files are absent) means "no suffix
// array available"; callers fall back to the trigram path (spec.md §4.7).
type Reader struct {
	concat     mmapData
	positions  mmapData
	boundaries []BoundaryEntry
	docCount   uint32
}

// Open loads the suffix-array trio from segDir. A missing trio is not an
// error: it returns (nil, nil) so the caller can fall back cleanly.
func Open(segDir string) (*Reader, error) {
	idxPath := filepath.Join(segDir, ConcatIdxFile)
	saPath := filepath.Join(segDir, SuffixFile)
	concatPath := filepath.Join(segDir, ConcatFile)

	if _, err := os.Stat(idxPath); os.IsNotExist(err) {
		return nil, nil
	}

	boundaries, docCount, err := readConcatIdx(idxPath)
	if err != nil {
		return nil, fmt.Errorf("suffixarray: concat.idx: %w", err)
	}

	concat, err := mmapFile(concatPath)
	if err != nil {
		return nil, fmt.Errorf("suffixarray: concat.bin: %w", err)
	}
	positions, err := mmapFile(saPath)
	if err != nil {
		concat.Close()
		return nil, fmt.Errorf("suffixarray: sa.bin: %w", err)
	}
	if err := validateSAHeader(positions.data); err != nil {
		concat.Close()
		positions.Close()
		return nil, fmt.Errorf("suffixarray: sa.bin: %w", err)
	}

	return &Reader{concat: concat, positions: positions, boundaries: boundaries, docCount: docCount}, nil
}

func (r *Reader) Close() error {
	if r == nil {
		return nil
	}
	err1 := r.concat.Close()
	err2 := r.positions.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

const saHeaderLen = 4 + 4 + 8 + 4 // magic, version, count, flags

func validateSAHeader(data []byte) error {
	if len(data) < saHeaderLen {
		return fmt.Errorf("truncated header")
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	version := binary.LittleEndian.Uint32(data[4:8])
	if magic != Magic {
		return fmt.Errorf("bad magic %#x", magic)
	}
	if version != FormatVersion {
		return fmt.Errorf("unsupported version %d", version)
	}
	return nil
}

func (r *Reader) suffixCount() int {
	if len(r.positions.data) < saHeaderLen {
		return 0
	}
	declared := binary.LittleEndian.Uint64(r.positions.data[8:16])
	available := (len(r.positions.data) - saHeaderLen) / 8
	if int(declared) > available {
		return available // truncated sa.bin: use what is actually there
	}
	return int(declared)
}

func (r *Reader) position(i int) uint64 {
	off := saHeaderLen + i*8
	return binary.LittleEndian.Uint64(r.positions.data[off : off+8])
}

func (r *Reader) suffixAt(pos uint64) []byte {
	if pos >= uint64(len(r.concat.data)) {
		return nil
	}
	end := pos + maxCompareLen
	if end > uint64(len(r.concat.data)) {
		end = uint64(len(r.concat.data))
	}
	return r.concat.data[pos:end]
}

// Search returns the [lo, hi) range of suffix-array indices whose suffix
// begins with pattern, via two binary searches over the mmapped array.
func (r *Reader) Search(pattern []byte) (lo, hi int) {
	if r == nil || len(pattern) == 0 {
		return 0, 0
	}
	n := r.suffixCount()
	lo = sort.Search(n, func(i int) bool {
		return bytes.Compare(r.suffixAt(r.position(i)), pattern) >= 0
	})
	hi = sort.Search(n, func(i int) bool {
		s := r.suffixAt(r.position(i))
		if len(s) > len(pattern) {
			s = s[:len(pattern)]
		}
		return bytes.Compare(s, pattern) > 0
	})
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// DocIDsInRange converts a [lo, hi) suffix-array range into the set of
// doc-ids whose boundary overlaps any matched position, via binary search
// over the boundary table (spec.md §4.7).
func (r *Reader) DocIDsInRange(lo, hi int) []types.DocId {
	seen := make(map[types.DocId]bool)
	var out []types.DocId
	for i := lo; i < hi; i++ {
		pos := r.position(i)
		if d, ok := r.docForPosition(pos); ok && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Reader) docForPosition(pos uint64) (types.DocId, bool) {
	i := sort.Search(len(r.boundaries), func(i int) bool { return r.boundaries[i].End > pos })
	if i >= len(r.boundaries) || pos < r.boundaries[i].Start {
		return 0, false
	}
	return types.DocId(r.boundaries[i].DocID), true
}

func readConcatIdx(path string) ([]BoundaryEntry, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var magic, version, docCount uint32
	var totalSize uint64
	var flags uint32
	if err := binary.Read(f, binary.LittleEndian, &magic); err != nil {
		return nil, 0, err
	}
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return nil, 0, err
	}
	if magic != Magic || version != FormatVersion {
		return nil, 0, fmt.Errorf("bad header magic=%#x version=%d", magic, version)
	}
	if err := binary.Read(f, binary.LittleEndian, &docCount); err != nil {
		return nil, 0, err
	}
	if err := binary.Read(f, binary.LittleEndian, &totalSize); err != nil {
		return nil, 0, err
	}
	if err := binary.Read(f, binary.LittleEndian, &flags); err != nil {
		return nil, 0, err
	}

	entries := make([]BoundaryEntry, 0, docCount)
	for i := uint32(0); i < docCount; i++ {
		var e BoundaryEntry
		if err := binary.Read(f, binary.LittleEndian, &e.DocID); err != nil {
			return entries, uint32(len(entries)), nil
		}
		if err := binary.Read(f, binary.LittleEndian, &e.Start); err != nil {
			return entries, uint32(len(entries)), nil
		}
		if err := binary.Read(f, binary.LittleEndian, &e.End); err != nil {
			return entries, uint32(len(entries)), nil
		}
		entries = append(entries, e)
	}
	return entries, docCount, nil
}
