package suffixarray

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// BuildInput is one document's content, in the order it will appear in
// concat.bin.
type BuildInput struct {
	DocID   uint32
	Content []byte
}

// Build concatenates every input with a 0x00 sentinel, sorts the resulting
// suffix positions with a parallel comparison sort (one goroutine per
// available core, per spec.md §4.7), and writes concat.bin, concat.idx and
// sa.bin under segDir. lowercase case-folds concat.bin's bytes before the
// sort, matching a case-insensitive build configuration.
func Build(segDir string, inputs []BuildInput, lowercase bool) error {
	var concat bytes.Buffer
	boundaries := make([]BoundaryEntry, 0, len(inputs))
	for _, in := range inputs {
		start := uint64(concat.Len())
		content := in.Content
		if lowercase {
			content = bytesToLowerASCII(content)
		}
		concat.Write(content)
		end := uint64(concat.Len())
		concat.WriteByte(0x00)
		boundaries = append(boundaries, BoundaryEntry{DocID: in.DocID, Start: start, End: end})
	}

	data := concat.Bytes()
	positions := parallelSortSuffixes(data)

	if err := os.MkdirAll(segDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(segDir, ConcatFile), data, 0o644); err != nil {
		return err
	}
	if err := writeConcatIdx(segDir, boundaries, uint64(len(data))); err != nil {
		return err
	}
	return writeSuffixArray(segDir, positions)
}

func bytesToLowerASCII(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

// parallelSortSuffixes partitions [0, len(data)) into one chunk per CPU,
// sorts each chunk concurrently by its bounded suffix, then merges the
// sorted chunks. Suffix comparison never looks past maxCompareLen bytes,
// matching the on-disk search's own bound.
func parallelSortSuffixes(data []byte) []uint64 {
	n := len(data)
	all := make([]uint64, n)
	for i := range all {
		all[i] = uint64(i)
	}
	if n == 0 {
		return all
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	chunkSize := (n + workers - 1) / workers
	chunks := make([][]uint64, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		chunk := append([]uint64(nil), all[lo:hi]...)
		chunks[w] = chunk
		g.Go(func() error {
			sort.Slice(chunk, func(i, j int) bool {
				return compareSuffix(data, chunk[i], chunk[j]) < 0
			})
			return nil
		})
	}
	_ = g.Wait() // no comparison ever errors

	return mergeSortedChunks(data, chunks)
}

func compareSuffix(data []byte, a, b uint64) int {
	sa, sb := data[a:], data[b:]
	if len(sa) > maxCompareLen {
		sa = sa[:maxCompareLen]
	}
	if len(sb) > maxCompareLen {
		sb = sb[:maxCompareLen]
	}
	c := bytes.Compare(sa, sb)
	if c != 0 {
		return c
	}
	// bound exhausted with no difference: fall back to position order so
	// the sort stays deterministic and total.
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func mergeSortedChunks(data []byte, chunks [][]uint64) []uint64 {
	total := 0
	idx := make([]int, len(chunks))
	for i, c := range chunks {
		total += len(c)
		idx[i] = 0
	}
	out := make([]uint64, 0, total)
	for len(out) < total {
		best := -1
		for i, c := range chunks {
			if idx[i] >= len(c) {
				continue
			}
			if best == -1 || compareSuffix(data, c[idx[i]], chunks[best][idx[best]]) < 0 {
				best = i
			}
		}
		out = append(out, chunks[best][idx[best]])
		idx[best]++
	}
	return out
}

func writeConcatIdx(segDir string, boundaries []BoundaryEntry, totalSize uint64) error {
	f, err := os.Create(filepath.Join(segDir, ConcatIdxFile))
	if err != nil {
		return err
	}
	defer f.Close()

	header := []any{Magic, FormatVersion, uint32(len(boundaries)), totalSize, uint32(0)}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, b := range boundaries {
		for _, v := range []any{b.DocID, b.Start, b.End} {
			if err := binary.Write(f, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSuffixArray(segDir string, positions []uint64) error {
	f, err := os.Create(filepath.Join(segDir, SuffixFile))
	if err != nil {
		return err
	}
	defer f.Close()

	header := []any{Magic, FormatVersion, uint64(len(positions)), uint32(0)}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, p := range positions {
		if err := binary.Write(f, binary.LittleEndian, p); err != nil {
			return err
		}
	}
	return nil
}
