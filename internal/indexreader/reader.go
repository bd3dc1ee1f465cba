// Package indexreader implements the index reader (C6): it opens every
// segment listed in meta.json, holds the document and path tables, and
// unions per-segment bitmaps so callers see one logical index regardless
// of how many delta segments back it.
package indexreader

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fxsearch/fxs/internal/bitmap"
	"github.com/fxsearch/fxs/internal/doctable"
	"github.com/fxsearch/fxs/internal/errtypes"
	"github.com/fxsearch/fxs/internal/indexmeta"
	"github.com/fxsearch/fxs/internal/segment"
	"github.com/fxsearch/fxs/internal/suffixarray"
	"github.com/fxsearch/fxs/internal/types"
)

// Reader is immutable after Open; any number of readers may issue queries
// concurrently against it (spec.md §5).
type Reader struct {
	Meta  *indexmeta.Meta
	Root  string

	docs     []types.Document
	paths    []string
	docIndex map[types.DocId]int

	segments  []*segment.Reader
	stopGrams map[types.Trigram]bool

	// sufReaders mirrors segments one-for-one; a nil entry means that
	// segment was built without a suffix array (spec.md §4.7), which
	// makes the whole index's suffix array unavailable, not just that
	// segment's slice of it.
	sufReaders []*suffixarray.Reader
}

// Open loads meta.json, docs.bin and paths.bin, and every listed segment
// in parallel, per spec.md §4.6.
func Open(indexRoot string) (*Reader, error) {
	meta, err := indexmeta.Load(indexRoot)
	if err != nil {
		return nil, err
	}

	r := &Reader{Meta: meta, Root: indexRoot}

	var docsErr, pathsErr error
	var g errgroup.Group
	g.Go(func() error {
		r.docs, docsErr = doctable.ReadDocs(indexRoot)
		if docsErr != nil {
			return errtypes.New(errtypes.Corrupt, "indexreader.Open", filepath.Join(indexRoot, "docs.bin"), docsErr)
		}
		return nil
	})
	g.Go(func() error {
		r.paths, pathsErr = doctable.ReadPaths(indexRoot)
		if pathsErr != nil {
			return errtypes.New(errtypes.Corrupt, "indexreader.Open", filepath.Join(indexRoot, "paths.bin"), pathsErr)
		}
		return nil
	})

	segIDs := append([]uint16{meta.BaseSegment}, meta.DeltaSegments...)
	segReaders := make([]*segment.Reader, len(segIDs))
	sufReaders := make([]*suffixarray.Reader, len(segIDs))
	var segMu sync.Mutex
	var firstSegErr error
	for i, id := range segIDs {
		i, id := i, id
		g.Go(func() error {
			segDir := filepath.Join(indexRoot, "segments", fmt.Sprintf("seg_%04d", id))
			sr, err := segment.Open(segDir, types.SegmentId(id))
			if err != nil {
				segMu.Lock()
				if firstSegErr == nil {
					firstSegErr = err
				}
				segMu.Unlock()
				return nil // collect the first error but let the others proceed/close cleanly
			}
			segReaders[i] = sr
			// A missing suffix-array trio is not an error (suffixarray.Open
			// returns nil, nil); a genuine read error just leaves this
			// segment's entry nil, which Search below treats the same way.
			sufR, _ := suffixarray.Open(segDir)
			sufReaders[i] = sufR
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if firstSegErr != nil {
		return nil, errtypes.New(errtypes.Corrupt, "indexreader.Open", indexRoot, firstSegErr)
	}
	r.segments = segReaders
	r.sufReaders = sufReaders

	r.docIndex = make(map[types.DocId]int, len(r.docs))
	for i, d := range r.docs {
		r.docIndex[d.DocId] = i
	}

	r.stopGrams = make(map[types.Trigram]bool, len(meta.StopGrams))
	for _, v := range meta.StopGrams {
		r.stopGrams[types.Trigram(v)] = true
	}

	return r, nil
}

// Close releases every segment's memory-mapped regions.
func (r *Reader) Close() error {
	var first error
	for _, s := range r.segments {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, s := range r.sufReaders {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SearchLiteralExact answers an exact-substring lookup via the per-segment
// suffix arrays (C7) instead of trigram narrowing. ok is false if any
// segment was built without one, per spec.md §4.7: "the query executor
// falls back to the trigram path" rather than returning a partial result.
func (r *Reader) SearchLiteralExact(text string) (docs *bitmap.Bitmap, ok bool) {
	if text == "" {
		return nil, false
	}
	out := bitmap.New()
	pattern := []byte(text)
	for _, sr := range r.sufReaders {
		if sr == nil {
			return nil, false
		}
		lo, hi := sr.Search(pattern)
		for _, d := range sr.DocIDsInRange(lo, hi) {
			out.Add(d)
		}
	}
	return out, true
}

func (r *Reader) GetDocument(id types.DocId) (*types.Document, bool) {
	i, ok := r.docIndex[id]
	if !ok {
		return nil, false
	}
	return &r.docs[i], true
}

func (r *Reader) GetPath(doc *types.Document) (string, bool) {
	if doc == nil || int(doc.PathId) >= len(r.paths) {
		return "", false
	}
	return r.paths[doc.PathId], true
}

func (r *Reader) GetFullPath(doc *types.Document) (string, bool) {
	rel, ok := r.GetPath(doc)
	if !ok {
		return "", false
	}
	return filepath.Join(r.Meta.RootPath, rel), true
}

// IsStopGram reports whether tg was dropped from every segment's
// dictionary at build time.
func (r *Reader) IsStopGram(tg types.Trigram) bool { return r.stopGrams[tg] }

// GetTrigramDocFreq sums the per-segment document-frequency field without
// decoding any postings.
func (r *Reader) GetTrigramDocFreq(tg types.Trigram) uint32 {
	if r.stopGrams[tg] {
		return 0
	}
	var sum uint32
	for _, s := range r.segments {
		sum += s.GetTrigramDocFreq(tg)
	}
	return sum
}

// GetTrigramDocs unions postings for tg across every segment. Stop-grams
// always return an empty bitmap (they were never written).
func (r *Reader) GetTrigramDocs(tg types.Trigram) *bitmap.Bitmap {
	if r.stopGrams[tg] {
		return bitmap.New()
	}
	maps := make([]*bitmap.Bitmap, 0, len(r.segments))
	for _, s := range r.segments {
		maps = append(maps, bitmap.FromSlice(s.GetTrigramDocs(tg)))
	}
	return bitmap.Union(maps...)
}

// GetTokenDocs unions postings for tok across every segment.
func (r *Reader) GetTokenDocs(tok string) *bitmap.Bitmap {
	maps := make([]*bitmap.Bitmap, 0, len(r.segments))
	for _, s := range r.segments {
		maps = append(maps, bitmap.FromSlice(s.GetTokenDocs(tok)))
	}
	return bitmap.Union(maps...)
}

// GetLineMap finds the segment that owns docID and loads its line map.
func (r *Reader) GetLineMap(docID types.DocId) []uint32 {
	doc, ok := r.GetDocument(docID)
	if !ok {
		return nil
	}
	for _, s := range r.segments {
		if s.SegmentID() == doc.SegmentId {
			return s.GetLineMap(docID)
		}
	}
	return nil
}

// ValidDocIds returns every document with neither STALE nor TOMBSTONE set.
func (r *Reader) ValidDocIds() *bitmap.Bitmap {
	b := bitmap.New()
	for _, d := range r.docs {
		if d.Flags.Valid() {
			b.Add(d.DocId)
		}
	}
	return b
}

// OffsetToLine binary-searches docID's line-offset map for the 1-based
// line number containing byteOffset.
func (r *Reader) OffsetToLine(docID types.DocId, byteOffset uint32) (int, bool) {
	offsets := r.GetLineMap(docID)
	if len(offsets) == 0 {
		return 0, false
	}
	i := sort.Search(len(offsets), func(i int) bool { return offsets[i] > byteOffset })
	if i == 0 {
		return 0, false
	}
	return i, true // offsets[i-1] <= byteOffset < offsets[i]; line i is 1-based
}

// DocCount is the total number of document records, valid or not.
func (r *Reader) DocCount() int { return len(r.docs) }
