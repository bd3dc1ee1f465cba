package segment

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fxsearch/fxs/internal/doctable"
	"github.com/fxsearch/fxs/internal/types"
	"github.com/fxsearch/fxs/internal/varint"
)

// Writer accumulates per-file analysis results into in-memory posting maps
// and emits one segment directory, docs.bin and paths.bin on Write. It is
// single-owner: only one builder drives a Writer at a time (spec.md §5).
type Writer struct {
	segmentID types.SegmentId

	trigramPostings map[types.Trigram][]types.DocId
	tokenPostings   map[string][]types.DocId
	lineMaps        map[types.DocId][]uint32

	docs     []types.Document
	pathIDs  map[string]types.PathId
	paths    []string
	nextDoc  types.DocId
	stopGram int // K, how many top trigrams to drop; 0 disables
}

// NewWriter creates a writer for the given segment id. stopGramK is the
// number of highest-document-frequency trigrams to omit from the written
// dictionary (spec.md default 512; pass 0 to disable, e.g. for delta
// segments that inherit the base segment's stop-gram set and therefore
// need not recompute one of their own).
func NewWriter(segmentID types.SegmentId, stopGramK int) *Writer {
	return NewWriterFrom(segmentID, stopGramK, 1)
}

// NewWriterFrom is NewWriter with an explicit starting doc-id, used by a
// delta segment so its new documents continue the global doc-id sequence
// instead of renumbering from 1 (spec.md §3 invariant: "delta segments
// never renumber doc-ids of earlier segments").
func NewWriterFrom(segmentID types.SegmentId, stopGramK int, startDocID types.DocId) *Writer {
	return &Writer{
		segmentID:       segmentID,
		trigramPostings: make(map[types.Trigram][]types.DocId),
		tokenPostings:   make(map[string][]types.DocId),
		lineMaps:        make(map[types.DocId][]uint32),
		pathIDs:         make(map[string]types.PathId),
		nextDoc:         startDocID,
		stopGram:        stopGramK,
	}
}

// AddProcessedFile folds one analyzed file into the writer's in-memory
// state and returns the doc-id it was assigned.
func (w *Writer) AddProcessedFile(relPath string, size, mtimeNs uint64, lang types.Language, flags types.DocFlags, trigrams []types.Trigram, tokens []string, lineOffsets []uint32) types.DocId {
	docID := w.nextDoc
	w.nextDoc++

	pathID, ok := w.pathIDs[relPath]
	if !ok {
		pathID = types.PathId(len(w.paths))
		w.pathIDs[relPath] = pathID
		w.paths = append(w.paths, relPath)
	}

	w.docs = append(w.docs, types.Document{
		DocId:     docID,
		PathId:    pathID,
		Size:      size,
		MtimeNs:   mtimeNs,
		Language:  lang,
		Flags:     flags,
		SegmentId: w.segmentID,
	})

	for _, tg := range trigrams {
		w.trigramPostings[tg] = append(w.trigramPostings[tg], docID)
	}
	for _, tok := range tokens {
		w.tokenPostings[tok] = append(w.tokenPostings[tok], docID)
	}
	w.lineMaps[docID] = lineOffsets

	return docID
}

// DocCount returns the number of documents folded into this writer so far.
func (w *Writer) DocCount() int { return len(w.docs) }

// computeStopGrams returns the stopGram trigrams with the highest document
// frequency (ties broken by ascending trigram value for determinism).
func (w *Writer) computeStopGrams() map[types.Trigram]bool {
	stop := make(map[types.Trigram]bool)
	if w.stopGram <= 0 || len(w.trigramPostings) == 0 {
		return stop
	}
	type freqEntry struct {
		tg   types.Trigram
		freq int
	}
	entries := make([]freqEntry, 0, len(w.trigramPostings))
	for tg, docs := range w.trigramPostings {
		entries = append(entries, freqEntry{tg, len(docs)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].freq != entries[j].freq {
			return entries[i].freq > entries[j].freq
		}
		return entries[i].tg < entries[j].tg
	})
	k := w.stopGram
	if k > len(entries) {
		k = len(entries)
	}
	for i := 0; i < k; i++ {
		stop[entries[i].tg] = true
	}
	return stop
}

// WriteResult reports what a successful Write produced, for index
// metadata assembly by the builder.
type WriteResult struct {
	StopGrams []types.Trigram
	DocCount  int
}

// SegmentDir returns the on-disk directory this writer's segment will
// occupy under indexRoot.
func (w *Writer) SegmentDir(indexRoot string) string {
	return filepath.Join(indexRoot, "segments", fmt.Sprintf("seg_%04d", w.segmentID))
}

// Docs returns the Document records accumulated so far (for a delta
// writer, the builder merges these into the global docs.bin itself).
func (w *Writer) Docs() []types.Document { return w.docs }

// Paths returns the relative paths interned so far, in path-id order.
func (w *Writer) Paths() []string { return w.paths }

// Write emits docs.bin, paths.bin and the segment directory's dictionary,
// postings and line-map files, for a base (non-delta) build where this
// writer owns the entire global doc/path table. On any error the
// partially written segment directory is removed, per spec.md §4.4.
func (w *Writer) Write(indexRoot string) (WriteResult, error) {
	if err := w.writeDocs(indexRoot); err != nil {
		return WriteResult{}, err
	}
	if err := w.writePaths(indexRoot); err != nil {
		return WriteResult{}, err
	}
	return w.WriteSegment(indexRoot)
}

// WriteSegment emits only this writer's segment directory (dictionaries,
// postings, line map), leaving docs.bin/paths.bin untouched. A delta
// build uses this and merges Docs()/Paths() into the global tables itself
// via the doctable package, since those tables are shared across segments.
func (w *Writer) WriteSegment(indexRoot string) (WriteResult, error) {
	segDir := w.SegmentDir(indexRoot)
	if err := os.MkdirAll(segDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	stopSet := w.computeStopGrams()
	writeErr := func() error {
		if err := w.writeGrams(segDir, stopSet); err != nil {
			return err
		}
		if err := w.writeTokens(segDir); err != nil {
			return err
		}
		return w.writeLineMaps(segDir)
	}()
	if writeErr != nil {
		os.RemoveAll(segDir)
		return WriteResult{}, writeErr
	}

	stopList := make([]types.Trigram, 0, len(stopSet))
	for tg := range stopSet {
		stopList = append(stopList, tg)
	}
	sort.Slice(stopList, func(i, j int) bool { return stopList[i] < stopList[j] })

	return WriteResult{StopGrams: stopList, DocCount: len(w.docs)}, nil
}

func (w *Writer) writeDocs(indexRoot string) error {
	return doctable.WriteDocs(indexRoot, w.docs)
}

func (w *Writer) writePaths(indexRoot string) error {
	return doctable.WritePaths(indexRoot, w.paths)
}

func (w *Writer) writeGrams(segDir string, stop map[types.Trigram]bool) error {
	keys := make([]types.Trigram, 0, len(w.trigramPostings))
	for tg := range w.trigramPostings {
		if stop[tg] {
			continue
		}
		keys = append(keys, tg)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	postingsF, err := os.Create(filepath.Join(segDir, GramsPostings))
	if err != nil {
		return err
	}
	defer postingsF.Close()

	entries := make([]GramEntry, 0, len(keys))
	var offset uint64
	for _, tg := range keys {
		docs := dedupAscending(w.trigramPostings[tg])
		u32s := make([]uint32, len(docs))
		for i, d := range docs {
			u32s[i] = uint32(d)
		}
		enc := varint.EncodeDeltaU32(u32s)
		if _, err := postingsF.Write(enc); err != nil {
			return err
		}
		entries = append(entries, GramEntry{Trigram: uint32(tg), Offset: offset, Length: uint32(len(enc)), DocFreq: uint32(len(docs))})
		offset += uint64(len(enc))
	}

	dictF, err := os.Create(filepath.Join(segDir, GramsDict))
	if err != nil {
		return err
	}
	defer dictF.Close()
	if err := binary.Write(dictF, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		for _, v := range []any{e.Trigram, e.Offset, e.Length, e.DocFreq} {
			if err := binary.Write(dictF, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) writeTokens(segDir string) error {
	keys := make([]string, 0, len(w.tokenPostings))
	for tok := range w.tokenPostings {
		keys = append(keys, tok)
	}
	sort.Strings(keys)

	postingsF, err := os.Create(filepath.Join(segDir, TokensPostings))
	if err != nil {
		return err
	}
	defer postingsF.Close()

	entries := make([]TokenEntry, 0, len(keys))
	var offset uint64
	for _, tok := range keys {
		docs := dedupAscending(w.tokenPostings[tok])
		u32s := make([]uint32, len(docs))
		for i, d := range docs {
			u32s[i] = uint32(d)
		}
		enc := varint.EncodeDeltaU32(u32s)
		if _, err := postingsF.Write(enc); err != nil {
			return err
		}
		entries = append(entries, TokenEntry{Token: tok, Offset: offset, Length: uint32(len(enc)), DocFreq: uint32(len(docs))})
		offset += uint64(len(enc))
	}

	dictF, err := os.Create(filepath.Join(segDir, TokensDict))
	if err != nil {
		return err
	}
	defer dictF.Close()
	if err := binary.Write(dictF, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		tb := []byte(e.Token)
		if err := binary.Write(dictF, binary.LittleEndian, uint16(len(tb))); err != nil {
			return err
		}
		if _, err := dictF.Write(tb); err != nil {
			return err
		}
		for _, v := range []any{e.Offset, e.Length, e.DocFreq} {
			if err := binary.Write(dictF, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) writeLineMaps(segDir string) error {
	f, err := os.Create(filepath.Join(segDir, LineMapFile))
	if err != nil {
		return err
	}
	defer f.Close()

	// deterministic order: ascending doc-id.
	docIDs := make([]types.DocId, 0, len(w.lineMaps))
	for id := range w.lineMaps {
		docIDs = append(docIDs, id)
	}
	sort.Slice(docIDs, func(i, j int) bool { return docIDs[i] < docIDs[j] })

	if err := binary.Write(f, binary.LittleEndian, uint32(len(docIDs))); err != nil {
		return err
	}
	for _, id := range docIDs {
		offsets := w.lineMaps[id]
		enc := varint.EncodeDeltaU32(offsets)
		for _, v := range []any{uint32(id), uint32(len(offsets)), uint32(len(enc))} {
			if err := binary.Write(f, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		if _, err := f.Write(enc); err != nil {
			return err
		}
	}
	return nil
}

// dedupAscending returns docs deduplicated and sorted ascending. Because
// the writer appends doc-ids in call order this is a safety net, not the
// primary ordering mechanism (spec.md §4.3).
func dedupAscending(docs []types.DocId) []types.DocId {
	if len(docs) == 0 {
		return docs
	}
	sorted := append([]types.DocId(nil), docs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := sorted[:1]
	for _, d := range sorted[1:] {
		if d != out[len(out)-1] {
			out = append(out, d)
		}
	}
	return out
}
