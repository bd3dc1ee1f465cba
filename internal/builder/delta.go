package builder

import (
	"fmt"
	"time"

	"github.com/fxsearch/fxs/internal/config"
	"github.com/fxsearch/fxs/internal/doctable"
	"github.com/fxsearch/fxs/internal/indexmeta"
	"github.com/fxsearch/fxs/internal/segment"
	"github.com/fxsearch/fxs/internal/suffixarray"
	"github.com/fxsearch/fxs/internal/types"
)

// DeltaResult summarizes one incremental ApplyDelta call.
type DeltaResult struct {
	SegmentID  types.SegmentId
	NewDocs    int
	Tombstoned int
}

// ApplyDelta analyzes changedPaths and tombstones removedPaths, writing a
// new delta segment and updating the global docs.bin/paths.bin/meta.json
// in place. It never renumbers existing doc-ids (spec.md §3 invariant)
// and never recomputes the stop-gram set, which is inherited from the
// base segment (spec.md §9). This is the narrow surface the watcher
// feeder (SPEC_FULL.md §4.12) drives; debounce and rebuild-vs-delta
// policy live entirely in the caller.
func ApplyDelta(indexRoot string, changedPaths, removedPaths []string, cfg *config.Config) (*DeltaResult, error) {
	meta, err := indexmeta.Load(indexRoot)
	if err != nil {
		return nil, fmt.Errorf("apply delta: load meta: %w", err)
	}
	docs, err := doctable.ReadDocs(indexRoot)
	if err != nil {
		return nil, fmt.Errorf("apply delta: read docs: %w", err)
	}
	paths, err := doctable.ReadPaths(indexRoot)
	if err != nil {
		return nil, fmt.Errorf("apply delta: read paths: %w", err)
	}

	pathToID := make(map[string]types.PathId, len(paths))
	for i, p := range paths {
		pathToID[p] = types.PathId(i)
	}

	tombstoned := 0
	for _, rel := range removedPaths {
		pid, ok := pathToID[rel]
		if !ok {
			continue
		}
		for i := range docs {
			if docs[i].PathId == pid && docs[i].Flags.Valid() {
				docs[i].Flags |= types.FlagTombstone
				tombstoned++
			}
		}
	}

	var maxDoc types.DocId
	for _, d := range docs {
		if d.DocId > maxDoc {
			maxDoc = d.DocId
		}
	}

	newSegID := meta.BaseSegment
	for _, s := range meta.DeltaSegments {
		if types.SegmentId(s) > newSegID {
			newSegID = types.SegmentId(s)
		}
	}
	newSegID++

	w := segment.NewWriterFrom(newSegID, 0, maxDoc+1)
	var saInputs []suffixarray.BuildInput
	for _, rel := range changedPaths {
		root := meta.RootPath
		pf, skipErr := analyzeOne(root, rel, cfg, nil)
		if skipErr != nil {
			continue // per spec.md §7: oversize/binary/unreadable files are silently excluded
		}
		docID := w.AddProcessedFile(pf.RelPath, uint64(pf.Size), pf.MtimeNs, pf.Language, 0, pf.Trigrams, pf.Tokens, pf.LineOffsets)
		if cfg.SuffixArray {
			saInputs = append(saInputs, suffixarray.BuildInput{DocID: uint32(docID), Content: pf.Content})
		}
	}

	if _, err := w.WriteSegment(indexRoot); err != nil {
		return nil, fmt.Errorf("apply delta: write segment: %w", err)
	}
	if cfg.SuffixArray {
		if err := suffixarray.Build(w.SegmentDir(indexRoot), saInputs, false); err != nil {
			return nil, fmt.Errorf("apply delta: build suffix array: %w", err)
		}
	}

	for _, p := range w.Paths() {
		if _, ok := pathToID[p]; !ok {
			pathToID[p] = types.PathId(len(paths))
			paths = append(paths, p)
		}
	}
	for _, d := range w.Docs() {
		d.PathId = pathToID[w.Paths()[d.PathId]]
		docs = append(docs, d)
	}

	if err := doctable.WriteDocs(indexRoot, docs); err != nil {
		return nil, fmt.Errorf("apply delta: write docs: %w", err)
	}
	if err := doctable.WritePaths(indexRoot, paths); err != nil {
		return nil, fmt.Errorf("apply delta: write paths: %w", err)
	}

	meta.DeltaSegments = append(meta.DeltaSegments, uint16(newSegID))
	meta.SegmentCount++
	meta.DocCount = len(docs)
	meta.UpdatedAt = time.Now().UTC()
	if err := indexmeta.Save(indexRoot, meta); err != nil {
		return nil, fmt.Errorf("apply delta: save meta: %w", err)
	}

	return &DeltaResult{SegmentID: newSegID, NewDocs: len(w.Docs()), Tombstoned: tombstoned}, nil
}
