// Package builder implements the index builder (C4): it walks a source
// tree honoring ignore rules, analyzes files in parallel, and merges the
// results into a segment writer in a stable order before committing.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fxsearch/fxs/internal/analysis"
	"github.com/fxsearch/fxs/internal/config"
	"github.com/fxsearch/fxs/internal/errtypes"
	"github.com/fxsearch/fxs/internal/ignore"
	"github.com/fxsearch/fxs/internal/indexmeta"
	"github.com/fxsearch/fxs/internal/segment"
	"github.com/fxsearch/fxs/internal/suffixarray"
	"github.com/fxsearch/fxs/internal/types"
)

// ProcessedFile is one worker's output: everything the sequential merge
// step needs to fold the file into the segment writer.
type ProcessedFile struct {
	RelPath     string
	Size        int64
	MtimeNs     uint64
	Language    types.Language
	Flags       types.DocFlags
	Trigrams    []types.Trigram
	Tokens      []string
	LineOffsets []uint32
	// Content holds the raw file bytes only when cfg.SuffixArray is set;
	// it feeds the optional per-segment suffix array build (C7) and is
	// otherwise left nil to avoid holding every file's bytes in memory.
	Content []byte
}

// Progress is read atomically by callers that want a live file count
// during a build; it is not part of the on-disk format.
type Progress struct {
	Scanned atomic.Int64
	Total   atomic.Int64
}

// Result summarizes a completed build.
type Result struct {
	Report   errtypes.BuildReport
	DocCount int
	Elapsed  time.Duration
}

// Build walks root, analyzes candidate files in parallel, and writes a
// fresh base segment (segment id 1) plus docs.bin/paths.bin/meta.json
// under indexRoot. If force is false and indexRoot already has a
// meta.json, Build returns an error asking the caller to pass force.
func Build(ctx context.Context, root, indexRoot string, cfg *config.Config, force bool, progress *Progress) (*Result, error) {
	start := time.Now()

	if !force {
		if _, err := os.Stat(filepath.Join(indexRoot, "meta.json")); err == nil {
			return nil, fmt.Errorf("index already exists at %s; pass force to rebuild", indexRoot)
		}
	}

	matcher, err := ignore.New(root, cfg.IgnoredPaths)
	if err != nil {
		return nil, fmt.Errorf("build ignore rules: %w", err)
	}

	paths, err := walk(root, matcher)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths) // stable doc-id assignment order across builds

	if progress != nil {
		progress.Total.Store(int64(len(paths)))
	}

	cache, _ := loadRebuildCache(indexRoot) // advisory only; nil on any error

	processed, report := analyzeAll(ctx, root, paths, cfg, cache, progress)

	w := segment.NewWriter(1, cfg.StopGramK)
	var saInputs []suffixarray.BuildInput
	for _, pf := range processed {
		docID := w.AddProcessedFile(pf.RelPath, uint64(pf.Size), pf.MtimeNs, pf.Language, pf.Flags, pf.Trigrams, pf.Tokens, pf.LineOffsets)
		if cfg.SuffixArray {
			saInputs = append(saInputs, suffixarray.BuildInput{DocID: uint32(docID), Content: pf.Content})
		}
	}
	report.FilesIndexed = w.DocCount()

	if err := os.MkdirAll(indexRoot, 0o755); err != nil {
		return nil, err
	}
	writeRes, err := w.Write(indexRoot)
	if err != nil {
		return nil, fmt.Errorf("write segment: %w", err)
	}
	if cfg.SuffixArray {
		if err := suffixarray.Build(w.SegmentDir(indexRoot), saInputs, false); err != nil {
			return nil, fmt.Errorf("build suffix array: %w", err)
		}
	}

	stopU32 := make([]uint32, len(writeRes.StopGrams))
	for i, tg := range writeRes.StopGrams {
		stopU32[i] = uint32(tg)
	}

	now := time.Now().UTC()
	meta := &indexmeta.Meta{
		Version:       indexmeta.CurrentVersion,
		RootPath:      root,
		DocCount:      writeRes.DocCount,
		SegmentCount:  1,
		BaseSegment:   1,
		DeltaSegments: nil,
		StopGrams:     stopU32,
		Weights:       cfg.Weights,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := indexmeta.Save(indexRoot, meta); err != nil {
		return nil, fmt.Errorf("write meta.json: %w", err)
	}

	saveRebuildCache(indexRoot, processed)

	return &Result{Report: report, DocCount: writeRes.DocCount, Elapsed: time.Since(start)}, nil
}

func walk(root string, matcher *ignore.Matcher) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // per-file walk errors are skipped, not fatal
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		base := filepath.Base(path)
		if info.IsDir() {
			if ignore.SkipDir(base) {
				return filepath.SkipDir
			}
			if matcher.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	return out, err
}

// analyzeAll runs C1 over every candidate path with a bounded worker pool,
// then returns results in the deterministic order the caller already
// sorted paths into (spec.md §4.4: "aggregation into the writer is
// sequential... in the order the builder chooses to merge").
func analyzeAll(ctx context.Context, root string, paths []string, cfg *config.Config, cache *rebuildCache, progress *Progress) ([]ProcessedFile, errtypes.BuildReport) {
	results := make([]*ProcessedFile, len(paths))
	skips := make([]*errtypes.IndexError, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0)) // see SPEC_FULL.md §4 on C4 parallelism

	for i, rel := range paths {
		i, rel := i, rel
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			pf, skipErr := analyzeOne(root, rel, cfg, cache)
			if skipErr != nil {
				skips[i] = skipErr
			} else {
				results[i] = pf
			}
			if progress != nil {
				progress.Scanned.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return an error, so nothing can abort the batch

	var report errtypes.BuildReport
	out := make([]ProcessedFile, 0, len(paths))
	for i := range paths {
		if skips[i] != nil {
			report.AddSkip(skips[i])
			continue
		}
		if results[i] != nil {
			out = append(out, *results[i])
		}
	}
	return out, report
}

func analyzeOne(root, rel string, cfg *config.Config, cache *rebuildCache) (*ProcessedFile, *errtypes.IndexError) {
	full := filepath.Join(root, rel)
	info, err := os.Lstat(full)
	if err != nil {
		return nil, errtypes.New(errtypes.IO, "analyzeOne.stat", full, err).Recover()
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, errtypes.New(errtypes.Skipped, "analyzeOne.symlink", full, fmt.Errorf("symlink")).Recover()
	}
	if info.Size() > cfg.MaxFileSize {
		return nil, errtypes.New(errtypes.Skipped, "analyzeOne.oversize", full, fmt.Errorf("%d bytes exceeds max_file_size", info.Size())).Recover()
	}

	mtimeNs := uint64(info.ModTime().UnixNano())
	// A cache hit only carries derived facts, never raw bytes, so it is
	// skipped outright when the caller needs Content for a suffix-array
	// build (spec.md §4.7 requires concatenated raw text per document).
	if cache != nil && !cfg.SuffixArray {
		if cached, ok := cache.lookup(rel, info.Size(), mtimeNs); ok {
			return &ProcessedFile{
				RelPath: rel, Size: info.Size(), MtimeNs: mtimeNs,
				Language: analysis.DetectLanguage(rel),
				Trigrams: cached.Trigrams, Tokens: cached.Tokens, LineOffsets: cached.LineOffsets,
			}, nil
		}
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return nil, errtypes.New(errtypes.IO, "analyzeOne.read", full, err).Recover()
	}

	res := analysis.Analyze(content)
	if res.IsBinary {
		return nil, errtypes.New(errtypes.Skipped, "analyzeOne.binary", full, fmt.Errorf("binary")).Recover()
	}

	pf := &ProcessedFile{
		RelPath:     rel,
		Size:        info.Size(),
		MtimeNs:     mtimeNs,
		Language:    analysis.DetectLanguage(rel),
		Trigrams:    res.Trigrams,
		Tokens:      res.Tokens,
		LineOffsets: res.LineOffsets,
	}
	if cfg.SuffixArray {
		pf.Content = content
	}
	if cache != nil {
		cache.record(rel, info.Size(), mtimeNs, content, res)
	}
	return pf, nil
}
