// Package watch implements the thin fsnotify-based delta feeder described
// in SPEC_FULL.md §4.12: it debounces filesystem events with a fixed
// window and calls builder.ApplyDelta on settle. Debounce tuning and
// rebuild-vs-delta heuristics are explicitly out of spec.md's scope; this
// feeder exists only to exercise the core's "must support segmented
// indexes with tombstones" requirement.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fxsearch/fxs/internal/builder"
	"github.com/fxsearch/fxs/internal/config"
)

// Feeder watches root and feeds debounced changes into builder.ApplyDelta.
type Feeder struct {
	root      string
	indexRoot string
	cfg       *config.Config
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]bool // relPath -> true if still present on disk
}

func New(root, indexRoot string, cfg *config.Config, logger *slog.Logger) *Feeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feeder{root: root, indexRoot: indexRoot, cfg: cfg, logger: logger, pending: make(map[string]bool)}
}

// Run watches root until ctx is canceled, debouncing events and applying
// deltas on settle.
func (f *Feeder) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(f.root); err != nil {
		return err
	}

	timer := time.NewTimer(f.cfg.WatchDebounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(f.root, ev.Name)
			if err != nil {
				continue
			}
			f.mu.Lock()
			f.pending[rel] = ev.Op&fsnotify.Remove == 0 && ev.Op&fsnotify.Rename == 0
			f.mu.Unlock()
			timer.Reset(f.cfg.WatchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Error("watch error", "err", err)
		case <-timer.C:
			f.settle()
		}
	}
}

func (f *Feeder) settle() {
	f.mu.Lock()
	pending := f.pending
	f.pending = make(map[string]bool)
	f.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	var changed, removed []string
	for rel, present := range pending {
		if present {
			changed = append(changed, rel)
		} else {
			removed = append(removed, rel)
		}
	}

	res, err := builder.ApplyDelta(f.indexRoot, changed, removed, f.cfg)
	if err != nil {
		f.logger.Error("apply delta failed", "err", err)
		return
	}
	f.logger.Info("applied delta", "segment", res.SegmentID, "new_docs", res.NewDocs, "tombstoned", res.Tombstoned)
}
