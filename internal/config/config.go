// Package config holds builder and query defaults and loads them from the
// project's fxs.kdl file (primary format) or a legacy fxs.toml (read-only
// compatibility loader).
package config

import (
	"time"

	"github.com/fxsearch/fxs/internal/indexmeta"
)

// Config collects every tunable spec.md mentions outside the on-disk
// format itself: file-size ceiling, ignore rules, stop-gram budget,
// chunking, and the scoring weights that get frozen into meta.json at
// build time.
type Config struct {
	MaxFileSize  int64    // default 100 MiB (spec.md §4.4)
	IgnoredPaths []string // additional user-supplied glob patterns
	ChunkSize    int      // corpus partition size; 0 = unbounded (spec.md §5)
	StopGramK    int      // default 512 (spec.md §3)
	SuffixArray  bool     // build the optional suffix array (spec.md §4.7)
	Weights      indexmeta.Weights

	WatchDebounce time.Duration // fixed per SPEC_FULL.md §4.12, not user-tunable
}

// Default returns the configuration spec.md's defaults describe.
func Default() *Config {
	return &Config{
		MaxFileSize:   100 * 1024 * 1024,
		ChunkSize:     0,
		StopGramK:     512,
		SuffixArray:   false,
		Weights:       indexmeta.DefaultWeights(),
		WatchDebounce: 300 * time.Millisecond,
	}
}
