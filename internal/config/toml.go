package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// legacyTOML mirrors the handful of fields an older fxs.toml config carried
// before the project moved to KDL. It exists only to upgrade old project
// checkouts in memory; nothing is written back in TOML.
type legacyTOML struct {
	Index struct {
		MaxFileSize int64    `toml:"max_file_size"`
		ChunkSize   int      `toml:"chunk_size"`
		StopGramK   int      `toml:"stop_gram_k"`
		SuffixArray bool     `toml:"suffix_array"`
		Exclude     []string `toml:"exclude"`
	} `toml:"index"`
	Scoring struct {
		Match           *float64 `toml:"w_match"`
		Filename        *float64 `toml:"w_filename"`
		Depth           *float64 `toml:"w_depth"`
		DepthMax        *float64 `toml:"w_depth_max"`
		RecencyHalfLife *float64 `toml:"w_recency_halflife_secs"`
		RecencyMax      *float64 `toml:"w_recency_max"`
		BoostDefault    *float64 `toml:"boost_default"`
	} `toml:"scoring"`
}

// LoadTOML reads a legacy fxs.toml from projectRoot and upgrades it onto
// Default(). A missing file is not an error.
func LoadTOML(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, "fxs.toml")
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read fxs.toml: %w", err)
	}

	var legacy legacyTOML
	if err := toml.Unmarshal(content, &legacy); err != nil {
		return nil, fmt.Errorf("parse fxs.toml: %w", err)
	}

	cfg := Default()
	if legacy.Index.MaxFileSize > 0 {
		cfg.MaxFileSize = legacy.Index.MaxFileSize
	}
	if legacy.Index.ChunkSize > 0 {
		cfg.ChunkSize = legacy.Index.ChunkSize
	}
	if legacy.Index.StopGramK > 0 {
		cfg.StopGramK = legacy.Index.StopGramK
	}
	cfg.SuffixArray = legacy.Index.SuffixArray
	cfg.IgnoredPaths = append(cfg.IgnoredPaths, legacy.Index.Exclude...)

	setIfPresent(&cfg.Weights.Match, legacy.Scoring.Match)
	setIfPresent(&cfg.Weights.Filename, legacy.Scoring.Filename)
	setIfPresent(&cfg.Weights.Depth, legacy.Scoring.Depth)
	setIfPresent(&cfg.Weights.DepthMax, legacy.Scoring.DepthMax)
	setIfPresent(&cfg.Weights.RecencyHalfLife, legacy.Scoring.RecencyHalfLife)
	setIfPresent(&cfg.Weights.RecencyMax, legacy.Scoring.RecencyMax)
	setIfPresent(&cfg.Weights.BoostDefault, legacy.Scoring.BoostDefault)

	return cfg, nil
}

func setIfPresent(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
