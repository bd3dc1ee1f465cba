// Package indexmeta defines meta.json: the index-wide metadata document
// shared by the builder (which writes it) and the index reader (which
// validates and loads it). See spec.md §6.1.
package indexmeta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/fxsearch/fxs/internal/errtypes"
)

// Weights are the scoring constants, frozen into metadata at build time so
// upper-bound computations stay reproducible without a re-build (spec.md
// §4.10.3, §9).
type Weights struct {
	Match          float64 `json:"w_match"`
	Filename       float64 `json:"w_filename"`
	Depth          float64 `json:"w_depth"`
	DepthMax       float64 `json:"w_depth_max"`
	RecencyHalfLife float64 `json:"w_recency_halflife_secs"`
	RecencyMax     float64 `json:"w_recency_max"`
	BoostDefault   float64 `json:"boost_default"`
}

// DefaultWeights matches spec.md §4.10.3 exactly.
func DefaultWeights() Weights {
	return Weights{
		Match:           1.0,
		Filename:        2.0,
		Depth:           0.05,
		DepthMax:        0.5,
		RecencyHalfLife: 7 * 24 * 3600,
		RecencyMax:      1.0,
		BoostDefault:    2.0,
	}
}

// Meta is the unmarshalled form of meta.json. Unknown fields (added by an
// external watcher/compaction collaborator) are ignored on load. Load does
// not fill Extra and Save does not write it, so a Load/Save round trip
// drops them.
type Meta struct {
	Version        int       `json:"version"`
	RootPath       string    `json:"root_path"`
	DocCount       int       `json:"doc_count"`
	SegmentCount   int       `json:"segment_count"`
	BaseSegment    uint16    `json:"base_segment"`
	DeltaSegments  []uint16  `json:"delta_segments"`
	StopGrams      []uint32  `json:"stop_grams"`
	Weights        Weights   `json:"weights"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Extra          map[string]json.RawMessage `json:"-"`
}

const CurrentVersion = 1

// metaSchema rejects a structurally corrupt meta.json (wrong types, missing
// required keys) before Go's own json.Unmarshal would silently zero-value
// its way through it. See SPEC_FULL.md §4 on C6.
var metaSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"version", "root_path", "doc_count", "segment_count", "base_segment"},
	Properties: map[string]*jsonschema.Schema{
		"version":        {Type: "integer"},
		"root_path":      {Type: "string"},
		"doc_count":      {Type: "integer"},
		"segment_count":  {Type: "integer"},
		"base_segment":   {Type: "integer"},
		"delta_segments": {Type: "array"},
		"stop_grams":     {Type: "array"},
		"weights":        {Type: "object"},
		"created_at":     {Type: "string"},
		"updated_at":     {Type: "string"},
	},
}

// Load reads, schema-validates, and unmarshals meta.json from indexRoot.
// A missing file is reported as errtypes.Missing; a file that exists but
// fails schema validation or JSON decoding is errtypes.Corrupt.
func Load(indexRoot string) (*Meta, error) {
	path := filepath.Join(indexRoot, "meta.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errtypes.New(errtypes.Missing, "indexmeta.Load", path, err)
		}
		return nil, errtypes.New(errtypes.IO, "indexmeta.Load", path, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errtypes.New(errtypes.Corrupt, "indexmeta.Load", path, err)
	}
	if resolved, err := metaSchema.Resolve(nil); err == nil {
		if validateErr := resolved.Validate(doc); validateErr != nil {
			return nil, errtypes.New(errtypes.Corrupt, "indexmeta.Load", path, validateErr)
		}
	}

	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errtypes.New(errtypes.Corrupt, "indexmeta.Load", path, err)
	}
	return &m, nil
}

// Save writes meta.json atomically (write to a temp file, then rename).
func Save(indexRoot string, m *Meta) error {
	path := filepath.Join(indexRoot, "meta.json")
	tmp := path + ".tmp"

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta.json: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
