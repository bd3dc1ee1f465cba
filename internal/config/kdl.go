package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL reads fxs.kdl from projectRoot, if present, and overlays it onto
// Default(). A missing file is not an error: callers get plain defaults.
func LoadKDL(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, "fxs.kdl")
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read fxs.kdl: %w", err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, fmt.Errorf("parse fxs.kdl: %w", err)
	}

	cfg := Default()
	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "index":
			for _, cn := range n.Children {
				applyIndexNode(cfg, cn)
			}
		case "scoring":
			for _, cn := range n.Children {
				applyScoringNode(cfg, cn)
			}
		case "exclude":
			cfg.IgnoredPaths = append(cfg.IgnoredPaths, collectStringArgs(n)...)
		}
	}
	return cfg, nil
}

func applyIndexNode(cfg *Config, n *document.Node) {
	switch nodeName(n) {
	case "max_file_size":
		if v, ok := firstIntArg(n); ok {
			cfg.MaxFileSize = int64(v)
		}
	case "chunk_size":
		if v, ok := firstIntArg(n); ok {
			cfg.ChunkSize = v
		}
	case "stop_gram_k":
		if v, ok := firstIntArg(n); ok {
			cfg.StopGramK = v
		}
	case "suffix_array":
		if b, ok := firstBoolArg(n); ok {
			cfg.SuffixArray = b
		}
	}
}

func applyScoringNode(cfg *Config, n *document.Node) {
	switch nodeName(n) {
	case "w_match":
		if v, ok := firstFloatArg(n); ok {
			cfg.Weights.Match = v
		}
	case "w_filename":
		if v, ok := firstFloatArg(n); ok {
			cfg.Weights.Filename = v
		}
	case "w_depth":
		if v, ok := firstFloatArg(n); ok {
			cfg.Weights.Depth = v
		}
	case "w_depth_max":
		if v, ok := firstFloatArg(n); ok {
			cfg.Weights.DepthMax = v
		}
	case "w_recency_halflife_secs":
		if v, ok := firstFloatArg(n); ok {
			cfg.Weights.RecencyHalfLife = v
		}
	case "w_recency_max":
		if v, ok := firstFloatArg(n); ok {
			cfg.Weights.RecencyMax = v
		}
	case "boost_default":
		if v, ok := firstFloatArg(n); ok {
			cfg.Weights.BoostDefault = v
		}
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
