package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fxsearch/fxs/internal/builder"
	"github.com/fxsearch/fxs/internal/config"
	"github.com/fxsearch/fxs/internal/logging"
)

func main() {
	app := &cli.App{
		Name:  "fxindex",
		Usage: "build or refresh an fxs index for a source tree",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "source tree to index",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "index directory to write (defaults to <root>/.fxs)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "overwrite an existing index directory",
			},
		},
		Action: runIndex,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fxindex:", err)
		os.Exit(1)
	}
}

func runIndex(c *cli.Context) error {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	indexRoot := c.String("index")
	if indexRoot == "" {
		indexRoot = filepath.Join(root, ".fxs")
	}

	cfg, err := config.LoadKDL(root)
	if err != nil {
		cfg = config.Default()
	}

	logger := logging.Default()
	progress := &builder.Progress{}

	start := time.Now()
	result, err := builder.Build(context.Background(), root, indexRoot, cfg, c.Bool("force"), progress)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	logger.Info("index build complete",
		"root", root,
		"index", indexRoot,
		"docs", result.DocCount,
		"skipped", len(result.Report.Errors),
		"elapsed", time.Since(start).String())

	if result.Report.HasErrors() {
		for _, e := range result.Report.Errors {
			logger.Warn("skipped file", "path", e.Path, "kind", string(e.Kind), "err", e.Error())
		}
	}

	return nil
}
