// Package logging wraps log/slog with the line-oriented key=value handler
// that cmd/fxindex uses for its build summary and skipped-file warnings;
// the query executor does not log. No third-party
// structured-logging library appears anywhere in the retrieved corpus
// (see DESIGN.md), so this one ambient concern is built directly on the
// standard library.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a text-handler logger writing to w (os.Stderr if nil), at
// the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// Default is a ready-to-use Info-level logger to stderr.
func Default() *slog.Logger {
	return New(os.Stderr, slog.LevelInfo)
}
