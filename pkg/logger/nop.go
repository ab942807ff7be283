package logger

import (
	"io"
	"log/slog"
)

// NewNop returns a logger that discards everything. Intended for tests.
func NewNop() Logger {
	return &logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
