// Package logger builds the application's slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New creates a structured text logger at the given level. Output defaults to
// stderr when nil, so request logs and job logs never interleave with data
// the CLI writes to stdout (e.g. the job summary).
func New(level slog.Level, output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}
	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))
}

// NewJSON creates a structured JSON logger, used by the server where logs are
// shipped to a collector.
func NewJSON(level slog.Level, output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
}
