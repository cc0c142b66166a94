package github

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// LogSummaryWriter emits the run summary to the structured log. The server
// has no per-run summary surface, so the log is where operators read it.
type LogSummaryWriter struct {
	logger *slog.Logger
}

// NewLogSummaryWriter creates a log-backed summary writer.
func NewLogSummaryWriter(logger *slog.Logger) *LogSummaryWriter {
	return &LogSummaryWriter{logger: logger}
}

func (w *LogSummaryWriter) WriteSummary(_ context.Context, markdown string) error {
	w.logger.Info("review summary", "summary", markdown)
	return nil
}

// StepSummaryWriter appends the run summary to a GitHub Actions step summary
// file, the one named by GITHUB_STEP_SUMMARY on a runner.
type StepSummaryWriter struct {
	path string
}

// NewStepSummaryWriter creates a writer appending to the given file.
func NewStepSummaryWriter(path string) *StepSummaryWriter {
	return &StepSummaryWriter{path: path}
}

func (w *StepSummaryWriter) WriteSummary(_ context.Context, markdown string) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open step summary file %s: %w", w.path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s\n", markdown); err != nil {
		return fmt.Errorf("failed to write step summary: %w", err)
	}
	return nil
}
