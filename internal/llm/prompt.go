// Package llm builds review prompts, calls the Jules review API, and parses
// its loosely structured output into typed findings.
package llm

import (
	"bytes"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"text/template"

	"github.com/sevigo/jules-warden/internal/core"
)

//go:embed prompts/*.prompt
var promptFiles embed.FS

// TruncationMarker is appended to a diff that was cut down to the size limit.
// It is added before template substitution so the reviewer model sees it.
const TruncationMarker = "\n\n[... diff truncated due to size ...]"

// PromptBuilder renders the review prompt from a template and a diff.
type PromptBuilder struct {
	tmpl       *template.Template
	limitBytes int
	logger     *slog.Logger
}

type promptData struct {
	Repository string
	Target     string
	Diff       string
}

// NewPromptBuilder loads the prompt template. templatePath overrides the
// embedded default when non-empty; a template that cannot be read or parsed
// yields core.ErrTemplateMissing, which is fatal to any review run.
func NewPromptBuilder(templatePath string, limitBytes int, logger *slog.Logger) (*PromptBuilder, error) {
	var content []byte
	var err error
	if templatePath != "" {
		content, err = os.ReadFile(templatePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrTemplateMissing, templatePath, err)
		}
	} else {
		content, err = promptFiles.ReadFile("prompts/code_review.prompt")
		if err != nil {
			return nil, fmt.Errorf("%w: embedded default: %v", core.ErrTemplateMissing, err)
		}
	}

	tmpl, err := template.New("code_review").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w: parse failed: %v", core.ErrTemplateMissing, err)
	}

	return &PromptBuilder{tmpl: tmpl, limitBytes: limitBytes, logger: logger}, nil
}

// Build renders the prompt for one review run. Oversized diffs are truncated
// to the byte limit with a visible marker, and the diff is flagged so the
// summary can mention it.
func (b *PromptBuilder) Build(event *core.EventContext, diff *core.Diff) (string, error) {
	content := diff.Content
	if len(content) > b.limitBytes {
		b.logger.Info("diff exceeds size limit, truncating",
			"size", len(content), "limit", b.limitBytes)
		content = content[:b.limitBytes] + TruncationMarker
		diff.Truncated = true
	}

	var buf bytes.Buffer
	err := b.tmpl.Execute(&buf, promptData{
		Repository: event.RepoFullName,
		Target:     event.Target(),
		Diff:       content,
	})
	if err != nil {
		return "", fmt.Errorf("%w: render failed: %v", core.ErrTemplateMissing, err)
	}
	return buf.String(), nil
}
