package github

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/jules-warden/internal/core"
)

// maxSummaryFindings caps how many findings are listed individually in the
// summary; the severity table always covers all of them.
const maxSummaryFindings = 20

// KeyStore records which finding keys have already been posted for a target,
// so identical findings are not posted twice within a run or across reruns.
type KeyStore interface {
	WasPosted(ctx context.Context, target, key string) (bool, error)
	MarkPosted(ctx context.Context, target, key string) error
}

// SummaryWriter receives the Markdown run summary. The CLI appends it to the
// Actions step summary; the server logs it.
type SummaryWriter interface {
	WriteSummary(ctx context.Context, markdown string) error
}

// Publisher maps findings onto GitHub comments: inline review comments for
// pull requests, one aggregated commit comment for pushes, and a severity
// summary in both cases.
type Publisher struct {
	client  Client
	keys    KeyStore
	summary SummaryWriter
	logger  *slog.Logger
}

// NewPublisher creates a publisher. summary may be nil when the host exposes
// no run-summary surface.
func NewPublisher(client Client, keys KeyStore, summary SummaryWriter, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, keys: keys, summary: summary, logger: logger}
}

// FindingKey computes the stable deduplication key for a finding. Reruns on
// identical content produce identical keys and are skipped.
func FindingKey(f core.Finding) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d:%s", f.File, f.Line, f.Message))
	return hex.EncodeToString(sum[:])
}

// Publish posts the findings for the event and writes the run summary.
// note, when non-empty, is surfaced in the summary (e.g. a degraded-review
// marker). A failure to post one comment is logged and counted as skipped;
// it never aborts the remaining findings.
func (p *Publisher) Publish(ctx context.Context, event *core.EventContext, diff *core.Diff, findings []core.Finding, note string, repoCfg *core.RepoConfig) (core.PublishResult, error) {
	if repoCfg == nil {
		repoCfg = core.DefaultRepoConfig()
	}

	kept := make([]core.Finding, 0, len(findings))
	for _, f := range findings {
		if repoCfg.ShouldSkip(f.File) {
			p.logger.Info("finding suppressed by repo config", "file", f.File, "line", f.Line)
			continue
		}
		kept = append(kept, f)
	}

	var result core.PublishResult
	var err error
	switch event.Kind {
	case core.EventKindPullRequest:
		result, err = p.publishPullRequest(ctx, event, diff, kept, note, repoCfg)
	case core.EventKindPush:
		result, err = p.publishPush(ctx, event, kept, note)
	default:
		return core.PublishResult{}, fmt.Errorf("unsupported event kind %q", event.Kind)
	}
	if err != nil {
		return result, err
	}

	if werr := p.writeSummary(ctx, BuildSummary(kept, note)); werr != nil {
		p.logger.Warn("failed to write run summary", "error", werr)
	}
	return result, nil
}

// PublishSummaryOnly writes the run summary without posting any comments.
// Used when the pipeline short-circuits on an empty diff.
func (p *Publisher) PublishSummaryOnly(ctx context.Context, note string) error {
	return p.writeSummary(ctx, BuildSummary(nil, note))
}

func (p *Publisher) publishPullRequest(ctx context.Context, event *core.EventContext, diff *core.Diff, findings []core.Finding, note string, repoCfg *core.RepoConfig) (core.PublishResult, error) {
	var result core.PublishResult
	target := event.Target()

	var commentable map[string]map[int]struct{}
	if diff != nil {
		commentable = ParseCommentableLines(diff.Content, p.logger)
	}

	var folded []core.Finding
	for _, f := range findings {
		if f.Line <= 0 || f.File == "" {
			folded = append(folded, f)
			continue
		}
		if _, ok := commentable[f.File][f.Line]; !ok {
			p.logger.Info("finding line not present in diff, folding into summary", "file", f.File, "line", f.Line)
			folded = append(folded, f)
			continue
		}
		if f.Severity.Rank() > repoCfg.MinSeverity.Rank() {
			folded = append(folded, f)
			continue
		}

		key := FindingKey(f)
		posted, err := p.wasPosted(ctx, target, key)
		if err != nil {
			p.logger.Warn("posted-key lookup failed, posting anyway", "error", err)
		}
		if posted {
			result.SkippedCount++
			continue
		}

		comment := &github.PullRequestComment{
			Body:     github.Ptr(formatFindingBody(f)),
			CommitID: github.Ptr(event.HeadSHA),
			Path:     github.Ptr(f.File),
			Line:     github.Ptr(f.Line),
			Side:     github.Ptr("RIGHT"),
		}
		if err := p.client.CreateReviewComment(ctx, event.RepoOwner, event.RepoName, event.PRNumber, comment); err != nil {
			p.logger.Warn("failed to post inline comment, skipping finding",
				"file", f.File, "line", f.Line, "error", err)
			result.SkippedCount++
			continue
		}
		p.markPosted(ctx, target, key)
		result.PostedCount++
	}

	summary := BuildSummary(findings, note)
	if len(folded) > 0 {
		summary += foldedSection(folded)
	}

	key := summaryKey(summary)
	if posted, _ := p.wasPosted(ctx, target, key); posted {
		p.logger.Info("identical summary already posted, skipping", "target", target)
		result.SkippedCount++
		return result, nil
	}
	if err := p.client.CreateIssueComment(ctx, event.RepoOwner, event.RepoName, event.PRNumber, summary); err != nil {
		p.logger.Warn("failed to post summary comment", "target", target, "error", err)
		result.SkippedCount++
		return result, nil
	}
	p.markPosted(ctx, target, key)
	result.PostedCount++
	return result, nil
}

func (p *Publisher) publishPush(ctx context.Context, event *core.EventContext, findings []core.Finding, note string) (core.PublishResult, error) {
	var result core.PublishResult
	target := event.Target()

	// Commit comments have no reliable inline positioning, so a push gets a
	// single aggregated comment carrying the summary and every finding.
	body := BuildSummary(findings, note)
	if len(findings) > 0 {
		body += foldedSection(findings)
	}

	key := summaryKey(body)
	if posted, err := p.wasPosted(ctx, target, key); err == nil && posted {
		p.logger.Info("identical commit comment already posted, skipping", "target", target)
		result.SkippedCount++
		return result, nil
	}

	if err := p.client.CreateCommitComment(ctx, event.RepoOwner, event.RepoName, event.AfterSHA, body); err != nil {
		p.logger.Warn("failed to post commit comment", "target", target, "error", err)
		result.SkippedCount++
		return result, nil
	}
	p.markPosted(ctx, target, key)
	result.PostedCount++
	return result, nil
}

func (p *Publisher) wasPosted(ctx context.Context, target, key string) (bool, error) {
	if p.keys == nil {
		return false, nil
	}
	return p.keys.WasPosted(ctx, target, key)
}

func (p *Publisher) markPosted(ctx context.Context, target, key string) {
	if p.keys == nil {
		return
	}
	if err := p.keys.MarkPosted(ctx, target, key); err != nil {
		p.logger.Warn("failed to record posted key", "target", target, "error", err)
	}
}

func (p *Publisher) writeSummary(ctx context.Context, markdown string) error {
	if p.summary == nil {
		return nil
	}
	return p.summary.WriteSummary(ctx, markdown)
}

func summaryKey(body string) string {
	sum := sha256.Sum256([]byte("summary:" + body))
	return hex.EncodeToString(sum[:])
}

// formatFindingBody renders one finding as an inline comment body.
func formatFindingBody(f core.Finding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**[%s]** %s", f.Severity, f.Message)
	if f.Suggestion != "" {
		fmt.Fprintf(&sb, "\n\n**Suggestion:** %s", f.Suggestion)
	}
	return sb.String()
}

// BuildSummary renders the severity-breakdown summary as a Markdown table.
func BuildSummary(findings []core.Finding, note string) string {
	counts := make(map[core.Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}

	var sb strings.Builder
	sb.WriteString("# Code Review Results\n\n")
	if note != "" {
		fmt.Fprintf(&sb, "> %s\n\n", note)
	}

	sb.WriteString("| Severity | Count |\n")
	sb.WriteString("|----------|-------|\n")
	for _, sev := range core.Severities {
		fmt.Fprintf(&sb, "| %s | %d |\n", sev, counts[sev])
	}
	fmt.Fprintf(&sb, "\n**Total Issues:** %d\n", len(findings))

	if len(findings) == 0 && note == "" {
		sb.WriteString("\n✅ No issues found!\n")
	}
	return sb.String()
}

// foldedSection lists findings that could not be posted inline.
func foldedSection(findings []core.Finding) string {
	var sb strings.Builder
	sb.WriteString("\n## Issues\n\n")
	for i, f := range findings {
		if i == maxSummaryFindings {
			fmt.Fprintf(&sb, "\n... and %d more issues\n", len(findings)-maxSummaryFindings)
			break
		}
		location := f.File
		if location == "" {
			location = "(general)"
		}
		if f.Line > 0 {
			location = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		fmt.Fprintf(&sb, "- **%s** `%s` - %s\n", f.Severity, location, f.Message)
	}
	return sb.String()
}
