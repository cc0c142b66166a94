package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/jules-warden/internal/config"
	"github.com/sevigo/jules-warden/internal/core"
	"github.com/sevigo/jules-warden/internal/diff"
	"github.com/sevigo/jules-warden/internal/github"
	"github.com/sevigo/jules-warden/internal/gitutil"
	"github.com/sevigo/jules-warden/internal/llm"
	"github.com/sevigo/jules-warden/internal/storage"
)

// ReviewJob runs the full review pipeline for one webhook event: acquire the
// diff, build the prompt, call the reviewer, and publish the findings.
type ReviewJob struct {
	cfg      *config.Config
	prompts  *llm.PromptBuilder
	reviewer llm.Reviewer
	store    storage.Store
	summary  github.SummaryWriter
	logger   *slog.Logger

	// newClient and newSource are factories so tests can substitute fakes
	// without network access or App credentials.
	newClient func(ctx context.Context, installationID int64) (github.Client, string, error)
	newSource func(client github.Client, token string) diff.Source
}

// NewReviewJob creates a ReviewJob wired to real GitHub App authentication
// and the API-backed diff source with a git fallback.
func NewReviewJob(cfg *config.Config, prompts *llm.PromptBuilder, reviewer llm.Reviewer, store storage.Store, summary github.SummaryWriter, logger *slog.Logger) core.Job {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if prompts == nil {
		panic("prompt builder cannot be nil")
	}
	if reviewer == nil {
		panic("reviewer cannot be nil")
	}
	if store == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	j := &ReviewJob{
		cfg:      cfg,
		prompts:  prompts,
		reviewer: reviewer,
		store:    store,
		summary:  summary,
		logger:   logger,
	}
	j.newClient = func(ctx context.Context, installationID int64) (github.Client, string, error) {
		return github.CreateInstallationClient(ctx, cfg, installationID, logger)
	}
	j.newSource = func(client github.Client, token string) diff.Source {
		fallback := diff.NewGitSource(gitutil.NewClient(logger), token, logger)
		return diff.NewAPISource(client, fallback, logger)
	}
	return j
}

// Run executes the review pipeline for one queued job. Degraded outcomes
// (review service down or rejecting) are reported on GitHub and do not fail
// the job; only pipeline-fatal conditions return an error.
func (j *ReviewJob) Run(ctx context.Context, job *core.ReviewJob) error {
	if err := validateJob(ctx, job); err != nil {
		j.logger.Error("input validation failed", "error", err)
		return fmt.Errorf("input validation failed: %w", err)
	}
	event := job.Event

	j.logger.Info("starting review job", "target", event.Target(), "delivery_id", job.DeliveryID)

	ghClient, token, err := j.newClient(ctx, event.InstallationID)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	publisher := github.NewPublisher(ghClient, j.store, j.summary, j.logger)

	d, err := j.newSource(ghClient, token).Get(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to acquire diff for %s: %w", event.Target(), err)
	}
	if d.Empty() {
		j.logger.Info("diff is empty, nothing to review", "target", event.Target())
		if err := publisher.PublishSummaryOnly(ctx, "No changes detected in the diff."); err != nil {
			j.logger.Warn("failed to write empty-diff summary", "error", err)
		}
		return nil
	}

	repoCfg := j.loadRepoConfig(ctx, ghClient, event)

	prompt, err := j.prompts.Build(event, d)
	if err != nil {
		return fmt.Errorf("failed to build review prompt: %w", err)
	}

	var note string
	findings, err := j.reviewer.Review(ctx, prompt)
	switch {
	case err == nil:
		// continue with whatever the reviewer returned
	case errors.Is(err, core.ErrReviewRejected), errors.Is(err, core.ErrReviewUnavailable):
		j.logger.Error("review could not be completed, publishing degraded summary",
			"target", event.Target(), "error", err)
		note = "⚠️ Review could not be completed. The review service did not return a result."
		findings = nil
	default:
		return fmt.Errorf("review failed for %s: %w", event.Target(), err)
	}
	degraded := note != ""

	if note == "" && d.Truncated {
		note = fmt.Sprintf("Diff was truncated to the size limit (%d of %d bytes reviewed).",
			j.cfg.DiffLimitBytes, d.OriginalSize)
	}

	result, err := publisher.Publish(ctx, event, d, findings, note, repoCfg)
	if err != nil {
		return fmt.Errorf("failed to publish findings for %s: %w", event.Target(), err)
	}

	record := &core.ReviewRecord{
		RepoFullName: event.RepoFullName,
		Target:       event.Target(),
		FindingCount: len(findings),
		PostedCount:  result.PostedCount,
		Degraded:     degraded,
	}
	if err := j.store.SaveReview(ctx, record); err != nil {
		j.logger.Warn("failed to persist review record", "target", event.Target(), "error", err)
	}

	j.logger.Info("review job completed",
		"target", event.Target(),
		"findings", len(findings),
		"posted", result.PostedCount,
		"skipped", result.SkippedCount,
		"degraded", degraded,
	)
	return nil
}

// loadRepoConfig fetches the optional .jules-warden.yml from the reviewed
// ref. Any failure falls back to defaults; a broken override file must not
// block the review.
func (j *ReviewJob) loadRepoConfig(ctx context.Context, ghClient github.Client, event *core.EventContext) *core.RepoConfig {
	ref := event.HeadSHA
	if event.Kind == core.EventKindPush {
		ref = event.AfterSHA
	}

	data, err := ghClient.GetFileContent(ctx, event.RepoOwner, event.RepoName, config.RepoConfigFileName, ref)
	if err != nil {
		j.logger.Debug("no repo config file, using defaults", "repo", event.RepoFullName, "error", err)
		return core.DefaultRepoConfig()
	}

	repoCfg, err := config.ParseRepoConfig(data)
	if err != nil {
		j.logger.Warn("repo config file is invalid, using defaults", "repo", event.RepoFullName, "error", err)
		return core.DefaultRepoConfig()
	}
	j.logger.Info("loaded repo config",
		"repo", event.RepoFullName, "min_severity", repoCfg.MinSeverity, "skip_paths", len(repoCfg.SkipPaths))
	return repoCfg
}

// validateJob ensures the queued job carries everything the pipeline needs.
func validateJob(ctx context.Context, job *core.ReviewJob) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	if job == nil || job.Event == nil {
		return fmt.Errorf("job event cannot be nil")
	}
	event := job.Event
	if event.RepoOwner == "" {
		return fmt.Errorf("repository owner cannot be empty")
	}
	if event.RepoName == "" {
		return fmt.Errorf("repository name cannot be empty")
	}
	if event.InstallationID <= 0 {
		return fmt.Errorf("installation ID must be positive, got: %d", event.InstallationID)
	}
	switch event.Kind {
	case core.EventKindPullRequest:
		if event.PRNumber <= 0 {
			return fmt.Errorf("pull request number must be positive, got: %d", event.PRNumber)
		}
		if event.HeadSHA == "" {
			return fmt.Errorf("pull request head SHA cannot be empty")
		}
	case core.EventKindPush:
		if event.AfterSHA == "" || event.AfterSHA == core.ZeroSHA {
			return fmt.Errorf("push has no reviewable head commit")
		}
	default:
		return fmt.Errorf("unsupported event kind %q", event.Kind)
	}
	return nil
}
