package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	gogithub "github.com/google/go-github/v73/github"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sevigo/jules-warden/internal/config"
	"github.com/sevigo/jules-warden/internal/core"
	"github.com/sevigo/jules-warden/internal/diff"
	"github.com/sevigo/jules-warden/internal/github"
	"github.com/sevigo/jules-warden/internal/gitutil"
	"github.com/sevigo/jules-warden/internal/llm"
	"github.com/sevigo/jules-warden/internal/logger"
	"github.com/sevigo/jules-warden/internal/storage"
)

var verbose bool

// Color definitions
var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgWhite)
	dimColor     = color.New(color.FgHiBlack)
	boldColor    = color.New(color.Bold)
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run a code review for the event that triggered this workflow",
	Long: `Run a code review for the GitHub event that triggered the current
Actions workflow.

The review command reads the event payload from GITHUB_EVENT_PATH, computes
the diff from the local repository checkout, sends it to the Jules review API,
and posts the findings back to the pull request or commit. The severity
summary is appended to the Actions step summary when GITHUB_STEP_SUMMARY is
available.

Examples:
  jules-warden review
  jules-warden review --verbose --repo-path /path/to/checkout`,
	Args: cobra.NoArgs,
	RunE: runReview,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	reviewCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	log := logger.New(level, os.Stderr)

	apiKey := viper.GetString("JULES_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("JULES_API_KEY is not set\n\nTip: Pass the key as a secret to the workflow step")
	}
	token := viper.GetString("GITHUB_TOKEN")
	if token == "" {
		return fmt.Errorf("GITHUB_TOKEN is not set\n\nTip: Actions provides it as ${{ secrets.GITHUB_TOKEN }}")
	}

	checkout := repoPath
	if checkout == "" {
		checkout = os.Getenv("GITHUB_WORKSPACE")
	}
	if checkout == "" {
		return fmt.Errorf("repository checkout not found\n\nTip: Set --repo-path or run inside GitHub Actions")
	}

	event, err := eventFromWorkflow()
	if err != nil {
		return fmt.Errorf("failed to read workflow event: %w", err)
	}

	titleColor.Println("🚀 Jules Warden - Code Review")
	dimColor.Printf("   Target: %s\n\n", event.Target())

	// Diff from the local checkout; Actions already fetched the history.
	source := diff.NewLocalGitSource(gitutil.NewClient(log), checkout, log)
	d, err := source.Get(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to compute diff: %w\n\nTip: Use 'fetch-depth: 0' in the checkout step so base commits are available", err)
	}

	ghClient := github.NewPATClient(ctx, token, log)
	publisher := github.NewPublisher(ghClient, storage.NewMemoryStore(), stepSummaryWriter(), log)

	if d.Empty() {
		successColor.Println("No changes detected in the diff, nothing to review.")
		return publisher.PublishSummaryOnly(ctx, "No changes detected in the diff.")
	}
	dimColor.Printf("   Diff: %d bytes\n", d.OriginalSize)

	repoCfg, err := config.LoadRepoConfig(checkout)
	if err != nil && !errors.Is(err, config.ErrRepoConfigNotFound) {
		log.Warn("repo config file is invalid, using defaults", "error", err)
		repoCfg = core.DefaultRepoConfig()
	}

	prompts, err := llm.NewPromptBuilder(viper.GetString("PROMPT_TEMPLATE_PATH"), viper.GetInt("DIFF_LIMIT_BYTES"), log)
	if err != nil {
		return fmt.Errorf("failed to load prompt template: %w", err)
	}
	prompt, err := prompts.Build(event, d)
	if err != nil {
		return fmt.Errorf("failed to build review prompt: %w", err)
	}

	infoColor.Println("Requesting review...")
	reviewer := llm.NewClient(viper.GetString("JULES_BASE_URL"), apiKey, viper.GetString("JULES_MODEL"), log)

	var note string
	findings, err := reviewer.Review(ctx, prompt)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrReviewRejected), errors.Is(err, core.ErrReviewUnavailable):
		warnColor.Println("⚠️ Review could not be completed, reporting a degraded result.")
		note = "⚠️ Review could not be completed. The review service did not return a result."
		findings = nil
	default:
		return fmt.Errorf("review failed: %w", err)
	}

	result, err := publisher.Publish(ctx, event, d, findings, note, repoCfg)
	if err != nil {
		return fmt.Errorf("failed to publish findings: %w", err)
	}

	printFindings(findings)
	dimColor.Printf("\nPosted %d comment(s), skipped %d.\n", result.PostedCount, result.SkippedCount)
	return nil
}

// eventFromWorkflow builds the event context from the Actions event payload.
func eventFromWorkflow() (*core.EventContext, error) {
	eventPath := os.Getenv("GITHUB_EVENT_PATH")
	if eventPath == "" {
		return nil, fmt.Errorf("GITHUB_EVENT_PATH is not set")
	}
	payload, err := os.ReadFile(eventPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read event payload: %w", err)
	}

	switch name := os.Getenv("GITHUB_EVENT_NAME"); name {
	case "pull_request", "pull_request_target":
		var event gogithub.PullRequestEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("failed to parse pull request payload: %w", err)
		}
		return pullRequestContext(&event)
	case "push":
		var event gogithub.PushEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("failed to parse push payload: %w", err)
		}
		return pushContext(&event)
	default:
		return nil, fmt.Errorf("unsupported workflow event %q", name)
	}
}

// pullRequestContext maps an Actions pull request payload onto the internal
// event shape. Unlike webhooks there is no App installation involved.
func pullRequestContext(event *gogithub.PullRequestEvent) (*core.EventContext, error) {
	repo := event.GetRepo()
	pr := event.GetPullRequest()
	if repo.GetOwner().GetLogin() == "" || repo.GetName() == "" || pr.GetNumber() <= 0 {
		return nil, fmt.Errorf("pull request payload is missing repository or number")
	}
	if pr.GetHead().GetSHA() == "" || pr.GetBase().GetRef() == "" {
		return nil, fmt.Errorf("pull request head or base information is missing")
	}
	return &core.EventContext{
		Kind:         core.EventKindPullRequest,
		RepoOwner:    repo.GetOwner().GetLogin(),
		RepoName:     repo.GetName(),
		RepoFullName: repo.GetFullName(),
		RepoCloneURL: repo.GetCloneURL(),
		PRNumber:     pr.GetNumber(),
		PRTitle:      pr.GetTitle(),
		BaseRef:      pr.GetBase().GetRef(),
		HeadRef:      pr.GetHead().GetRef(),
		HeadSHA:      pr.GetHead().GetSHA(),
	}, nil
}

func pushContext(event *gogithub.PushEvent) (*core.EventContext, error) {
	repo := event.GetRepo()
	if repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("push payload is missing repository information")
	}
	if event.GetAfter() == "" || event.GetAfter() == core.ZeroSHA {
		return nil, fmt.Errorf("push has no reviewable head commit")
	}
	return &core.EventContext{
		Kind:         core.EventKindPush,
		RepoOwner:    repo.GetOwner().GetLogin(),
		RepoName:     repo.GetName(),
		RepoFullName: repo.GetFullName(),
		RepoCloneURL: repo.GetCloneURL(),
		Ref:          event.GetRef(),
		BeforeSHA:    event.GetBefore(),
		AfterSHA:     event.GetAfter(),
	}, nil
}

// stepSummaryWriter returns the Actions step summary sink when available.
func stepSummaryWriter() github.SummaryWriter {
	path := os.Getenv("GITHUB_STEP_SUMMARY")
	if path == "" {
		return nil
	}
	return github.NewStepSummaryWriter(path)
}

func printFindings(findings []core.Finding) {
	separator := strings.Repeat("═", 60)

	fmt.Println()
	titleColor.Println(separator)
	titleColor.Println("📋 REVIEW RESULTS")
	titleColor.Println(separator)

	if len(findings) == 0 {
		fmt.Println()
		successColor.Println("✅ No issues found!")
		return
	}

	for i, f := range findings {
		fmt.Println()
		printSeverityBadge(f.Severity)
		if f.File != "" {
			boldColor.Printf(" %s", f.File)
			if f.Line > 0 {
				dimColor.Printf(":%d", f.Line)
			}
		}
		fmt.Println()
		infoColor.Printf("%s\n", f.Message)
		if f.Suggestion != "" {
			dimColor.Printf("Suggestion: %s\n", f.Suggestion)
		}

		if i < len(findings)-1 {
			fmt.Println()
			dimColor.Println(strings.Repeat("─", 40))
		}
	}
	fmt.Println()
}

func printSeverityBadge(severity core.Severity) {
	switch severity {
	case core.SeverityCritical:
		color.New(color.BgRed, color.FgWhite, color.Bold).Printf(" %s ", severity)
	case core.SeverityHigh:
		color.New(color.BgHiRed, color.FgWhite).Printf(" %s ", severity)
	case core.SeverityMedium:
		color.New(color.BgYellow, color.FgBlack).Printf(" %s ", severity)
	case core.SeverityLow:
		color.New(color.BgGreen, color.FgWhite).Printf(" %s ", severity)
	default:
		color.New(color.BgWhite, color.FgBlack).Printf(" %s ", severity)
	}
}
