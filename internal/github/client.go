// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"log/slog"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"
)

// Client defines the set of GitHub operations the review pipeline needs:
// fetching diffs, posting comments, and reading repository files.
type Client interface {
	// GetPullRequestDiff retrieves the unified diff of a pull request.
	GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error)
	// CompareDiff retrieves the unified diff between two commits (base...head).
	CompareDiff(ctx context.Context, owner, repo, base, head string) (string, error)
	// CreateReviewComment posts an inline comment on a pull request diff line.
	CreateReviewComment(ctx context.Context, owner, repo string, number int, comment *github.PullRequestComment) error
	// CreateIssueComment posts a top-level comment on a pull request.
	CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error
	// CreateCommitComment posts a top-level comment on a commit.
	CreateCommitComment(ctx context.Context, owner, repo, sha, body string) error
	// GetFileContent reads a file from the repository at the given ref.
	GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
}

type gitHubClient struct {
	client *github.Client
	logger *slog.Logger
}

// NewClient wraps the official go-github client to provide a focused,
// testable interface for application-specific GitHub operations.
func NewClient(client *github.Client, logger *slog.Logger) Client {
	return &gitHubClient{client: client, logger: logger}
}

// NewPATClient creates a GitHub client authenticated with a personal access
// token. Used by the CLI, where the Actions runner provides GITHUB_TOKEN and
// no App installation is available.
func NewPATClient(ctx context.Context, token string, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &gitHubClient{client: github.NewClient(tc), logger: logger}
}

func (g *gitHubClient) GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	diff, _, err := g.client.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		g.logger.Error("failed to get pull request diff", "owner", owner, "repo", repo, "pr", number, "error", err)
		return "", err
	}
	return diff, nil
}

func (g *gitHubClient) CompareDiff(ctx context.Context, owner, repo, base, head string) (string, error) {
	diff, _, err := g.client.Repositories.CompareCommitsRaw(ctx, owner, repo, base, head, github.RawOptions{Type: github.Diff})
	if err != nil {
		g.logger.Error("failed to compare commits", "owner", owner, "repo", repo, "base", base, "head", head, "error", err)
		return "", err
	}
	return diff, nil
}

func (g *gitHubClient) CreateReviewComment(ctx context.Context, owner, repo string, number int, comment *github.PullRequestComment) error {
	_, _, err := g.client.PullRequests.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		g.logger.Error("failed to create review comment",
			"owner", owner, "repo", repo, "pr", number,
			"path", comment.GetPath(), "line", comment.GetLine(), "error", err)
	}
	return err
}

func (g *gitHubClient) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	comment := &github.IssueComment{Body: &body}
	_, _, err := g.client.Issues.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		g.logger.Error("failed to create issue comment", "owner", owner, "repo", repo, "pr", number, "error", err)
	}
	return err
}

func (g *gitHubClient) CreateCommitComment(ctx context.Context, owner, repo, sha, body string) error {
	comment := &github.RepositoryComment{Body: &body}
	_, _, err := g.client.Repositories.CreateComment(ctx, owner, repo, sha, comment)
	if err != nil {
		g.logger.Error("failed to create commit comment", "owner", owner, "repo", repo, "sha", sha, "error", err)
	}
	return err
}

func (g *gitHubClient) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	file, _, _, err := g.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, err
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}
