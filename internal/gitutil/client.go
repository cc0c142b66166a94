// Package gitutil provides a thin client for opening and cloning Git
// repositories for diff computation.
package gitutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Client handles interacting with Git repositories.
type Client struct {
	logger *slog.Logger
}

// NewClient returns a new Client instance.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{logger: logger}
}

// Open opens an existing repository, e.g. the Actions checkout in CLI mode.
func (c *Client) Open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return repo, nil
}

// CloneTemp clones a repository bare into a temporary directory and returns
// it with a cleanup function. Bare is enough: diff computation only needs the
// object database, never a worktree.
func (c *Client) CloneTemp(ctx context.Context, repoURL, token string) (*git.Repository, func(), error) {
	path, err := os.MkdirTemp("", "jules-warden-repo-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	cleanup := func() {
		if removeErr := os.RemoveAll(path); removeErr != nil {
			c.logger.Error("failed to remove temp repo", "path", path, "error", removeErr)
		}
	}

	opts := &git.CloneOptions{URL: repoURL}
	if token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: token}
	}

	c.logger.Info("cloning repository", "url", repoURL, "path", path)
	repo, err := git.PlainCloneContext(ctx, path, true, opts)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to clone %s: %w", repoURL, err)
	}
	return repo, cleanup, nil
}
