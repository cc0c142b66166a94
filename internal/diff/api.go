package diff

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/jules-warden/internal/core"
	"github.com/sevigo/jules-warden/internal/github"
)

// APISource fetches diffs from the GitHub API: the raw pull request diff for
// PR events and the commit comparison for pushes. A push from a brand-new
// branch has the all-zero "before" SHA, which the compare endpoint cannot
// express; those are delegated to the Git fallback, which diffs against the
// empty tree.
type APISource struct {
	client   github.Client
	fallback Source
	logger   *slog.Logger
}

// NewAPISource creates an API-backed source. fallback may be nil, in which
// case zero-before pushes fail with core.ErrDiffUnavailable.
func NewAPISource(client github.Client, fallback Source, logger *slog.Logger) *APISource {
	return &APISource{client: client, fallback: fallback, logger: logger}
}

func (s *APISource) Get(ctx context.Context, event *core.EventContext) (*core.Diff, error) {
	switch event.Kind {
	case core.EventKindPullRequest:
		raw, err := s.client.GetPullRequestDiff(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
		if err != nil {
			return nil, fmt.Errorf("%w: pull request diff: %v", core.ErrDiffUnavailable, err)
		}
		return &core.Diff{Content: raw, OriginalSize: len(raw)}, nil

	case core.EventKindPush:
		if event.BeforeSHA == "" || event.BeforeSHA == core.ZeroSHA {
			if s.fallback == nil {
				return nil, fmt.Errorf("%w: push from new branch and no git fallback configured", core.ErrDiffUnavailable)
			}
			s.logger.Info("push from new branch, computing diff against empty tree",
				"repo", event.RepoFullName, "after", event.AfterSHA)
			return s.fallback.Get(ctx, event)
		}
		raw, err := s.client.CompareDiff(ctx, event.RepoOwner, event.RepoName, event.BeforeSHA, event.AfterSHA)
		if err != nil {
			return nil, fmt.Errorf("%w: compare %s...%s: %v", core.ErrDiffUnavailable, event.BeforeSHA, event.AfterSHA, err)
		}
		return &core.Diff{Content: raw, OriginalSize: len(raw)}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported event kind %q", core.ErrDiffUnavailable, event.Kind)
	}
}
