package diff

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/sevigo/jules-warden/internal/core"
	"github.com/sevigo/jules-warden/internal/gitutil"
)

// GitSource computes diffs directly from a Git repository with go-git. It
// serves two callers: the CLI, which reviews the local Actions checkout, and
// the API source's empty-tree fallback for pushes onto brand-new branches.
type GitSource struct {
	gitc      *gitutil.Client
	localPath string // when set, open this checkout instead of cloning
	token     string // auth for clones; unused for local checkouts
	logger    *slog.Logger
}

// NewGitSource creates a source that clones the event's repository.
func NewGitSource(gitc *gitutil.Client, token string, logger *slog.Logger) *GitSource {
	return &GitSource{gitc: gitc, token: token, logger: logger}
}

// NewLocalGitSource creates a source over an existing checkout.
func NewLocalGitSource(gitc *gitutil.Client, path string, logger *slog.Logger) *GitSource {
	return &GitSource{gitc: gitc, localPath: path, logger: logger}
}

func (s *GitSource) Get(ctx context.Context, event *core.EventContext) (*core.Diff, error) {
	repo, cleanup, err := s.openRepo(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDiffUnavailable, err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	from, to, err := s.resolveRange(event, repo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDiffUnavailable, err)
	}

	content, err := patchBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDiffUnavailable, err)
	}
	return &core.Diff{Content: content, OriginalSize: len(content)}, nil
}

func (s *GitSource) openRepo(ctx context.Context, event *core.EventContext) (*git.Repository, func(), error) {
	if s.localPath != "" {
		repo, err := s.gitc.Open(s.localPath)
		return repo, nil, err
	}
	return s.gitc.CloneTemp(ctx, event.RepoCloneURL, s.token)
}

// resolveRange determines the commit range to diff. from is nil when the
// range starts at the empty tree (push onto a new branch).
func (s *GitSource) resolveRange(event *core.EventContext, repo *git.Repository) (*object.Commit, *object.Commit, error) {
	switch event.Kind {
	case core.EventKindPush:
		to, err := repo.CommitObject(plumbing.NewHash(event.AfterSHA))
		if err != nil {
			return nil, nil, fmt.Errorf("resolving after commit %s: %w", event.AfterSHA, err)
		}
		if event.BeforeSHA == "" || event.BeforeSHA == core.ZeroSHA {
			return nil, to, nil
		}
		from, err := repo.CommitObject(plumbing.NewHash(event.BeforeSHA))
		if err != nil {
			return nil, nil, fmt.Errorf("resolving before commit %s: %w", event.BeforeSHA, err)
		}
		return from, to, nil

	case core.EventKindPullRequest:
		head, err := repo.CommitObject(plumbing.NewHash(event.HeadSHA))
		if err != nil {
			return nil, nil, fmt.Errorf("resolving head commit %s: %w", event.HeadSHA, err)
		}
		base, err := resolveBranchCommit(repo, event.BaseRef)
		if err != nil {
			return nil, nil, err
		}
		// Diff from the merge base so the review only covers the PR's own
		// changes, not everything base gained since the branch point.
		mergeBases, err := base.MergeBase(head)
		if err == nil && len(mergeBases) > 0 {
			base = mergeBases[0]
		} else if err != nil {
			s.logger.Warn("merge-base computation failed, diffing against base tip",
				"base", event.BaseRef, "error", err)
		}
		return base, head, nil

	default:
		return nil, nil, fmt.Errorf("unsupported event kind %q", event.Kind)
	}
}

// resolveBranchCommit finds a branch tip, trying local then remote ref forms.
func resolveBranchCommit(repo *git.Repository, branch string) (*object.Commit, error) {
	for _, rev := range []string{branch, "refs/heads/" + branch, "origin/" + branch, "refs/remotes/origin/" + branch} {
		hash, err := repo.ResolveRevision(plumbing.Revision(rev))
		if err != nil {
			continue
		}
		return repo.CommitObject(*hash)
	}
	return nil, fmt.Errorf("could not resolve branch %q", branch)
}

// patchBetween renders the unified diff between two commits. A nil from
// commit means the empty tree.
func patchBetween(ctx context.Context, from, to *object.Commit) (string, error) {
	var fromTree *object.Tree
	if from != nil {
		var err error
		fromTree, err = from.Tree()
		if err != nil {
			return "", fmt.Errorf("reading from tree: %w", err)
		}
	}
	toTree, err := to.Tree()
	if err != nil {
		return "", fmt.Errorf("reading to tree: %w", err)
	}

	changes, err := object.DiffTreeWithOptions(ctx, fromTree, toTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return "", fmt.Errorf("diffing trees: %w", err)
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return "", fmt.Errorf("rendering patch: %w", err)
	}
	return patch.String(), nil
}
