// Package diff acquires the unified diff a review run operates on, either
// from the GitHub API or from a Git repository.
package diff

import (
	"context"

	"github.com/sevigo/jules-warden/internal/core"
)

// Source obtains the unified diff for an event. An empty diff is a valid
// result meaning "nothing to review"; callers must not treat it as failure.
// Resolution or computation failures wrap core.ErrDiffUnavailable.
type Source interface {
	Get(ctx context.Context, event *core.EventContext) (*core.Diff, error)
}
