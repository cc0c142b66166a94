package core

import "errors"

// Sentinel errors for the review pipeline. Stage boundaries use errors.Is on
// these to decide between failing the job and degrading to a summary-only
// result.
var (
	// ErrDiffUnavailable means refs could not be resolved or the diff
	// computation failed. Fatal to the job; no review is attempted.
	ErrDiffUnavailable = errors.New("diff unavailable")

	// ErrTemplateMissing means the prompt template could not be loaded or
	// parsed. Fatal to the job; no review is attempted without instructions.
	ErrTemplateMissing = errors.New("prompt template missing")

	// ErrReviewRejected means the review API returned a non-retryable client
	// error. The job continues and publishes an empty result with a note.
	ErrReviewRejected = errors.New("review request rejected")

	// ErrReviewUnavailable means retries against the review API were
	// exhausted. Same degraded-continue behavior as ErrReviewRejected.
	ErrReviewUnavailable = errors.New("review service unavailable")
)
