// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v73/github"
)

// EventKind distinguishes the two webhook event shapes the reviewer handles.
type EventKind string

const (
	EventKindPullRequest EventKind = "pull_request"
	EventKindPush        EventKind = "push"
)

// ZeroSHA is the all-zero object ID GitHub sends as "before" when a branch is
// newly created and has no prior history.
const ZeroSHA = "0000000000000000000000000000000000000000"

// supportedPRActions lists the pull request actions that should trigger a review.
var supportedPRActions = map[string]struct{}{
	"opened":           {},
	"reopened":         {},
	"synchronize":      {},
	"ready_for_review": {},
}

// EventContext is a simplified, internal view of a GitHub webhook event.
// It is created once per delivery and read-only afterwards.
type EventContext struct {
	Kind EventKind

	// Repository details
	RepoOwner    string
	RepoName     string
	RepoFullName string
	RepoCloneURL string

	InstallationID int64
	DeliveryID     string

	// Pull request fields (Kind == EventKindPullRequest)
	PRNumber int
	PRTitle  string
	BaseRef  string
	HeadRef  string
	HeadSHA  string

	// Push fields (Kind == EventKindPush)
	Ref       string
	BeforeSHA string
	AfterSHA  string
}

// Target returns a short human-readable identifier for the reviewed object,
// e.g. "owner/repo#12" or "owner/repo@abcdef1".
func (e *EventContext) Target() string {
	if e.Kind == EventKindPullRequest {
		return fmt.Sprintf("%s#%d", e.RepoFullName, e.PRNumber)
	}
	sha := e.AfterSHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return fmt.Sprintf("%s@%s", e.RepoFullName, sha)
}

// Branch extracts the branch name from a push ref like "refs/heads/main".
func (e *EventContext) Branch() string {
	return strings.TrimPrefix(e.Ref, "refs/heads/")
}

// EventFromPullRequest transforms a raw GitHub PullRequestEvent into the
// application's internal EventContext. It acts as an anti-corruption layer,
// validating the incoming payload before it is queued for processing. Only
// actions that change the reviewable content are accepted.
func EventFromPullRequest(event *github.PullRequestEvent, deliveryID string) (*EventContext, error) {
	if _, ok := supportedPRActions[event.GetAction()]; !ok {
		return nil, fmt.Errorf("pull request action %q is not reviewable", event.GetAction())
	}

	repo := event.GetRepo()
	if repo == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("repository or owner information is missing from the event")
	}

	pr := event.GetPullRequest()
	if pr.GetNumber() <= 0 {
		return nil, fmt.Errorf("invalid pull request number: %d", pr.GetNumber())
	}
	if pr.GetHead().GetSHA() == "" || pr.GetBase().GetRef() == "" {
		return nil, fmt.Errorf("pull request head or base information is missing")
	}

	if event.GetInstallation().GetID() == 0 {
		return nil, fmt.Errorf("installation ID is missing from the event")
	}

	return &EventContext{
		Kind:           EventKindPullRequest,
		RepoOwner:      repo.GetOwner().GetLogin(),
		RepoName:       repo.GetName(),
		RepoFullName:   repo.GetFullName(),
		RepoCloneURL:   repo.GetCloneURL(),
		InstallationID: event.GetInstallation().GetID(),
		DeliveryID:     deliveryID,
		PRNumber:       pr.GetNumber(),
		PRTitle:        pr.GetTitle(),
		BaseRef:        pr.GetBase().GetRef(),
		HeadRef:        pr.GetHead().GetRef(),
		HeadSHA:        pr.GetHead().GetSHA(),
	}, nil
}

// EventFromPush transforms a raw GitHub PushEvent into the application's
// internal EventContext. Branch deletions (zero "after" SHA) are rejected
// because there is nothing left to review.
func EventFromPush(event *github.PushEvent, deliveryID string) (*EventContext, error) {
	repo := event.GetRepo()
	if repo == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("repository or owner information is missing from the event")
	}

	if event.GetAfter() == "" || event.GetAfter() == ZeroSHA {
		return nil, fmt.Errorf("push has no reviewable head commit")
	}

	if event.GetInstallation().GetID() == 0 {
		return nil, fmt.Errorf("installation ID is missing from the event")
	}

	return &EventContext{
		Kind:           EventKindPush,
		RepoOwner:      repo.GetOwner().GetLogin(),
		RepoName:       repo.GetName(),
		RepoFullName:   repo.GetFullName(),
		RepoCloneURL:   repo.GetCloneURL(),
		InstallationID: event.GetInstallation().GetID(),
		DeliveryID:     deliveryID,
		Ref:            event.GetRef(),
		BeforeSHA:      event.GetBefore(),
		AfterSHA:       event.GetAfter(),
	}, nil
}
