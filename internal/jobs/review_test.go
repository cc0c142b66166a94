package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	gogithub "github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/jules-warden/internal/config"
	"github.com/sevigo/jules-warden/internal/core"
	"github.com/sevigo/jules-warden/internal/diff"
	"github.com/sevigo/jules-warden/internal/github"
	"github.com/sevigo/jules-warden/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const prDiff = `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,2 +1,3 @@
 package main
+var debug = true
 func main() {}
`

// fakeGHClient records every posted comment.
type fakeGHClient struct {
	reviewComments []*gogithub.PullRequestComment
	issueComments  []string
	commitComments []string
	repoConfigYAML []byte
}

func (f *fakeGHClient) GetPullRequestDiff(context.Context, string, string, int) (string, error) {
	return "", nil
}

func (f *fakeGHClient) CompareDiff(context.Context, string, string, string, string) (string, error) {
	return "", nil
}

func (f *fakeGHClient) CreateReviewComment(_ context.Context, _, _ string, _ int, comment *gogithub.PullRequestComment) error {
	f.reviewComments = append(f.reviewComments, comment)
	return nil
}

func (f *fakeGHClient) CreateIssueComment(_ context.Context, _, _ string, _ int, body string) error {
	f.issueComments = append(f.issueComments, body)
	return nil
}

func (f *fakeGHClient) CreateCommitComment(_ context.Context, _, _, _, body string) error {
	f.commitComments = append(f.commitComments, body)
	return nil
}

func (f *fakeGHClient) GetFileContent(context.Context, string, string, string, string) ([]byte, error) {
	if f.repoConfigYAML == nil {
		return nil, fmt.Errorf("not found")
	}
	return f.repoConfigYAML, nil
}

// fakeSource serves a fixed diff or error.
type fakeSource struct {
	diff *core.Diff
	err  error
}

func (f *fakeSource) Get(context.Context, *core.EventContext) (*core.Diff, error) {
	return f.diff, f.err
}

// fakeReviewer serves fixed findings or an error.
type fakeReviewer struct {
	findings []core.Finding
	err      error
	prompts  []string
}

func (f *fakeReviewer) Review(_ context.Context, prompt string) ([]core.Finding, error) {
	f.prompts = append(f.prompts, prompt)
	return f.findings, f.err
}

// fakeStore records review records; posted keys live in a map.
type fakeStore struct {
	records []core.ReviewRecord
	posted  map[string]struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{posted: make(map[string]struct{})}
}

func (f *fakeStore) SaveReview(_ context.Context, record *core.ReviewRecord) error {
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeStore) WasPosted(_ context.Context, target, key string) (bool, error) {
	_, ok := f.posted[target+"/"+key]
	return ok, nil
}

func (f *fakeStore) MarkPosted(_ context.Context, target, key string) error {
	f.posted[target+"/"+key] = struct{}{}
	return nil
}

// fakeSummary collects run summaries.
type fakeSummary struct {
	summaries []string
}

func (f *fakeSummary) WriteSummary(_ context.Context, markdown string) error {
	f.summaries = append(f.summaries, markdown)
	return nil
}

func newTestJob(t *testing.T, client *fakeGHClient, source *fakeSource, reviewer *fakeReviewer, store *fakeStore, summary *fakeSummary) *ReviewJob {
	t.Helper()

	prompts, err := llm.NewPromptBuilder("", 50000, discardLogger())
	require.NoError(t, err)

	j := &ReviewJob{
		cfg:      &config.Config{DiffLimitBytes: 50000},
		prompts:  prompts,
		reviewer: reviewer,
		store:    store,
		summary:  summary,
		logger:   discardLogger(),
	}
	j.newClient = func(context.Context, int64) (github.Client, string, error) {
		return client, "test-token", nil
	}
	j.newSource = func(github.Client, string) diff.Source {
		return source
	}
	return j
}

func prJob() *core.ReviewJob {
	return &core.ReviewJob{
		Event: &core.EventContext{
			Kind:           core.EventKindPullRequest,
			RepoOwner:      "octocat",
			RepoName:       "hello",
			RepoFullName:   "octocat/hello",
			InstallationID: 42,
			PRNumber:       12,
			HeadSHA:        "abc1234",
		},
		DeliveryID: "delivery-1",
	}
}

func pushJob() *core.ReviewJob {
	return &core.ReviewJob{
		Event: &core.EventContext{
			Kind:           core.EventKindPush,
			RepoOwner:      "octocat",
			RepoName:       "hello",
			RepoFullName:   "octocat/hello",
			InstallationID: 42,
			Ref:            "refs/heads/main",
			BeforeSHA:      "1111111111111111111111111111111111111111",
			AfterSHA:       "2222222222222222222222222222222222222222",
		},
		DeliveryID: "delivery-2",
	}
}

func TestReviewJob_PullRequestEndToEnd(t *testing.T) {
	client := &fakeGHClient{}
	source := &fakeSource{diff: &core.Diff{Content: prDiff, OriginalSize: len(prDiff)}}
	reviewer := &fakeReviewer{findings: []core.Finding{
		{File: "main.go", Line: 2, Severity: core.SeverityHigh, Message: "debug flag left on"},
	}}
	store := newFakeStore()
	summary := &fakeSummary{}

	job := newTestJob(t, client, source, reviewer, store, summary)
	require.NoError(t, job.Run(context.Background(), prJob()))

	require.Len(t, reviewer.prompts, 1)
	assert.Contains(t, reviewer.prompts[0], "octocat/hello")
	assert.Contains(t, reviewer.prompts[0], "+var debug = true")

	require.Len(t, client.reviewComments, 1)
	assert.Equal(t, "main.go", client.reviewComments[0].GetPath())
	assert.Equal(t, 2, client.reviewComments[0].GetLine())

	require.Len(t, client.issueComments, 1)
	assert.Contains(t, client.issueComments[0], "| HIGH | 1 |")

	require.Len(t, store.records, 1)
	record := store.records[0]
	assert.Equal(t, "octocat/hello#12", record.Target)
	assert.Equal(t, 1, record.FindingCount)
	assert.Equal(t, 2, record.PostedCount)
	assert.False(t, record.Degraded)

	require.Len(t, summary.summaries, 1)
}

func TestReviewJob_PushEndToEnd(t *testing.T) {
	client := &fakeGHClient{}
	source := &fakeSource{diff: &core.Diff{Content: prDiff, OriginalSize: len(prDiff)}}
	reviewer := &fakeReviewer{findings: []core.Finding{
		{File: "main.go", Line: 2, Severity: core.SeverityMedium, Message: "debug flag left on"},
	}}
	store := newFakeStore()

	job := newTestJob(t, client, source, reviewer, store, &fakeSummary{})
	require.NoError(t, job.Run(context.Background(), pushJob()))

	// A push gets exactly one aggregated commit comment, never inline ones.
	assert.Empty(t, client.reviewComments)
	assert.Empty(t, client.issueComments)
	require.Len(t, client.commitComments, 1)
	assert.Contains(t, client.commitComments[0], "debug flag left on")

	require.Len(t, store.records, 1)
	assert.Equal(t, "octocat/hello@2222222", store.records[0].Target)
}

func TestReviewJob_EmptyDiffSkipsReview(t *testing.T) {
	client := &fakeGHClient{}
	source := &fakeSource{diff: &core.Diff{Content: "   \n"}}
	reviewer := &fakeReviewer{}
	summary := &fakeSummary{}

	job := newTestJob(t, client, source, reviewer, newFakeStore(), summary)
	require.NoError(t, job.Run(context.Background(), prJob()))

	assert.Empty(t, reviewer.prompts, "reviewer must not be called for an empty diff")
	assert.Empty(t, client.reviewComments)
	assert.Empty(t, client.issueComments)
	require.Len(t, summary.summaries, 1)
	assert.Contains(t, summary.summaries[0], "No changes detected")
}

func TestReviewJob_DiffUnavailableFails(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("%w: boom", core.ErrDiffUnavailable)}

	job := newTestJob(t, &fakeGHClient{}, source, &fakeReviewer{}, newFakeStore(), &fakeSummary{})
	err := job.Run(context.Background(), prJob())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDiffUnavailable)
}

func TestReviewJob_DegradedReviewStillPublishes(t *testing.T) {
	client := &fakeGHClient{}
	source := &fakeSource{diff: &core.Diff{Content: prDiff}}
	reviewer := &fakeReviewer{err: fmt.Errorf("%w: status 503", core.ErrReviewUnavailable)}
	store := newFakeStore()

	job := newTestJob(t, client, source, reviewer, store, &fakeSummary{})
	require.NoError(t, job.Run(context.Background(), prJob()), "an unavailable reviewer must not fail the job")

	require.Len(t, client.issueComments, 1)
	assert.Contains(t, client.issueComments[0], "Review could not be completed")

	require.Len(t, store.records, 1)
	assert.True(t, store.records[0].Degraded)
	assert.Equal(t, 0, store.records[0].FindingCount)
}

func TestReviewJob_RepoConfigSuppressesFindings(t *testing.T) {
	client := &fakeGHClient{repoConfigYAML: []byte("skip_paths:\n  - main.go\n")}
	source := &fakeSource{diff: &core.Diff{Content: prDiff}}
	reviewer := &fakeReviewer{findings: []core.Finding{
		{File: "main.go", Line: 2, Severity: core.SeverityHigh, Message: "suppressed"},
	}}

	job := newTestJob(t, client, source, reviewer, newFakeStore(), &fakeSummary{})
	require.NoError(t, job.Run(context.Background(), prJob()))

	assert.Empty(t, client.reviewComments)
	require.Len(t, client.issueComments, 1)
	assert.NotContains(t, client.issueComments[0], "suppressed")
}

func TestValidateJob(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*core.ReviewJob)
		wantErr bool
	}{
		{"valid pull request", func(*core.ReviewJob) {}, false},
		{"missing owner", func(j *core.ReviewJob) { j.Event.RepoOwner = "" }, true},
		{"missing installation", func(j *core.ReviewJob) { j.Event.InstallationID = 0 }, true},
		{"zero pr number", func(j *core.ReviewJob) { j.Event.PRNumber = 0 }, true},
		{"missing head sha", func(j *core.ReviewJob) { j.Event.HeadSHA = "" }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			job := prJob()
			tc.mutate(job)
			err := validateJob(context.Background(), job)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("nil job", func(t *testing.T) {
		assert.Error(t, validateJob(context.Background(), nil))
	})

	t.Run("push with zero after sha", func(t *testing.T) {
		job := pushJob()
		job.Event.AfterSHA = core.ZeroSHA
		assert.Error(t, validateJob(context.Background(), job))
	})
}
