package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/jules-warden/internal/core"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient records posted comments and can fail selectively per file path.
type fakeClient struct {
	reviewComments []*github.PullRequestComment
	issueComments  []string
	commitComments []string
	failPaths      map[string]bool
}

func (f *fakeClient) GetPullRequestDiff(context.Context, string, string, int) (string, error) {
	return "", nil
}

func (f *fakeClient) CompareDiff(context.Context, string, string, string, string) (string, error) {
	return "", nil
}

func (f *fakeClient) CreateReviewComment(_ context.Context, _, _ string, _ int, comment *github.PullRequestComment) error {
	if f.failPaths[comment.GetPath()] {
		return fmt.Errorf("api rejected comment on %s", comment.GetPath())
	}
	f.reviewComments = append(f.reviewComments, comment)
	return nil
}

func (f *fakeClient) CreateIssueComment(_ context.Context, _, _ string, _ int, body string) error {
	f.issueComments = append(f.issueComments, body)
	return nil
}

func (f *fakeClient) CreateCommitComment(_ context.Context, _, _, _, body string) error {
	f.commitComments = append(f.commitComments, body)
	return nil
}

func (f *fakeClient) GetFileContent(context.Context, string, string, string, string) ([]byte, error) {
	return nil, fmt.Errorf("not found")
}

// memoryKeys is a minimal in-process KeyStore for publisher tests.
type memoryKeys struct {
	posted map[string]struct{}
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{posted: make(map[string]struct{})}
}

func (m *memoryKeys) WasPosted(_ context.Context, target, key string) (bool, error) {
	_, ok := m.posted[target+"/"+key]
	return ok, nil
}

func (m *memoryKeys) MarkPosted(_ context.Context, target, key string) error {
	m.posted[target+"/"+key] = struct{}{}
	return nil
}

func prEvent() *core.EventContext {
	return &core.EventContext{
		Kind:         core.EventKindPullRequest,
		RepoOwner:    "octocat",
		RepoName:     "hello",
		RepoFullName: "octocat/hello",
		PRNumber:     12,
		HeadSHA:      "abc1234",
	}
}

func pushEvent() *core.EventContext {
	return &core.EventContext{
		Kind:         core.EventKindPush,
		RepoOwner:    "octocat",
		RepoName:     "hello",
		RepoFullName: "octocat/hello",
		Ref:          "refs/heads/main",
		BeforeSHA:    "1111111111111111111111111111111111111111",
		AfterSHA:     "2222222222222222222222222222222222222222",
	}
}

func TestPublish_PullRequestInlineAndSummary(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisher(client, newMemoryKeys(), nil, discardLogger())

	diff := &core.Diff{Content: sampleDiff}
	findings := []core.Finding{
		{File: "main.go", Line: 2, Severity: core.SeverityHigh, Message: "unused import", Suggestion: "remove it"},
		{File: "main.go", Line: 0, Severity: core.SeverityLow, Message: "general note"},
	}

	result, err := pub.Publish(context.Background(), prEvent(), diff, findings, "", nil)
	require.NoError(t, err)

	// One inline comment plus the summary comment.
	assert.Equal(t, 2, result.PostedCount)
	require.Len(t, client.reviewComments, 1)
	c := client.reviewComments[0]
	assert.Equal(t, "main.go", c.GetPath())
	assert.Equal(t, 2, c.GetLine())
	assert.Equal(t, "abc1234", c.GetCommitID())
	assert.Equal(t, "RIGHT", c.GetSide())
	assert.Contains(t, c.GetBody(), "**[HIGH]** unused import")
	assert.Contains(t, c.GetBody(), "**Suggestion:** remove it")

	// The line-less finding is folded into the summary.
	require.Len(t, client.issueComments, 1)
	assert.Contains(t, client.issueComments[0], "general note")
	assert.Contains(t, client.issueComments[0], "| HIGH | 1 |")
	assert.Contains(t, client.issueComments[0], "**Total Issues:** 2")
}

func TestPublish_RepeatRunPostsNothing(t *testing.T) {
	client := &fakeClient{}
	keys := newMemoryKeys()
	pub := NewPublisher(client, keys, nil, discardLogger())

	diff := &core.Diff{Content: sampleDiff}
	findings := []core.Finding{
		{File: "main.go", Line: 2, Severity: core.SeverityHigh, Message: "unused import"},
	}

	first, err := pub.Publish(context.Background(), prEvent(), diff, findings, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.PostedCount)

	second, err := pub.Publish(context.Background(), prEvent(), diff, findings, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.PostedCount)
	assert.Equal(t, 2, second.SkippedCount)
	assert.Len(t, client.reviewComments, 1, "rerun must not duplicate inline comments")
	assert.Len(t, client.issueComments, 1, "rerun must not duplicate the summary")
}

func TestPublish_OffDiffLineFolded(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisher(client, newMemoryKeys(), nil, discardLogger())

	diff := &core.Diff{Content: sampleDiff}
	findings := []core.Finding{
		{File: "main.go", Line: 999, Severity: core.SeverityHigh, Message: "off-diff issue"},
	}

	_, err := pub.Publish(context.Background(), prEvent(), diff, findings, "", nil)
	require.NoError(t, err)

	assert.Empty(t, client.reviewComments)
	require.Len(t, client.issueComments, 1)
	assert.Contains(t, client.issueComments[0], "off-diff issue")
}

func TestPublish_PartialFailureContinues(t *testing.T) {
	client := &fakeClient{failPaths: map[string]bool{"broken.go": true}}
	pub := NewPublisher(client, newMemoryKeys(), nil, discardLogger())

	diff := &core.Diff{Content: sampleDiff + `--- a/broken.go
+++ b/broken.go
@@ -1,1 +1,1 @@
+var y = 2
`}
	findings := []core.Finding{
		{File: "broken.go", Line: 1, Severity: core.SeverityHigh, Message: "fails to post"},
		{File: "main.go", Line: 2, Severity: core.SeverityHigh, Message: "posts fine"},
	}

	result, err := pub.Publish(context.Background(), prEvent(), diff, findings, "", nil)
	require.NoError(t, err, "one failed comment must not abort the run")

	assert.Equal(t, 1, result.SkippedCount)
	require.Len(t, client.reviewComments, 1)
	assert.Equal(t, "main.go", client.reviewComments[0].GetPath())
	assert.Len(t, client.issueComments, 1)
}

func TestPublish_RepoConfigFilters(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisher(client, newMemoryKeys(), nil, discardLogger())

	repoCfg := &core.RepoConfig{
		MinSeverity: core.SeverityHigh,
		SkipPaths:   []string{"vendor"},
	}
	diff := &core.Diff{Content: sampleDiff}
	findings := []core.Finding{
		{File: "vendor/lib.go", Line: 1, Severity: core.SeverityCritical, Message: "suppressed entirely"},
		{File: "main.go", Line: 2, Severity: core.SeverityLow, Message: "below threshold"},
		{File: "main.go", Line: 3, Severity: core.SeverityHigh, Message: "above threshold"},
	}

	_, err := pub.Publish(context.Background(), prEvent(), diff, findings, "", repoCfg)
	require.NoError(t, err)

	require.Len(t, client.reviewComments, 1)
	assert.Contains(t, client.reviewComments[0].GetBody(), "above threshold")

	require.Len(t, client.issueComments, 1)
	summary := client.issueComments[0]
	assert.NotContains(t, summary, "suppressed entirely")
	assert.Contains(t, summary, "below threshold", "sub-threshold findings still appear in the summary")
}

func TestPublish_PushSingleCommitComment(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisher(client, newMemoryKeys(), nil, discardLogger())

	findings := []core.Finding{
		{File: "a.go", Line: 1, Severity: core.SeverityHigh, Message: "first"},
		{File: "b.go", Line: 2, Severity: core.SeverityLow, Message: "second"},
	}

	result, err := pub.Publish(context.Background(), pushEvent(), &core.Diff{Content: "+x\n"}, findings, "", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.PostedCount)
	assert.Empty(t, client.reviewComments)
	require.Len(t, client.commitComments, 1)
	body := client.commitComments[0]
	assert.Contains(t, body, "first")
	assert.Contains(t, body, "second")
}

func TestBuildSummary(t *testing.T) {
	t.Run("no issues", func(t *testing.T) {
		summary := BuildSummary(nil, "")
		assert.Contains(t, summary, "# Code Review Results")
		assert.Contains(t, summary, "✅ No issues found!")
		assert.Contains(t, summary, "**Total Issues:** 0")
	})

	t.Run("degraded note", func(t *testing.T) {
		summary := BuildSummary(nil, "Review could not be completed.")
		assert.Contains(t, summary, "> Review could not be completed.")
		assert.NotContains(t, summary, "✅ No issues found!")
	})

	t.Run("severity counts", func(t *testing.T) {
		findings := []core.Finding{
			{File: "a.go", Severity: core.SeverityCritical, Message: "x"},
			{File: "a.go", Severity: core.SeverityCritical, Message: "y"},
			{File: "b.go", Severity: core.SeverityLow, Message: "z"},
		}
		summary := BuildSummary(findings, "")
		assert.Contains(t, summary, "| CRITICAL | 2 |")
		assert.Contains(t, summary, "| HIGH | 0 |")
		assert.Contains(t, summary, "| LOW | 1 |")
		assert.Contains(t, summary, "**Total Issues:** 3")
	})
}

func TestFoldedSection_CapsListedFindings(t *testing.T) {
	findings := make([]core.Finding, 25)
	for i := range findings {
		findings[i] = core.Finding{File: "a.go", Line: i + 1, Severity: core.SeverityLow, Message: fmt.Sprintf("issue %d", i)}
	}

	section := foldedSection(findings)
	assert.Equal(t, maxSummaryFindings, strings.Count(section, "- **"))
	assert.Contains(t, section, "... and 5 more issues")
}

func TestFindingKey_Stable(t *testing.T) {
	a := core.Finding{File: "a.go", Line: 1, Message: "x"}
	b := core.Finding{File: "a.go", Line: 1, Message: "x", Suggestion: "different suggestion"}
	c := core.Finding{File: "a.go", Line: 2, Message: "x"}

	assert.Equal(t, FindingKey(a), FindingKey(b), "suggestion must not affect the key")
	assert.NotEqual(t, FindingKey(a), FindingKey(c))
}
