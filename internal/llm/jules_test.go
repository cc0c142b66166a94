package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/jules-warden/internal/core"
)

// newTestClient points a client at the test server and records backoff sleeps
// instead of actually waiting.
func newTestClient(serverURL string, sleeps *[]time.Duration) *Client {
	c := NewClient(serverURL, "test-key", "jules-v1", discardLogger())
	c.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return c
}

func TestClientReview_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"findings": [{"file": "a.go", "line": 2, "severity": "HIGH", "message": "bug"}]}`))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, &sleeps)

	findings, err := client.Review(context.Background(), "review this")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "a.go", findings[0].File)
	assert.Empty(t, sleeps)
}

func TestClientReview_RetriesRateLimitThenGivesUp(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, &sleeps)

	_, err := client.Review(context.Background(), "review this")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrReviewUnavailable))
	assert.EqualValues(t, 3, requests.Load())
	require.Len(t, sleeps, 2, "two backoff waits between three attempts")
	assert.Equal(t, 2*time.Second, sleeps[0])
	assert.Equal(t, 4*time.Second, sleeps[1])
}

func TestClientReview_RecoversAfterServerError(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"findings": []}`))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, &sleeps)

	findings, err := client.Review(context.Background(), "review this")
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.EqualValues(t, 3, requests.Load())
}

func TestClientReview_RejectedNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "bad key"}`))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, &sleeps)

	_, err := client.Review(context.Background(), "review this")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrReviewRejected))
	assert.EqualValues(t, 1, requests.Load(), "auth failures must not be retried")
	assert.Empty(t, sleeps)
}

func TestClientReview_CandidateTextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"candidates": [{"content": "Review done:\n[{\"file\": \"b.go\", \"line\": 4, \"severity\": \"LOW\", \"message\": \"nit\"}]"}]}`))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, &sleeps)

	findings, err := client.Review(context.Background(), "review this")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "b.go", findings[0].File)
}

func TestClientReview_GarbageResponseYieldsNoFindings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("this is not json at all"))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, &sleeps)

	findings, err := client.Review(context.Background(), "review this")
	require.NoError(t, err, "unparseable output degrades to zero findings, not an error")
	assert.Empty(t, findings)
}
