package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sevigo/jules-warden/internal/core"
)

const (
	reviewTimeout = 60 * time.Second
	maxAttempts   = 3
	baseBackoff   = 2 * time.Second
)

// Reviewer submits a prompt to the review service and returns typed findings.
type Reviewer interface {
	Review(ctx context.Context, prompt string) ([]core.Finding, error)
}

// Client talks to the Jules review API over HTTPS.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// NewClient creates a Jules API client with the standard 60s request timeout.
func NewClient(baseURL, apiKey, model string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: reviewTimeout},
		sleep:      sleepCtx,
		logger:     logger,
	}
}

type reviewRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type reviewResponse struct {
	Findings   []json.RawMessage `json:"findings"`
	Candidates []struct {
		Content string `json:"content"`
	} `json:"candidates"`
}

// Review posts the prompt and parses the response into findings. It retries
// up to 3 attempts total, only on 429 and 5xx, doubling the backoff from 2s.
// Other 4xx statuses fail immediately with core.ErrReviewRejected; exhausted
// retries fail with core.ErrReviewUnavailable. A response that cannot be
// parsed yields zero findings, not an error: the worker must survive
// malformed model output.
func (c *Client) Review(ctx context.Context, prompt string) ([]core.Finding, error) {
	payload, err := json.Marshal(reviewRequest{Prompt: prompt, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshaling review request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.logger.Info("calling review API", "attempt", attempt, "max_attempts", maxAttempts)

		findings, retryable, err := c.doRequest(ctx, payload)
		if err == nil {
			return findings, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err

		if attempt < maxAttempts {
			backoff := baseBackoff << (attempt - 1)
			c.logger.Warn("review API call failed, retrying", "error", err, "backoff", backoff)
			if serr := c.sleep(ctx, backoff); serr != nil {
				return nil, serr
			}
		}
	}

	return nil, fmt.Errorf("%w: %v", core.ErrReviewUnavailable, lastErr)
}

// doRequest performs one attempt. The second return value reports whether the
// failure may be retried.
func (c *Client) doRequest(ctx context.Context, payload []byte) ([]core.Finding, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/review", bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("creating review request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("sending review request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("reading review response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return c.parseResponse(body), false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("review API status %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("%w: status %d: %s", core.ErrReviewRejected, resp.StatusCode, truncateForLog(body))
	}
}

// parseResponse handles both response shapes: a top-level findings array, or
// a candidates list whose first content holds text containing the array.
func (c *Client) parseResponse(body []byte) []core.Finding {
	var resp reviewResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Warn("review response is not valid JSON, attempting loose extraction", "error", err)
		return ParseFindings(string(body), c.logger)
	}

	if resp.Findings != nil {
		return decodeFindingEntries(resp.Findings, c.logger)
	}
	if len(resp.Candidates) > 0 {
		return ParseFindings(resp.Candidates[0].Content, c.logger)
	}

	c.logger.Warn("review response contained neither findings nor candidates")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func truncateForLog(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
