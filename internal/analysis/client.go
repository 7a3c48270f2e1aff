package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPAnalyzer posts requests to the orchestrator's HTTP endpoint.
type HTTPAnalyzer struct {
	endpoint   string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

// NewHTTPAnalyzer returns a client for endpoint. Requests are retried up to
// three times on transport errors and 5xx responses.
func NewHTTPAnalyzer(endpoint string, timeout time.Duration) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		httpClient: &http.Client{Timeout: timeout},
		attempts:   3,
		backoff:    500 * time.Millisecond,
	}
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Analyze implements Analyzer.
func (c *HTTPAnalyzer) Analyze(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	return retry(ctx, c.attempts, c.backoff, func() (*Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, permanentError{fmt.Errorf("create http request: %w", err)}
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("orchestrator returned status %d: %s", resp.StatusCode, string(raw))
		}

		var out Response
		if err := json.Unmarshal([]byte(cleanJSON(string(raw))), &out); err != nil {
			if resp.StatusCode != http.StatusOK {
				return nil, permanentError{fmt.Errorf("orchestrator returned status %d: %s", resp.StatusCode, string(raw))}
			}
			return nil, permanentError{fmt.Errorf("decode analysis response: %w", err)}
		}
		return &out, nil
	})
}

// retry calls fn up to attempts times with a linearly growing pause, stopping
// early on permanent errors or when ctx is done.
func retry[T any](ctx context.Context, attempts int, backoff time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i := 0; i < attempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff * time.Duration(i+1)):
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// cleanJSON strips markdown code fences some orchestrators wrap around JSON.
func cleanJSON(input string) string {
	clean := strings.TrimSpace(input)
	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}
