package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = time.Second
	defaultHTTPTimeout = 30 * time.Second
)

// RetryPolicy controls exponential backoff for upstream calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy makes five attempts, waiting 1s, 2s, 4s and 8s in between.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultMaxAttempts, BaseDelay: defaultBaseDelay}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   defaultHTTPTimeout,
		Transport: transport,
	}
}

// getWithRetry issues GET requests until one returns a 2xx body or the attempts run out.
// Transport errors and non-2xx statuses are retried; the wait doubles after each failure.
func getWithRetry(ctx context.Context, client *http.Client, policy RetryPolicy, endpoint string, header http.Header) ([]byte, error) {
	policy = policy.normalized()
	var lastErr error
	backoff := policy.BaseDelay
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("read body: %w", readErr)
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				lastErr = fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 200))
			default:
				return body, nil
			}
		}

		if attempt == policy.MaxAttempts {
			break
		}
		log.Warn().Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", policy.MaxAttempts).
			Dur("backoff", backoff).
			Msg("upstream request failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", policy.MaxAttempts, lastErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
