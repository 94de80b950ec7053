// Package external wraps the third-party services floodcast calls over HTTP.
// Every outbound call goes through BaseClient, which adds a circuit breaker,
// bounded retries with backoff, trace propagation and error mapping.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"floodcast/internal/types"
)

// RetryPolicy bounds how often and how long BaseClient retries.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns two retries between 250ms and 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// BaseClient executes HTTP requests behind a circuit breaker.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	policy    RetryPolicy
	userAgent string
	sleep     func(ctx context.Context, d time.Duration) error
}

// BaseClientOption configures a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc replaces the wait between retries. Tests use it to skip
// real delays.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) BaseClientOption {
	return func(c *BaseClient) { c.sleep = fn }
}

// WithBreakerSettings replaces the default breaker configuration.
func WithBreakerSettings(st gobreaker.Settings) BaseClientOption {
	return func(c *BaseClient) {
		c.breaker = gobreaker.NewCircuitBreaker[*http.Response](st)
	}
}

// NewBaseClient creates a BaseClient. The breaker opens after more than five
// consecutive failures and half-opens after 30 seconds.
func NewBaseClient(httpClient *http.Client, name string, policy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	bc := &BaseClient{
		client: httpClient,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		policy:    policy,
		userAgent: userAgent,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// Do sends req, retrying on transport errors, 429 and 5xx. Any other status
// is returned to the caller, who owns the response body. Exhausted retries
// and an open breaker surface as upstream AppErrors.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if id := traceID(ctx); id != "" {
		req.Header.Set("X-B3-TraceId", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to buffer request body", err)
		}
		body = b
	}

	var (
		lastResp *http.Response
		lastErr  error
	)
	attempts := 1 + c.policy.MaxRetries
	for attempt := range attempts {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			if retryable(r.StatusCode) {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp, lastErr = resp, err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt == attempts-1 {
			break
		}
		if serr := c.sleep(ctx, c.backoff(attempt, resp)); serr != nil {
			lastErr = serr
			break
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, mapError(lastResp, lastErr)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// backoff honours Retry-After (seconds or HTTP date) and otherwise draws a
// jittered wait from [MinWait, MinWait*2^attempt], capped at MaxWait.
func (c *BaseClient) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				return min(time.Duration(secs)*time.Second, c.policy.MaxWait)
			}
			if at, err := http.ParseTime(ra); err == nil {
				if wait := time.Until(at); wait > 0 {
					return min(wait, c.policy.MaxWait)
				}
				return c.policy.MinWait
			}
		}
	}

	lo := float64(c.policy.MinWait)
	hi := math.Min(lo*math.Pow(2, float64(attempt)), float64(c.policy.MaxWait))
	if hi <= lo {
		return c.policy.MinWait
	}
	return time.Duration(lo + rand.Float64()*(hi-lo))
}

func mapError(resp *http.Response, err error) *types.AppError {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "circuit breaker open", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request cancelled", err)
	case resp != nil && resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err)
	case resp != nil && resp.StatusCode >= 500:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
	}
}

// traceID prefers the forecast run id so that all inference calls of one run
// share a trace, falling back to the HTTP request id.
func traceID(ctx context.Context) string {
	if id := types.GetRunID(ctx); id != "" {
		return id
	}
	return types.GetRequestID(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
