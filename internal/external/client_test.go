package external

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"floodcast/internal/types"
)

// noopSleep skips retry waits.
func noopSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, policy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	t.Helper()
	opts = append([]BaseClientOption{WithSleepFunc(noopSleep)}, opts...)
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-breaker", policy, "Floodcast-Test/1.0", opts...)
}

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, MinWait: 10 * time.Millisecond, MaxWait: 100 * time.Millisecond}
}

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, DefaultRetryPolicy())
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL+"/test", nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestDo_InjectsHeaders(t *testing.T) {
	var traceID, ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = r.Header.Get("X-B3-TraceId")
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, DefaultRetryPolicy())

	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"request id", types.WithRequestID(context.Background(), "req-1"), "req-1"},
		{"run id wins", types.WithRunID(types.WithRequestID(context.Background(), "req-1"), "run-9"), "run-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequestWithContext(tt.ctx, http.MethodGet, server.URL, nil)
			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			resp.Body.Close()
			if traceID != tt.want {
				t.Errorf("trace id = %q, want %q", traceID, tt.want)
			}
			if ua != "Floodcast-Test/1.0" {
				t.Errorf("user agent = %q", ua)
			}
		})
	}
}

func TestDo_RetriesOn500ReplayingBody(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "payload" {
			t.Errorf("attempt %d saw body %q", calls.Load()+1, body)
		}
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(3))
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL, strings.NewReader("payload"))

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	resp.Body.Close()

	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(3))
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("4xx should be returned to the caller, got error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestDo_ExhaustedRetries(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   types.ErrorCode
	}{
		{"server error", http.StatusBadGateway, types.ErrCodeUpstreamUnavailable},
		{"rate limited", http.StatusTooManyRequests, types.ErrCodeUpstreamRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(t, fastPolicy(2))
			req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)

			_, err := client.Do(req)
			if !types.IsCode(err, tt.want) {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
			if got := calls.Load(); got != 3 {
				t.Errorf("expected 3 calls, got %d", got)
			}
		})
	}
}

func TestDo_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(0), WithBreakerSettings(gobreaker.Settings{
		Name:    "trip-fast",
		Timeout: time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	}))

	for range 2 {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		if _, err := client.Do(req); err == nil {
			t.Fatal("expected failure")
		}
	}

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	_, err := client.Do(req)
	if !types.IsCode(err, types.ErrCodeUpstreamUnavailable) {
		t.Fatalf("expected upstream_unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "circuit breaker open") {
		t.Errorf("unexpected message: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("open breaker should short-circuit, server saw %d calls", got)
	}
}

func TestDo_RespectsRetryAfterHeader(t *testing.T) {
	var waits []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	policy := RetryPolicy{MaxRetries: 1, MinWait: 10 * time.Millisecond, MaxWait: 5 * time.Second}
	client := newTestClient(t, policy, WithSleepFunc(sleep))
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(waits) != 1 || waits[0] != 2*time.Second {
		t.Errorf("waits = %v, want [2s]", waits)
	}
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	client := newTestClient(t, fastPolicy(3), WithSleepFunc(sleep))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)

	_, err := client.Do(req)
	if !types.IsCode(err, types.ErrCodeUpstreamUnavailable) {
		t.Fatalf("expected upstream_unavailable, got %v", err)
	}
}
