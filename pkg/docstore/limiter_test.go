package docstore

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/storefront-cache/internal/testutil"
	"github.com/Sternrassler/storefront-cache/pkg/ratelimit"
)

type recordingLimiter struct {
	mu       sync.Mutex
	allowErr error
	allowed  int
	observed []http.Header
}

func (l *recordingLimiter) Allow(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowed++
	return l.allowErr
}

func (l *recordingLimiter) Observe(_ context.Context, header http.Header) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observed = append(l.observed, header.Clone())
	return nil
}

func newLimitedClient(t *testing.T, mock *testutil.MockDocStore, limiter Limiter) *Client {
	t.Helper()
	cfg := DefaultConfig(mock.URL(), "StorefrontTest/1.0")
	cfg.Retry = fastRetry
	cfg.Limiter = limiter

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestGet_LimiterObservesResponses(t *testing.T) {
	mock := testutil.NewMockDocStore()
	defer mock.Close()

	mock.SetDocument("time_sales", "current", map[string]any{"id": "ts-1"})
	mock.SetQuota(100, 60)

	limiter := &recordingLimiter{}
	client := newLimitedClient(t, mock, limiter)

	if _, err := client.GetDocument(context.Background(), "time_sales", "current"); err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}

	if limiter.allowed != 1 {
		t.Errorf("Allow() calls = %d, want 1", limiter.allowed)
	}
	if len(limiter.observed) != 1 {
		t.Fatalf("Observe() calls = %d, want 1", len(limiter.observed))
	}
	if got := limiter.observed[0].Get("RateLimit-Remaining"); got != "99" {
		t.Errorf("observed RateLimit-Remaining = %q, want 99", got)
	}
}

func TestGet_LimiterRejection(t *testing.T) {
	mock := testutil.NewMockDocStore()
	defer mock.Close()

	blocked := &ratelimit.BlockedError{Remaining: 1, RetryAfter: 30 * time.Second}
	limiter := &recordingLimiter{allowErr: blocked}
	client := newLimitedClient(t, mock, limiter)

	_, err := client.GetDocument(context.Background(), "time_sales", "current")
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("GetDocument() error = %v, want ErrRetryExhausted", err)
	}
	if !errors.Is(err, ratelimit.ErrBlocked) {
		t.Errorf("GetDocument() error = %v, want ErrBlocked in chain", err)
	}
	var docErr *Error
	if !errors.As(err, &docErr) || docErr.ErrorClass != ErrorClassRateLimit || docErr.RetryAfter != 30*time.Second {
		t.Errorf("GetDocument() error = %v, want rate_limit *Error with RetryAfter 30s", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount() = %d, want 0 (held requests are never sent)", mock.RequestCount())
	}
	if limiter.allowed != fastRetry.MaxAttempts {
		t.Errorf("Allow() calls = %d, want %d", limiter.allowed, fastRetry.MaxAttempts)
	}
}

func TestGet_TrackerHoldsRequestsNearQuota(t *testing.T) {
	mock := testutil.NewMockDocStore()
	defer mock.Close()

	mock.SetDocument("time_sales", "current", map[string]any{"id": "ts-1"})
	// First response reports 6 remaining (warning band), the second 5 (critical).
	mock.SetQuota(7, 60)

	tracker := ratelimit.NewTracker(ratelimit.NewMemoryStore(), ratelimit.WithThrottleDelay(time.Millisecond))
	client := newLimitedClient(t, mock, tracker)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := client.GetDocument(ctx, "time_sales", "current"); err != nil {
			t.Fatalf("GetDocument() #%d error = %v", i+1, err)
		}
	}

	_, err := client.GetDocument(ctx, "time_sales", "current")
	if !errors.Is(err, ratelimit.ErrBlocked) {
		t.Errorf("GetDocument() #3 error = %v, want ErrBlocked", err)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount() = %d, want 2", mock.RequestCount())
	}
}
