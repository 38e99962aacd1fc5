package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Response headers carrying the quota. The X- variants are accepted as fallback.
const (
	HeaderRemaining = "RateLimit-Remaining"
	HeaderReset     = "RateLimit-Reset"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docstore_quota_remaining",
		Help: "Requests remaining in the current document store rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docstore_rate_limit_blocks_total",
		Help: "Total number of requests held because the quota is nearly exhausted",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docstore_rate_limit_throttles_total",
		Help: "Total number of requests throttled because the quota is low",
	})
)

// ErrBlocked is matched by errors returned from Allow when the quota is nearly exhausted.
var ErrBlocked = errors.New("rate limit quota nearly exhausted")

// BlockedError reports a held request and how long until the window resets.
type BlockedError struct {
	Remaining  int
	RetryAfter time.Duration
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%v (%d remaining, resets in %v)", ErrBlocked, e.Remaining, e.RetryAfter)
}

// Unwrap returns ErrBlocked.
func (e *BlockedError) Unwrap() error {
	return ErrBlocked
}

// RetryDelay returns the time until the window resets.
func (e *BlockedError) RetryDelay() time.Duration {
	return e.RetryAfter
}

// Tracker monitors the document store quota and gates requests.
type Tracker struct {
	store         StateStore
	throttleDelay time.Duration
	maxStateAge   time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThrottleDelay sets the pause applied to requests in the warning band (default 1s).
func WithThrottleDelay(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.throttleDelay = d
		}
	}
}

// DefaultMaxStateAge is how long a reported quota is trusted without a newer report.
const DefaultMaxStateAge = 5 * time.Minute

// WithMaxStateAge sets how long a reported quota is trusted (default 5m).
// Zero trusts it until the window resets.
func WithMaxStateAge(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.maxStateAge = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets the tracker logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// NewTracker creates a quota tracker over store.
func NewTracker(store StateStore, opts ...Option) *Tracker {
	if store == nil {
		panic("rate limit state store cannot be nil")
	}
	t := &Tracker{
		store:         store,
		throttleDelay: time.Second,
		maxStateAge:   DefaultMaxStateAge,
		now:           time.Now,
		logger:        log.With().Str("component", "ratelimit").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current quota state. Without stored data, once the
// stored window has reset, or when the last report is stale, a default
// healthy state is returned.
func (t *Tracker) State(ctx context.Context) (State, error) {
	now := t.now()
	state, ok, err := t.store.Load(ctx)
	if err != nil {
		return State{}, err
	}
	if !ok || !now.Before(state.ResetAt) {
		return defaultState(now), nil
	}
	if t.maxStateAge > 0 && state.IsStale(now, t.maxStateAge) {
		t.logger.Debug().
			Time("last_update", state.LastUpdate).
			Int("remaining", state.Remaining).
			Msg("Ignoring stale quota state")
		return defaultState(now), nil
	}
	return state, nil
}

// Observe records the quota reported by a response. Responses without the
// quota headers are ignored.
func (t *Tracker) Observe(ctx context.Context, headers http.Header) error {
	remainStr := headerValue(headers, HeaderRemaining)
	if remainStr == "" {
		return nil
	}
	remain, err := strconv.Atoi(remainStr)
	if err != nil || remain < 0 {
		return fmt.Errorf("parse %s header %q", HeaderRemaining, remainStr)
	}

	resetStr := headerValue(headers, HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil || resetSeconds < 0 {
		return fmt.Errorf("parse %s header %q", HeaderReset, resetStr)
	}

	now := t.now()
	state := State{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth()

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}
	quotaRemaining.Set(float64(remain))

	switch {
	case state.NeedsBlock():
		t.logger.Error().Int("remaining", remain).Time("reset_at", state.ResetAt).Msg("Document store quota critical, requests will be held")
	case state.NeedsThrottling():
		t.logger.Warn().Int("remaining", remain).Time("reset_at", state.ResetAt).Msg("Document store quota low, requests will be throttled")
	default:
		t.logger.Debug().Int("remaining", remain).Time("reset_at", state.ResetAt).Msg("Document store quota updated")
	}
	return nil
}

// Allow gates one request. It returns a *BlockedError when the quota is
// nearly exhausted and pauses for the throttle delay when it is low. An
// unreadable state store lets the request through.
func (t *Tracker) Allow(ctx context.Context) error {
	state, err := t.State(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Rate limit state unavailable, allowing request")
		return nil
	}

	if state.NeedsBlock() {
		wait := state.TimeUntilReset(t.now())
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", wait).
			Msg("Document store quota critical, holding request")
		rateLimitBlocksTotal.Inc()
		return &BlockedError{Remaining: state.Remaining, RetryAfter: wait}
	}

	if state.NeedsThrottling() && t.throttleDelay > 0 {
		t.logger.Debug().Int("remaining", state.Remaining).Msg("Document store quota low, throttling request")
		rateLimitThrottlesTotal.Inc()

		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func headerValue(headers http.Header, name string) string {
	if v := headers.Get(name); v != "" {
		return v
	}
	return headers.Get("X-" + name)
}
