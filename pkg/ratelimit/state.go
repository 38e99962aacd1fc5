// Package ratelimit tracks the document store request quota and gates requests.
// It reads the RateLimit-Remaining and RateLimit-Reset response headers so that
// catalog refreshes back off before the store starts answering 429.
package ratelimit

import (
	"time"
)

// Quota thresholds for gating decisions.
const (
	// QuotaThresholdCritical blocks requests once the remaining quota is at or below this value.
	QuotaThresholdCritical = 5

	// QuotaThresholdWarning throttles requests once the remaining quota is at or below this value.
	QuotaThresholdWarning = 20

	// QuotaThresholdHealthy indicates normal operation.
	QuotaThresholdHealthy = 50
)

// defaultRemaining is assumed until the store reports a quota.
const defaultRemaining = 100

// State is the last reported request quota of the document store.
// It is shared across API instances when backed by Redis.
type State struct {
	// Remaining requests in the current window (RateLimit-Remaining).
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets (RateLimit-Reset, seconds from the response).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last written.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= QuotaThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge at now.
func (s State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// NeedsBlock returns true if requests should be held until the window resets.
func (s State) NeedsBlock() bool {
	return s.Remaining <= QuotaThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s State) NeedsThrottling() bool {
	return s.Remaining <= QuotaThresholdWarning && !s.NeedsBlock()
}

// TimeUntilReset returns the duration until the window resets, or 0 if it already has.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= QuotaThresholdHealthy
}

func defaultState(now time.Time) State {
	s := State{
		Remaining:  defaultRemaining,
		ResetAt:    now,
		LastUpdate: now,
	}
	s.UpdateHealth()
	return s
}
