// Package ratelimit tracks the rate limit budget advertised by the collection
// endpoint and gates outgoing page requests before the budget runs dry.
// It reads the X-RateLimit-Remaining and X-RateLimit-Reset response headers.
package ratelimit

import (
	"time"
)

// Response headers carrying the rate limit budget.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks all requests when the remaining budget falls below this value.
	ThresholdCritical = 2

	// ThresholdWarning applies throttling when the remaining budget falls below this value.
	ThresholdWarning = 10

	// ThresholdHealthy indicates normal operation.
	ThresholdHealthy = 25
)

// RateLimitState represents the last known rate limit budget.
type RateLimitState struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the current window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last refreshed from response headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// defaultState is assumed until the server tells us otherwise.
func defaultState() *RateLimitState {
	now := time.Now()
	return &RateLimitState{
		Remaining:  100,
		ResetAt:    now.Add(60 * time.Second),
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
// A window that has already reset never blocks.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock() && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
