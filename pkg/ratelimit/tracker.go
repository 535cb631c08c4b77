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
)

// ErrBlocked is returned when the remaining budget is critical.
var ErrBlocked = errors.New("request blocked: rate limit critical")

// DefaultThrottleDelay is how long a request waits while the budget is in the warning range.
const DefaultThrottleDelay = 1 * time.Second

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagefeed_rate_limit_remaining",
		Help: "Requests remaining in the current rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefeed_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to a critical rate limit budget",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefeed_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to a low rate limit budget",
	})
)

// Tracker monitors the rate limit budget and gates requests.
type Tracker struct {
	store         Store
	logger        zerolog.Logger
	throttleDelay time.Duration
}

// NewTracker creates a new rate limit tracker. A nil store falls back to memory.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:         store,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
	}
}

// SetThrottleDelay overrides the warning-range delay (for testing).
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// GetState retrieves the current rate limit state.
// Returns a default healthy state if nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		t.logger.Debug().Msg("No rate limit state recorded, assuming healthy")
		return defaultState(), nil
	}
	return state, nil
}

// UpdateFromHeaders parses the rate limit headers and stores the new state.
// Responses without the headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	now := time.Now()
	state := &RateLimitState{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth()

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}

	rateLimitRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest checks whether a request may be sent.
// Returns false when the budget is critical. In the warning range it waits
// for the throttle delay first, returning ctx.Err() if ctx ends meanwhile.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit critical - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Rate limit warning - throttling request")

		rateLimitThrottlesTotal.Inc()
		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}
