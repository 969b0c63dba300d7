// -----------------------------------------------------------------------
// Backoff coordinator - shared penalty window for the rate-limited API
// -----------------------------------------------------------------------

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

const (
	// BackoffFloor is the first window after a hit with no live window
	BackoffFloor = 1 * time.Second
	// BackoffCap bounds consecutive doubling
	BackoffCap = 60 * time.Second
)

// Coordinator tracks a single process-wide backoff window. Executors consult
// it before every spawn that touches the rate-limited external API.
//
// It does not serialize callers - it only reports how long to wait. Several
// executors suspending together and waking together when the window closes is
// expected; the upstream API tolerates a brief burst after the window.
//
// Windows double from a 1-second floor up to a 60-second cap while hits land
// inside a live window. Once a window fully elapses the state is back to
// baseline: the next hit starts from the floor again. A server-supplied
// Retry-After hint always wins over the computed window.
type Coordinator struct {
	mu        sync.Mutex
	lastHitAt time.Time
	backoff   time.Duration
	logger    arbor.ILogger
	now       func() time.Time // injectable for tests
}

// NewCoordinator creates a coordinator with no active window
func NewCoordinator(logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		logger: logger,
		now:    time.Now,
	}
}

// IsRateLimited reports whether a backoff window is live. Expired state is
// cleared as a side effect so it cannot linger past its deadline.
func (c *Coordinator) IsRateLimited() bool {
	return c.RemainingBackoff() > 0
}

// RemainingBackoff returns the time left in the current window, never negative
func (c *Coordinator) RemainingBackoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Coordinator) remainingLocked() time.Duration {
	if c.backoff == 0 {
		return 0
	}
	remaining := c.backoff - c.now().Sub(c.lastHitAt)
	if remaining <= 0 {
		c.backoff = 0
		return 0
	}
	return remaining
}

// RecordHit registers a rate-limit signal from the external API. retryAfter
// is the server hint; pass 0 (or negative) when the response carried none.
func (c *Coordinator) RecordHit(retryAfter time.Duration) {
	c.mu.Lock()

	var window time.Duration
	switch {
	case retryAfter > 0:
		window = retryAfter
	default:
		// A fully elapsed window resets to baseline before doubling
		previous := c.backoff
		if previous > 0 && c.now().Sub(c.lastHitAt) >= previous {
			previous = 0
		}
		if previous == 0 {
			window = BackoffFloor
		} else {
			window = previous * 2
			if window > BackoffCap {
				window = BackoffCap
			}
		}
	}

	c.lastHitAt = c.now()
	c.backoff = window
	c.mu.Unlock()

	c.logger.Warn().
		Dur("backoff", window).
		Bool("server_hint", retryAfter > 0).
		Msg("Rate limit hit recorded")
}

// Wait suspends the caller for the remainder of the window. Returns
// immediately when no window is live; returns ctx.Err() if the context ends
// first.
func (c *Coordinator) Wait(ctx context.Context) error {
	remaining := c.RemainingBackoff()
	if remaining <= 0 {
		return nil
	}

	c.logger.Debug().Dur("remaining", remaining).Msg("Waiting out backoff window")

	select {
	case <-time.After(remaining):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset clears all backoff state. Used by tests and operator intervention.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.lastHitAt = time.Time{}
	c.backoff = 0
	c.mu.Unlock()
}
