package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

// fakeClock lets tests move time without sleeping
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCoordinator() (*Coordinator, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCoordinator(arbor.NewLogger())
	c.now = func() time.Time { return clock.now }
	return c, clock
}

func TestFirstHitUsesFloor(t *testing.T) {
	c, _ := newTestCoordinator()

	c.RecordHit(0)

	if !c.IsRateLimited() {
		t.Error("Expected live window after hit")
	}
	if got := c.RemainingBackoff(); got != BackoffFloor {
		t.Errorf("Expected 1s floor, got %v", got)
	}
}

func TestHitInsideWindowDoubles(t *testing.T) {
	c, clock := newTestCoordinator()

	c.RecordHit(0)
	clock.advance(500 * time.Millisecond) // still inside the 1s window
	c.RecordHit(0)

	if got := c.RemainingBackoff(); got != 2*time.Second {
		t.Errorf("Expected doubled 2s window, got %v", got)
	}

	clock.advance(time.Second) // inside the 2s window
	c.RecordHit(0)
	if got := c.RemainingBackoff(); got != 4*time.Second {
		t.Errorf("Expected doubled 4s window, got %v", got)
	}
}

func TestHitAfterFullElapseResetsToFloor(t *testing.T) {
	c, clock := newTestCoordinator()

	c.RecordHit(0)
	clock.advance(500 * time.Millisecond)
	c.RecordHit(0) // 2s window

	clock.advance(10 * time.Second) // window fully elapsed
	if c.IsRateLimited() {
		t.Error("Expected expired window to clear")
	}

	c.RecordHit(0)
	if got := c.RemainingBackoff(); got != BackoffFloor {
		t.Errorf("Expected reset to 1s floor after full elapse, got %v", got)
	}
}

func TestServerHintTakesPrecedence(t *testing.T) {
	c, clock := newTestCoordinator()

	c.RecordHit(0)
	clock.advance(100 * time.Millisecond)
	c.RecordHit(30 * time.Second)

	if got := c.RemainingBackoff(); got != 30*time.Second {
		t.Errorf("Expected exactly 30s from server hint, got %v", got)
	}
}

func TestBackoffNeverExceedsCap(t *testing.T) {
	c, clock := newTestCoordinator()

	for i := 0; i < 10; i++ {
		c.RecordHit(0)
		clock.advance(10 * time.Millisecond)
	}

	// Windows progress 1,2,4,8,16,32 then pin at the 60s cap
	if got := c.RemainingBackoff(); got > BackoffCap {
		t.Errorf("Backoff exceeded 60s cap: %v", got)
	}
	if got := c.RemainingBackoff(); got < BackoffCap-time.Second {
		t.Errorf("Expected capped window, got %v", got)
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	c, clock := newTestCoordinator()

	c.RecordHit(0)
	clock.advance(5 * time.Second)

	if got := c.RemainingBackoff(); got != 0 {
		t.Errorf("Expected 0 remaining, got %v", got)
	}
}

func TestWaitReturnsImmediatelyWhenNotLimited(t *testing.T) {
	c, _ := newTestCoordinator()

	start := time.Now()
	if err := c.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("Wait blocked without a live window")
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	c := NewCoordinator(arbor.NewLogger())
	c.RecordHit(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := c.Wait(ctx); err == nil {
		t.Error("Expected context error from cancelled wait")
	}
}

func TestResetClearsState(t *testing.T) {
	c, _ := newTestCoordinator()

	c.RecordHit(30 * time.Second)
	c.Reset()

	if c.IsRateLimited() {
		t.Error("Expected no window after reset")
	}
	if got := c.RemainingBackoff(); got != 0 {
		t.Errorf("Expected 0 remaining after reset, got %v", got)
	}

	// A hit after reset starts from the floor again
	c.RecordHit(0)
	if got := c.RemainingBackoff(); got != BackoffFloor {
		t.Errorf("Expected floor after reset, got %v", got)
	}
}
