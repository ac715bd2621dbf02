package realtime

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		if !rl.Allow(now) {
			t.Fatalf("event %d rejected under the limit", i)
		}
	}
	if rl.Allow(now) {
		t.Fatal("event over the limit allowed")
	}

	// The window slides: old events expire.
	if !rl.Allow(now.Add(1100 * time.Millisecond)) {
		t.Fatal("event rejected after window elapsed")
	}
}

func TestRateLimiterRejectionsDoNotExtendWindow(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(2, time.Second)

	rl.Allow(now)
	rl.Allow(now)

	// A burst of rejected events must not delay recovery.
	for i := 0; i < 10; i++ {
		if rl.Allow(now.Add(time.Duration(i) * 50 * time.Millisecond)) {
			t.Fatalf("burst event %d admitted over the limit", i)
		}
	}
	if !rl.Allow(now.Add(time.Second)) {
		t.Fatal("event rejected after the admitted events aged out")
	}
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	if rl.max != rateLimitEvents || rl.window != rateLimitWindow {
		t.Fatalf("defaults not applied: max=%d window=%v", rl.max, rl.window)
	}
}
