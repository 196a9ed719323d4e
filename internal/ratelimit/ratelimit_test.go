package ratelimit

import (
	"context"
	"testing"
	"time"
)

func waitBriefly(l *Limiter) error {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	return l.Wait(ctx)
}

func TestBurstThenThrottle(t *testing.T) {
	l := New("dexscreener", 2)

	if waitBriefly(l) != nil || waitBriefly(l) != nil {
		t.Fatal("expected burst of two")
	}
	if waitBriefly(l) == nil {
		t.Error("third immediate call should be throttled")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New("birdeye", 0.01)
	if err := waitBriefly(l); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("expected context error while waiting for a token")
	}
}

func TestNonPositiveRateDefaults(t *testing.T) {
	l := New("rugcheck", 0)
	if l.Name() != "rugcheck" {
		t.Errorf("name: got %s", l.Name())
	}
	if err := waitBriefly(l); err != nil {
		t.Errorf("defaulted limiter should allow one call: %v", err)
	}
}
