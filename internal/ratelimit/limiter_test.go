package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	l := NewLimiter()
	now := time.Now()

	if !l.Allow("host:sign", 1, 2, now) {
		t.Fatalf("expected first call allowed")
	}
	if !l.Allow("host:sign", 1, 2, now) {
		t.Fatalf("expected second call allowed")
	}
	if l.Allow("host:sign", 1, 2, now) {
		t.Fatalf("expected third call paced")
	}

	later := now.Add(1500 * time.Millisecond)
	if !l.Allow("host:sign", 1, 2, later) {
		t.Fatalf("expected refill to allow after time")
	}
}

func TestLimiterDifferentKeys(t *testing.T) {
	l := NewLimiter()
	now := time.Now()

	if !l.Allow("host:a", 1, 1, now) {
		t.Fatalf("expected first key allowed")
	}
	if !l.Allow("host:b", 1, 1, now) {
		t.Fatalf("expected second key allowed")
	}
}

func TestLimiterWaitCancelled(t *testing.T) {
	l := NewLimiter()
	now := time.Now()

	// Drain the bucket so Wait has to block.
	if !l.Allow("host:c", 0.001, 1, now) {
		t.Fatalf("expected first call allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "host:c", 0.001, 1); err == nil {
		t.Fatalf("expected context error from Wait")
	}
}
