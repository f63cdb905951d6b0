package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/filibuster-io/filibuster-go/internal/ratelimit"
)

func TestTokenBucketLimiter_AllowRespectsBurst(t *testing.T) {
	l := ratelimit.NewTokenBucketLimiter(1, 3)

	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("expected burst of 3 allowed callbacks, got %d", allowed)
	}
}

func TestTokenBucketLimiter_NonPositiveIsUnlimited(t *testing.T) {
	l := ratelimit.NewTokenBucketLimiter(0, 0)
	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatalf("expected unlimited limiter to always allow, failed at %d", i)
		}
	}
}

func TestTokenBucketLimiter_WaitRespectsCancellation(t *testing.T) {
	l := ratelimit.NewTokenBucketLimiter(1, 1)
	l.Allow() // drain the single burst slot

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if err != ratelimit.ErrContextCancelled {
		t.Fatalf("expected ErrContextCancelled, got %v", err)
	}
}

func TestTokenBucketLimiter_SetLimitUpdatesBurst(t *testing.T) {
	l := ratelimit.NewTokenBucketLimiter(1, 1)
	l.SetLimit(1, 10)

	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow() {
			allowed++
		}
	}
	if allowed != 10 {
		t.Fatalf("expected 10 allowed after widening burst, got %d", allowed)
	}
}
