// Package ratelimit guards the control-plane HTTP endpoints against a
// misbehaving or runaway instrumentation client flooding the orchestrator
// with callbacks.
//
// Unlike a multi-tenant API gateway, the control-plane has a single
// dimension to protect: inbound callback rate. There is no per-key or
// per-token accounting here, just one token bucket shared by every
// control-plane endpoint.
package ratelimit

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// ErrContextCancelled is returned when the context is canceled during a blocking Wait.
var ErrContextCancelled = errors.New("ratelimit: context canceled")

// Limiter defines the rate limiting operations the control-plane depends on.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow reports whether a callback may proceed right now.
	Allow() bool

	// Wait blocks until a callback is allowed or ctx is canceled.
	Wait(ctx context.Context) error

	// SetLimit updates the limiter's rate and burst, in callbacks per second.
	SetLimit(perSecond, burst int)
}

// TokenBucketLimiter implements Limiter using golang.org/x/time/rate.
//
// Burst defaults to the rate itself so a quiet period can absorb a short
// spike without dropping callbacks, then throttles smoothly afterward.
type TokenBucketLimiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
}

// NewTokenBucketLimiter builds a limiter admitting perSecond callbacks per
// second with the given burst. A non-positive perSecond disables limiting.
func NewTokenBucketLimiter(perSecond, burst int) *TokenBucketLimiter {
	if perSecond <= 0 {
		return &TokenBucketLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = perSecond
	}
	return &TokenBucketLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *TokenBucketLimiter) Allow() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiter.Allow()
}

func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	l.mu.RLock()
	limiter := l.limiter
	l.mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ErrContextCancelled
		}
		return err
	}
	return nil
}

func (l *TokenBucketLimiter) SetLimit(perSecond, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if perSecond <= 0 {
		l.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	if burst <= 0 {
		burst = perSecond
	}
	l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}
