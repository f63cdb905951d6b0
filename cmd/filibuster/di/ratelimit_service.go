package di

import (
	"github.com/samber/do/v2"

	"github.com/filibuster-io/filibuster-go/internal/config"
	"github.com/filibuster-io/filibuster-go/internal/ratelimit"
)

// RateLimiterService wraps the token bucket guarding inbound callback
// traffic. SetLimit makes this hot-reload aware without swapping the
// Limiter value callers already hold a reference to.
type RateLimiterService struct {
	Limiter *ratelimit.TokenBucketLimiter
	cfgSvc  *ConfigService
}

// StartWatching re-tunes the limiter's rate and burst whenever the config
// reloads.
func (s *RateLimiterService) StartWatching() {
	if s.cfgSvc == nil || s.cfgSvc.watcher == nil {
		return
	}
	s.cfgSvc.watcher.OnReload(func(newCfg *config.Config) error {
		s.Limiter.SetLimit(newCfg.RateLimit.PerSecond, newCfg.RateLimit.Burst)
		return nil
	})
}

// NewRateLimiter creates the token bucket rate limiter from configuration.
func NewRateLimiter(i do.Injector) (*RateLimiterService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	rl := cfgSvc.Config.RateLimit

	svc := &RateLimiterService{
		Limiter: ratelimit.NewTokenBucketLimiter(rl.PerSecond, rl.Burst),
		cfgSvc:  cfgSvc,
	}
	svc.StartWatching()

	return svc, nil
}
