package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/do/v2"

	"github.com/filibuster-io/filibuster-go/internal/config"
)

// ConfigService wraps the loaded configuration with hot-reload support.
// StartWatching installs an OnReload callback that replaces Config wholesale
// on a clean reload, so callers that read Config once per request see a
// consistent snapshot even if a reload happens mid-request.
//
//nolint:govet // field order kept readable, not alignment-optimal
type ConfigService struct {
	Config  *config.Config
	watcher *config.Watcher
	path    string
}

// Get returns the current configuration.
func (c *ConfigService) Get() *config.Config {
	return c.Config
}

// StartWatching begins watching the config file for changes and registers
// a callback that swaps ConfigService.Config when the file reloads
// cleanly. Call this once, after the rest of the container has registered
// its own OnReload callbacks.
func (c *ConfigService) StartWatching(ctx context.Context) {
	if c.watcher == nil {
		return
	}
	c.watcher.OnReload(func(newCfg *config.Config) error {
		c.Config = newCfg
		return nil
	})
	go func() {
		if err := c.watcher.Watch(ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("config watcher stopped")
		}
	}()
}

// Shutdown implements do.Shutdowner.
func (c *ConfigService) Shutdown() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// NewConfig loads the configuration file and creates (but does not start)
// its watcher. StartWatching is called explicitly from cmd/filibuster once
// the rest of the container is wired, so every OnReload callback is
// registered before the first filesystem event can arrive.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	svc := &ConfigService{Config: cfg, path: path}

	watcher, err := config.NewWatcher(path)
	if err != nil {
		// Hot-reload is optional: a file that can't be watched (e.g. it
		// lives on an exotic filesystem) still loaded fine above.
		return svc, nil
	}
	svc.watcher = watcher

	return svc, nil
}

// RegisterSingletons wires every service the control-plane needs, in
// dependency order: config and logging first, then the domain services
// that depend on them, then the control-plane server that depends on all
// of those.
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewCatalog)
	do.Provide(i, NewReadinessTracker)
	do.Provide(i, NewReadinessChecker)
	do.Provide(i, NewRateLimiter)
	do.Provide(i, NewFaultMemo)
	do.Provide(i, NewMetrics)
	do.Provide(i, NewOrchestrator)
	do.Provide(i, NewControlPlaneServer)
}
