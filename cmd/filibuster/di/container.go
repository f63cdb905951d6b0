// Package di wires the control-plane's services together with samber/do.
// Every long-lived object (config, catalog, readiness tracker, rate
// limiter, orchestrator, HTTP server) is constructed exactly once per
// process and resolved through this container. The exceptions in
// cmd/filibuster: test and replay build their CommandRunner from CLI flags,
// and replay constructs its own Orchestrator around the loaded
// counterexample.
package di

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"
)

// ConfigPathKey names the config file path in the injector's named-value
// store, so NewConfig can resolve it without a hand-threaded parameter.
const ConfigPathKey = "config.path"

// Container owns the dependency injector for one control-plane process.
type Container struct {
	injector *do.RootScope
}

// NewContainer builds a Container and registers every singleton provider.
// Construction is lazy: providers run the first time something resolves
// them, not during NewContainer itself.
func NewContainer(configPath string) (*Container, error) {
	injector := do.New()
	do.ProvideNamedValue(injector, ConfigPathKey, configPath)

	RegisterSingletons(injector)

	return &Container{injector: injector}, nil
}

// Injector exposes the underlying do.RootScope for callers that need to
// register additional ad-hoc services (tests, mainly).
func (c *Container) Injector() *do.RootScope {
	return c.injector
}

// Invoke resolves T from the container, returning an error if construction
// fails.
func Invoke[T any](c *Container) (T, error) {
	return do.Invoke[T](c.injector)
}

// MustInvoke resolves T from the container, panicking on failure. Intended
// for use during command setup, where a missing dependency is a
// programming error, not a runtime condition to recover from.
func MustInvoke[T any](c *Container) T {
	return do.MustInvoke[T](c.injector)
}

// InvokeNamed resolves a named value (e.g. ConfigPathKey) from the
// container.
func InvokeNamed[T any](c *Container, name string) (T, error) {
	return do.InvokeNamed[T](c.injector, name)
}

// MustInvokeNamed resolves a named value, panicking on failure.
func MustInvokeNamed[T any](c *Container, name string) T {
	return do.MustInvokeNamed[T](c.injector, name)
}

// Shutdown tears down every registered service in reverse dependency
// order, stopping watchers and HTTP servers along the way.
func (c *Container) Shutdown() error {
	report := c.injector.Shutdown()
	if report != nil && !report.Succeed {
		return fmt.Errorf("shutdown failed: %s", report.Error())
	}
	return nil
}

// ShutdownWithContext is Shutdown with a deadline, for callers that need
// to bound how long they wait for graceful cleanup (e.g. SIGTERM
// handling).
func (c *Container) ShutdownWithContext(ctx context.Context) error {
	done := make(chan *do.ShutdownReport, 1)
	go func() { done <- c.injector.ShutdownWithContext(ctx) }()

	select {
	case report := <-done:
		if report != nil && !report.Succeed {
			return fmt.Errorf("shutdown failed: %s", report.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// HealthCheck proves the container can still resolve its config service,
// which is as close as DI gets to "is this process sane".
func (c *Container) HealthCheck() error {
	if _, err := do.Invoke[*ConfigService](c.injector); err != nil {
		return fmt.Errorf("config service unhealthy: %w", err)
	}
	return nil
}
