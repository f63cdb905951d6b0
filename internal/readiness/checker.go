// Package readiness: checker.go implements synthetic health checks during
// OPEN state. When a circuit opens because a service's health checks keep
// failing, the checker runs periodic lightweight probes against that
// service's /health-check endpoint to detect recovery faster than waiting
// for the full cooldown period.
package readiness

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceHealthCheck defines how to check if an instrumented service is
// ready. Implementations should be lightweight and fast.
type ServiceHealthCheck interface {
	// Check performs a health check against the service.
	// Returns nil if ready, error if not.
	Check(ctx context.Context) error

	// ServiceName returns the name of the service being checked.
	ServiceName() string
}

// HTTPHealthCheck performs health checks via an HTTP GET against a
// service's /health-check endpoint.
type HTTPHealthCheck struct {
	name     string
	url      string
	client   *http.Client
	method   string
	expectOK bool
}

// NewHTTPHealthCheck creates an HTTP-based health check against url (the
// service's /health-check endpoint). By default it performs a GET request
// and expects a 2xx response.
func NewHTTPHealthCheck(name, url string, client *http.Client) *HTTPHealthCheck {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPHealthCheck{
		name:     name,
		url:      url,
		client:   client,
		method:   http.MethodGet,
		expectOK: true,
	}
}

// Check performs the HTTP health check.
func (h *HTTPHealthCheck) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, h.method, h.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if h.expectOK && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return fmt.Errorf("unready status: %d", resp.StatusCode)
	}
	return nil
}

// ServiceName returns the name of the service.
func (h *HTTPHealthCheck) ServiceName() string {
	return h.name
}

// NoOpHealthCheck always reports ready. Used for services that were
// instrumented without a reachable /health-check endpoint.
type NoOpHealthCheck struct {
	name string
}

// NewNoOpHealthCheck creates a no-op health check that always succeeds.
func NewNoOpHealthCheck(name string) *NoOpHealthCheck {
	return &NoOpHealthCheck{name: name}
}

// Check always returns nil (ready).
func (n *NoOpHealthCheck) Check(_ context.Context) error {
	return nil
}

// ServiceName returns the name of the service.
func (n *NoOpHealthCheck) ServiceName() string {
	return n.name
}

// NewServiceHealthCheck builds a health check appropriate for a service:
// HTTP-based if baseURL is known, a no-op otherwise.
func NewServiceHealthCheck(name, baseURL string, client *http.Client) ServiceHealthCheck {
	if baseURL == "" {
		return NewNoOpHealthCheck(name)
	}
	return NewHTTPHealthCheck(name, baseURL+"/health-check", client)
}

// Checker polls instrumented services' /health-check endpoints on a fixed
// interval and drives their circuit breakers, giving OPEN circuits a chance
// to recover before their cooldown ends.
type Checker struct {
	ctx     context.Context
	tracker *Tracker
	checks  map[string]ServiceHealthCheck
	logger  *zerolog.Logger
	cancel  context.CancelFunc
	config  CheckConfig
	wg      sync.WaitGroup
	mu      sync.RWMutex
}

// NewChecker creates a new Checker.
func NewChecker(tracker *Tracker, cfg CheckConfig, logger *zerolog.Logger) *Checker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Checker{
		tracker: tracker,
		config:  cfg,
		checks:  make(map[string]ServiceHealthCheck),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// RegisterService adds a health check for a service.
func (h *Checker) RegisterService(check ServiceHealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[check.ServiceName()] = check
}

// Start begins periodic health checking for all registered services.
// Should be called once after construction.
func (h *Checker) Start() {
	if !h.config.IsEnabled() {
		if h.logger != nil {
			h.logger.Info().Msg("readiness checker disabled")
		}
		return
	}

	interval := h.config.GetInterval()
	jitter := cryptoRandDuration(2 * time.Second)
	ticker := time.NewTicker(interval + jitter)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer ticker.Stop()

		if h.logger != nil {
			h.logger.Info().
				Dur("interval", interval).
				Dur("jitter", jitter).
				Msg("readiness checker started")
		}

		for {
			select {
			case <-h.ctx.Done():
				if h.logger != nil {
					h.logger.Info().Msg("readiness checker stopped")
				}
				return
			case <-ticker.C:
				h.checkAllServices()
			}
		}
	}()
}

// Stop stops the checker and waits for its goroutine to finish.
func (h *Checker) Stop() {
	h.cancel()
	h.wg.Wait()
}

// checkAllServices runs health checks for all services with OPEN circuits.
func (h *Checker) checkAllServices() {
	h.mu.RLock()
	checks := make([]ServiceHealthCheck, 0, len(h.checks))
	for _, check := range h.checks {
		checks = append(checks, check)
	}
	h.mu.RUnlock()

	for _, check := range checks {
		name := check.ServiceName()
		state := h.tracker.GetState(name)

		if state != StateOpen {
			continue
		}
		if _, ok := check.(*NoOpHealthCheck); ok {
			continue
		}

		ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
		err := check.Check(ctx)
		cancel()

		if err != nil {
			if h.logger != nil {
				h.logger.Debug().
					Str("service", name).
					Err(err).
					Msg("health check failed")
			}
			continue
		}

		if h.logger != nil {
			h.logger.Info().
				Str("service", name).
				Msg("health check succeeded, recording success")
		}
		// gobreaker ignores reports while a circuit is open, so the open
		// circuit is dropped and the success lands on a fresh, closed one.
		h.tracker.mu.Lock()
		delete(h.tracker.circuits, name)
		h.tracker.mu.Unlock()
		h.tracker.RecordSuccess(name)
	}
}

// cryptoRandDuration returns a cryptographically random duration between 0 and maxDur.
func cryptoRandDuration(maxDur time.Duration) time.Duration {
	if maxDur <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	n := binary.LittleEndian.Uint64(b[:])
	return time.Duration(n % uint64(maxDur)) //nolint:gosec // maxDur is always positive, checked above
}
