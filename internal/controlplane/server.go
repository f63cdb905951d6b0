// Package controlplane implements the HTTP service instrumentation shims
// call into during an execution: request-log intercepts, fault
// consultation, readiness signals, and Prometheus exposition.
package controlplane

import (
	"context"
	"net/http"
	"time"
)

// Server wraps http.Server with the control-plane's fixed timeouts.
type Server struct {
	httpServer *http.Server
	addr       string
}

// NewServer builds a Server listening on addr. Unlike a data-plane proxy,
// the control-plane never streams a response body of unbounded duration,
// so its timeouts stay conservative.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// ListenAndServe starts the server (blocks).
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
