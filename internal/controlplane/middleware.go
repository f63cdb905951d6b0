package controlplane

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/filibuster-io/filibuster-go/internal/ratelimit"
)

// RequestIDMiddleware attaches a correlation id to the request context and
// echoes it back on the response.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := AddRequestID(r.Context(), r.Header.Get("X-Request-ID"))
			w.Header().Set("X-Request-ID", GetRequestID(ctx))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs each control-plane call with method, path,
// status, and duration.
func LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger := zerolog.Ctx(r.Context()).With().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Logger()

			switch {
			case wrapped.statusCode >= 500:
				logger.Error().Msg("control-plane call")
			case wrapped.statusCode >= 400:
				logger.Warn().Msg("control-plane call")
			default:
				logger.Debug().Msg("control-plane call")
			}
		})
	}
}

// RateLimitMiddleware rejects calls once limiter's token bucket is
// exhausted, protecting the orchestrator from a runaway or
// mis-instrumented service flooding it with callbacks.
func RateLimitMiddleware(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow() {
				WriteRateLimitError(w, time.Second)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recoverer converts a panicking handler into a 500, so that a bug in one
// instrumentation callback cannot take down the whole control-plane.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					zerolog.Ctx(r.Context()).Error().
						Interface("panic", rec).
						Msg("control-plane handler panicked")
					WriteError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
