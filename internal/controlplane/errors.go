package controlplane

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// errorResponse is the JSON shape returned on a 4xx/5xx from any handler.
type errorResponse struct {
	Error string `json:"error"`
}

// WriteError writes a JSON error response and logs it at warn.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	log.Warn().Int("status", statusCode).Str("error", message).Msg("control-plane request rejected")
	writeJSON(w, statusCode, errorResponse{Error: message})
}

// WriteRateLimitError writes a 429 carrying a Retry-After hint.
func WriteRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to write control-plane response")
	}
}
