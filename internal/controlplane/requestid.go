package controlplane

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ctxKey string

// requestIDKey is the context key for the per-request correlation id.
const requestIDKey ctxKey = "request_id"

// AddRequestID extracts requestID from an incoming header, or mints one,
// and attaches both it and a logger carrying it to ctx.
func AddRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	logger := log.Ctx(ctx).With().Str("request_id", requestID).Logger()
	return logger.WithContext(ctx)
}

// GetRequestID retrieves the request id attached by AddRequestID.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
