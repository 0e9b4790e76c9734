package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

type correlationKey struct{}

// NewCorrelationID generates a short request-scoped identifier, falling
// back to a timestamp if the system RNG is unavailable.
func NewCorrelationID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "corr_" + time.Now().Format("20060102T150405.000000000")
	}
	return "corr_" + hex.EncodeToString(buf)
}

// WithCorrelationID stores a correlation ID on the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext retrieves the correlation ID, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// FromContext returns a logger tagged with the context's correlation ID,
// if one was set by the HTTP binding.
func FromContext(ctx context.Context) *Logger {
	if id := CorrelationIDFromContext(ctx); id != "" {
		return GetLogger().WithRequestID(id)
	}
	return GetLogger()
}

// LogOperation times fn, logging its outcome at info (success) or error
// (failure) with the operation name and duration as structured fields.
func LogOperation(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	l := FromContext(ctx).WithOperation(operation)
	if err != nil {
		l.WithError(err).Error().Dur("elapsed", elapsed).Msg("operation failed")
		return err
	}
	l.Info().Dur("elapsed", elapsed).Msg("operation succeeded")
	return nil
}
