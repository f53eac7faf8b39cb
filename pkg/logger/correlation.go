package logger

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
)

const (
	// CorrelationIDHeader carries the correlation id on HTTP requests.
	CorrelationIDHeader = "X-Correlation-ID"
	// CorrelationIDMetadataKey is the key used for correlation ID in gRPC metadata
	CorrelationIDMetadataKey = "x-correlation-id"
	// CorrelationIDFieldKey is the field key used for correlation ID in log entries
	CorrelationIDFieldKey = "correlation_id"
)

type contextKey string

const correlationIDContextKey contextKey = "correlation_id"

// WithCorrelationIDContext adds correlation ID to context
func WithCorrelationIDContext(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey, correlationID)
}

// GetCorrelationIDFromContext retrieves correlation ID from context
func GetCorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDContextKey).(string); ok {
		return id
	}
	return ""
}

// EnsureCorrelationID returns a context carrying a correlation id. An id
// already in the context wins, then a valid UUID from incoming gRPC
// metadata, otherwise a fresh UUID is generated.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := GetCorrelationIDFromContext(ctx); id != "" {
		return ctx, id
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(CorrelationIDMetadataKey); len(values) > 0 {
			if _, err := uuid.Parse(values[0]); err == nil {
				return WithCorrelationIDContext(ctx, values[0]), values[0]
			}
		}
	}

	id := uuid.New().String()
	return WithCorrelationIDContext(ctx, id), id
}

// EnsureHTTPCorrelationID ensures HTTP request has a correlation ID, generating one if needed
func EnsureHTTPCorrelationID(r *http.Request) (*http.Request, string) {
	id := r.Header.Get(CorrelationIDHeader)
	if _, err := uuid.Parse(id); id == "" || err != nil {
		id = uuid.New().String()
		r.Header.Set(CorrelationIDHeader, id)
	}

	return r.WithContext(WithCorrelationIDContext(r.Context(), id)), id
}

// GetLoggerFromContext returns a logger with correlation ID from context automatically injected
func GetLoggerFromContext(ctx context.Context, baseLogger Logger) Logger {
	if id := GetCorrelationIDFromContext(ctx); id != "" {
		return baseLogger.WithCorrelationID(id)
	}
	return baseLogger
}
