package logger

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// Hijack lets websocket upgrades pass through the logging middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// HTTPMiddleware returns chi-compatible middleware that logs every request
// and response with a correlation id.
func HTTPMiddleware(base Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, correlationID := EnsureHTTPCorrelationID(r)

			requestLogger := base.WithFields(
				ClientIPField(r.RemoteAddr),
				HTTPMethodField(r.Method),
				HTTPPathField(r.URL.Path),
				CorrelationIDField(correlationID),
			)
			requestLogger.Debug("HTTP request received")

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			requestLogger.Info("HTTP response sent",
				HTTPStatusField(wrapped.statusCode),
				IntField("response_bytes", wrapped.bytesWritten),
				DurationField("duration", time.Since(start)),
			)
		})
	}
}

// UnaryServerInterceptor logs gRPC unary calls.
func UnaryServerInterceptor(base Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx, correlationID := EnsureCorrelationID(ctx)

		callLogger := base.WithFields(
			StringField("grpc_method", info.FullMethod),
			CorrelationIDField(correlationID),
		)

		resp, err := handler(ctx, req)

		fields := []LogField{
			DurationField("duration", time.Since(start)),
			StringField("grpc_code", status.Code(err).String()),
		}
		if err != nil {
			callLogger.Error("gRPC request completed with error", append(fields, ErrorField(err))...)
		} else {
			callLogger.Debug("gRPC request completed", fields...)
		}

		return resp, err
	}
}
