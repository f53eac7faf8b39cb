// Package metrics provides Prometheus metrics for HTTP, gRPC and bridge dispatches.
package metrics

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

const subsystem = "brainoverflow"

// Dispatch outcomes recorded by ObserveDispatch.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomePanicked = "panicked"
)

var defaultBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1.0, 3.0, 10.0}

// Metrics owns a private registry and the collectors that were enabled at
// construction. Collectors that were not enabled are nil and every
// recording method is a no-op for them.
type Metrics struct {
	reg *prometheus.Registry
	log logger.Logger

	httpRequests *prometheus.CounterVec
	httpDuration prometheus.Histogram

	grpcRequests *prometheus.CounterVec
	grpcDuration prometheus.Histogram

	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with the specified collectors enabled.
func NewMetrics(httpMetrics, grpcMetrics, bridgeMetrics bool, l logger.Logger) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
	}

	if httpMetrics {
		m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "http_responses_total",
			Help:      "HTTP responses returned, by status code",
		}, []string{"code"})
		m.httpDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   defaultBuckets,
		})
		m.reg.MustRegister(m.httpRequests, m.httpDuration)
	}

	if grpcMetrics {
		m.grpcRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "grpc_responses_total",
			Help:      "gRPC responses returned, by status code",
		}, []string{"code"})
		m.grpcDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request duration in seconds",
			Buckets:   defaultBuckets,
		})
		m.reg.MustRegister(m.grpcRequests, m.grpcDuration)
	}

	if bridgeMetrics {
		m.dispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "bridge_dispatches_total",
			Help:      "Bridge requests dispatched to controllers, by outcome",
		}, []string{"controller", "action", "outcome"})
		m.dispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "bridge_dispatch_duration_seconds",
			Help:      "Bridge dispatch duration in seconds",
			Buckets:   defaultBuckets,
		}, []string{"controller"})
		m.reg.MustRegister(m.dispatches, m.dispatchDuration)
	}

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// AddCustomMetric registers a custom Prometheus collector.
func (m *Metrics) AddCustomMetric(c prometheus.Collector) {
	m.reg.MustRegister(c)
}

// Listen serves /metrics on port until ctx is cancelled. Server failures
// are delivered on the returned channel, which is closed on exit.
func (m *Metrics) Listen(ctx context.Context, port int) chan error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		m.log.Info("Starting metrics listener", logger.IntField("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics listener: %w", err)
		}
	}()

	go func() {
		<-ctx.Done()
		m.log.Info("Stopping metrics listener")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:contextcheck // parent is already cancelled
		defer cancel()
		_ = server.Shutdown(shutdownCtx) //nolint:contextcheck // parent is already cancelled
	}()

	return errChan
}

// ObserveDispatch records one bridge dispatch.
func (m *Metrics) ObserveDispatch(controller, action, outcome string, d time.Duration) {
	if m.dispatches == nil {
		return
	}
	m.dispatches.WithLabelValues(controller, action, outcome).Inc()
	m.dispatchDuration.WithLabelValues(controller).Observe(d.Seconds())
}

// HTTPMiddleware returns a chi-compatible middleware that tracks HTTP metrics
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.httpRequests == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			m.httpDuration.Observe(time.Since(start).Seconds())
			m.httpRequests.WithLabelValues(strconv.Itoa(rw.statusCode)).Inc()
		})
	}
}

// UnaryServerInterceptor records gRPC call counts and latency.
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if m.grpcRequests == nil {
			return handler(ctx, req)
		}
		start := time.Now()
		resp, err := handler(ctx, req)
		m.grpcDuration.Observe(time.Since(start).Seconds())
		m.grpcRequests.WithLabelValues(status.Code(err).String()).Inc()
		return resp, err
	}
}

// responseWriter wraps http.ResponseWriter to capture status code. Hijack
// is forwarded so websocket upgrades keep working behind the middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
