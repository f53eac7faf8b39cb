// Package monitoring wires the application's dependencies into health probes.
package monitoring

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/brainoverflow/pkg/health"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// ErrShuttingDown fails readiness once shutdown has begun.
var ErrShuttingDown = errors.New("service is shutting down")

// StoreChecker is implemented by the storage manager.
type StoreChecker interface {
	Check(ctx context.Context) error
}

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds configuration for the health monitor
type Config struct {
	Logger           logger.Logger
	Store            StoreChecker
	Database         Pinger // optional
	Timeout          time.Duration
	FailureThreshold int
}

// HealthMonitor owns the checker and the shutdown flag.
type HealthMonitor struct {
	checker      *health.Checker
	shuttingDown atomic.Bool
}

// NewHealthMonitor creates a new health monitor with configured checks
func NewHealthMonitor(cfg Config) *HealthMonitor {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	hm := &HealthMonitor{
		checker: health.New(
			health.WithLogger(cfg.Logger),
			health.WithTimeout(cfg.Timeout),
			health.WithFailureThreshold(cfg.FailureThreshold),
		),
	}

	hm.checker.AddLivenessCheck(health.NewCheckFunc("process", func(context.Context) error {
		return nil
	}))

	hm.checker.AddReadinessCheck(health.NewCheckFunc("shutdown", func(context.Context) error {
		if hm.shuttingDown.Load() {
			return ErrShuttingDown
		}
		return nil
	}))
	if cfg.Store != nil {
		hm.checker.AddReadinessCheck(health.NewCheckFunc("store", cfg.Store.Check))
	}
	if cfg.Database != nil {
		hm.checker.AddReadinessCheck(health.NewCheckFunc("database", cfg.Database.Ping))
	}

	return hm
}

// Checker exposes the underlying checker, for the gRPC health service.
func (hm *HealthMonitor) Checker() *health.Checker {
	return hm.checker
}

// MarkShuttingDown makes readiness fail from now on.
func (hm *HealthMonitor) MarkShuttingDown() {
	hm.shuttingDown.Store(true)
}

// RegisterRoutes mounts /health, /health/live and /health/ready.
func (hm *HealthMonitor) RegisterRoutes(r chi.Router) {
	r.Get("/health", hm.checker.CombinedHandler())
	r.Get("/health/live", hm.checker.LivenessHandler())
	r.Get("/health/ready", hm.checker.ReadinessHandler())
}
