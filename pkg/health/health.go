// Package health runs liveness and readiness checks and exposes them over
// HTTP and the gRPC health protocol.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// Check represents a single health check that can succeed or fail.
type Check interface {
	Name() string
	// Check returns nil when healthy.
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to Check.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheckFunc creates a new CheckFunc with the given name and function.
func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

// Name returns the name of this check.
func (c *CheckFunc) Name() string { return c.name }

// Check executes the check function.
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult represents the result of a single health check execution.
type CheckResult struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// Status is the aggregated result of a set of checks.
type Status struct {
	Healthy bool
	Checks  []CheckResult
}

// Checker manages and executes health checks for liveness and readiness probes.
// A check only reports unhealthy after failureThreshold consecutive failures.
type Checker struct {
	mu               sync.Mutex
	liveness         []Check
	readiness        []Check
	failures         map[string]int
	timeout          time.Duration
	failureThreshold int
	logger           logger.Logger
}

// Option is a functional option for configuring Checker.
type Option func(*Checker)

// WithTimeout sets the per-check timeout. Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for health check operations.
func WithLogger(l logger.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// WithFailureThreshold sets how many consecutive failures make a check
// unhealthy. Default is 1.
func WithFailureThreshold(threshold int) Option {
	return func(c *Checker) {
		if threshold > 0 {
			c.failureThreshold = threshold
		}
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		failures:         make(map[string]int),
		timeout:          5 * time.Second,
		failureThreshold: 1,
		logger:           logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLivenessCheck adds a check deciding whether the process should be restarted.
func (c *Checker) AddLivenessCheck(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveness = append(c.liveness, check)
}

// AddReadinessCheck adds a check deciding whether the service can take traffic.
func (c *Checker) AddReadinessCheck(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readiness = append(c.readiness, check)
}

// CheckLiveness executes all liveness checks.
func (c *Checker) CheckLiveness(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	checks := append([]Check(nil), c.liveness...)
	c.mu.Unlock()
	return c.run(ctx, checks)
}

// CheckReadiness executes all readiness checks.
func (c *Checker) CheckReadiness(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	checks := append([]Check(nil), c.readiness...)
	c.mu.Unlock()
	return c.run(ctx, checks)
}

func (c *Checker) run(ctx context.Context, checks []Check) (*Status, error) {
	results := make([]CheckResult, len(checks))

	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(idx int, chk Check) {
			defer wg.Done()
			results[idx] = c.execute(ctx, chk)
		}(i, check)
	}
	wg.Wait()

	status := &Status{Healthy: true, Checks: results}
	var failed []string
	for _, r := range results {
		if !r.Healthy {
			status.Healthy = false
			failed = append(failed, r.Name)
		}
	}
	if !status.Healthy {
		return status, fmt.Errorf("health checks failed: %v", failed)
	}
	return status, nil
}

func (c *Checker) execute(parent context.Context, check Check) CheckResult {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	result := CheckResult{Name: check.Name(), Healthy: true, Latency: time.Since(start)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures[check.Name()] = 0
		return result
	}

	c.failures[check.Name()]++
	count := c.failures[check.Name()]
	if count < c.failureThreshold {
		c.logger.Debug("Health check failed but below threshold",
			logger.StringField("check", check.Name()),
			logger.ErrorField(err),
			logger.IntField("failures", count))
		return result
	}

	result.Healthy = false
	result.Error = err.Error()
	c.logger.Warn("Health check failed",
		logger.StringField("check", check.Name()),
		logger.ErrorField(err),
		logger.IntField("failures", count))
	return result
}
