package config

import (
	"fmt"
	"time"
)

// HealthConfig holds health check configuration
type HealthConfig struct {
	Timeout          time.Duration `env:"HEALTH_TIMEOUT" yaml:"timeout" default:"10s"`
	FailureThreshold int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`
}

// Validate checks the probe settings.
func (h HealthConfig) Validate() error {
	if h.Timeout <= 0 {
		return fmt.Errorf("health timeout must be greater than 0")
	}
	if h.FailureThreshold < 1 {
		return fmt.Errorf("health failure_threshold must be at least 1, got %d", h.FailureThreshold)
	}
	return nil
}
