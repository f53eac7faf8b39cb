package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DatabaseConfig holds Postgres connection settings. An empty URL disables
// every database-backed feature.
type DatabaseConfig struct {
	URL            string        `env:"DATABASE_URL" yaml:"url"`
	MaxConnections int32         `env:"DB_MAX_CONNECTIONS" yaml:"max_connections" default:"10"`
	MinConnections int32         `env:"DB_MIN_CONNECTIONS" yaml:"min_connections" default:"1"`
	MaxIdleTime    time.Duration `env:"DB_MAX_IDLE_TIME" yaml:"max_idle_time" default:"5m"`
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" yaml:"connect_timeout" default:"10s"`
}

// Enabled reports whether a database has been configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Validate checks pool settings when a database is configured.
func (d DatabaseConfig) Validate() error {
	if !d.Enabled() {
		return nil
	}

	var result error
	if d.MaxConnections < 1 {
		result = multierror.Append(result, fmt.Errorf("max_connections must be positive, got %d", d.MaxConnections))
	}
	if d.MinConnections < 0 {
		result = multierror.Append(result, fmt.Errorf("min_connections must be non-negative, got %d", d.MinConnections))
	}
	if d.MinConnections > d.MaxConnections {
		result = multierror.Append(result, fmt.Errorf("min_connections (%d) cannot exceed max_connections (%d)", d.MinConnections, d.MaxConnections))
	}
	return result
}
