// Package config defines the application configuration loaded by the
// brainoverflow binary.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"

	pkgconfig "github.com/lewisedginton/brainoverflow/pkg/config"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"brainoverflow"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`

	pkgconfig.CommonConfig `yaml:",inline"`

	HTTP     pkgconfig.HTTPServerConfig `yaml:"http"`
	GRPCPort int                        `env:"GRPC_PORT" yaml:"grpc_port" default:"8000"`
	Metrics  pkgconfig.MetricsConfig    `yaml:"metrics"`
	Database pkgconfig.DatabaseConfig   `yaml:"database"`

	Storage   StorageConfig   `yaml:"storage"`
	Observer  ObserverConfig  `yaml:"observer"`
	Scripting ScriptingConfig `yaml:"scripting"`
	Health    HealthConfig    `yaml:"health"`
	Security  SecurityConfig  `yaml:"security"`

	// CallTimeout bounds a single bridge dispatch.
	CallTimeout time.Duration `env:"BRIDGE_CALL_TIMEOUT" yaml:"call_timeout" default:"30s"`
}

// ObserverConfig controls the store observer.
type ObserverConfig struct {
	Enabled  bool          `env:"OBSERVER_ENABLED" yaml:"enabled" default:"true"`
	Interval time.Duration `env:"OBSERVER_INTERVAL" yaml:"interval" default:"10s"`
}

// ScriptingConfig controls the Lua controller plugin. An empty Dir disables it.
type ScriptingConfig struct {
	Dir     string        `env:"SCRIPTS_DIR" yaml:"dir"`
	Timeout time.Duration `env:"SCRIPTS_TIMEOUT" yaml:"timeout" default:"5s"`
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := pkgconfig.GetConfig(cfg, path, false); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *AppConfig) Validate() error {
	var result error

	for _, v := range []pkgconfig.Validator{c.CommonConfig, c.HTTP, c.Metrics, c.Database, c.Storage, c.Health} {
		if err := v.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("grpc_port must be between 0 and 65535, got %d", c.GRPCPort))
	}
	if c.Observer.Enabled && c.Observer.Interval <= 0 {
		result = multierror.Append(result, fmt.Errorf("observer interval must be greater than 0"))
	}
	if c.Scripting.Dir != "" && c.Scripting.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("scripts timeout must be greater than 0"))
	}
	if c.CallTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("call_timeout cannot be negative"))
	}

	return result
}

// LoggerConfig returns the logger settings for this configuration.
func (c *AppConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:   logger.ParseLevel(c.LogLevel),
		Format:  c.LogFormat,
		Service: c.ServiceName,
	}
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.IntField("http_port", c.HTTP.Port),
		logger.IntField("grpc_port", c.GRPCPort),
		logger.StringField("storage_backend", c.Storage.Backend),
		logger.StringField("store_path", c.Storage.Path()),
		logger.BoolField("observer_enabled", c.Observer.Enabled),
		logger.DurationField("observer_interval", c.Observer.Interval),
		logger.BoolField("scripting_enabled", c.Scripting.Dir != ""),
		logger.BoolField("metrics_exposed", c.Metrics.ExposeMetrics),
		logger.BoolField("database_configured", c.Database.Enabled()),
	)
}

// DefaultStoreDir is ~/BrainOverflow, falling back to ./BrainOverflow when
// the home directory is unknown.
func DefaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "BrainOverflow"
	}
	return filepath.Join(home, "BrainOverflow")
}
