package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	CommonConfig `yaml:",inline"`
	HTTP         HTTPServerConfig `yaml:"http"`
	Database     DatabaseConfig   `yaml:"database"`
	Metrics      MetricsConfig    `yaml:"metrics"`

	APIKey   string        `env:"API_KEY" yaml:"api_key" required:"true"`
	Debug    bool          `env:"DEBUG" yaml:"debug" default:"false"`
	Features []string      `env:"FEATURES" yaml:"features"`
	Interval time.Duration `env:"INTERVAL" yaml:"interval" default:"10s"`
}

func (c testConfig) Validate() error {
	if err := c.CommonConfig.Validate(); err != nil {
		return err
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	return c.Database.Validate()
}

func TestGetConfigFromEnvVars(t *testing.T) {
	t.Run("defaults with required field", func(t *testing.T) {
		t.Setenv("API_KEY", "test-key")

		var cfg testConfig
		require.NoError(t, GetConfigFromEnvVars(&cfg))

		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, 8080, cfg.HTTP.Port)
		assert.Equal(t, int64(10485760), cfg.HTTP.MaxBodyBytes)
		assert.Equal(t, int32(10), cfg.Database.MaxConnections)
		assert.Equal(t, 10*time.Second, cfg.Interval)
		assert.True(t, cfg.Metrics.EnableHTTPMetrics)
		assert.False(t, cfg.Database.Enabled())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("API_KEY", "env-key")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("HTTP_PORT", "3000")
		t.Setenv("FEATURES", "a, b ,c")
		t.Setenv("INTERVAL", "1m")
		t.Setenv("METRICS_ENABLE_HTTP", "false")

		var cfg testConfig
		require.NoError(t, GetConfigFromEnvVars(&cfg))

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 3000, cfg.HTTP.Port)
		assert.Equal(t, []string{"a", "b", "c"}, cfg.Features)
		assert.Equal(t, time.Minute, cfg.Interval)
		assert.False(t, cfg.Metrics.EnableHTTPMetrics)
	})

	t.Run("missing required field resets config", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "3000")

		var cfg testConfig
		err := GetConfigFromEnvVars(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API_KEY")
		assert.Equal(t, testConfig{}, cfg)
	})

	t.Run("invalid int", func(t *testing.T) {
		t.Setenv("API_KEY", "k")
		t.Setenv("HTTP_PORT", "not-a-number")

		var cfg testConfig
		assert.Error(t, GetConfigFromEnvVars(&cfg))
	})

	t.Run("validation failure", func(t *testing.T) {
		t.Setenv("API_KEY", "k")
		t.Setenv("LOG_LEVEL", "loud")

		var cfg testConfig
		err := GetConfigFromEnvVars(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})
}

func TestGetConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "api_key: ${TEST_CONFIG_KEY}\nlog_level: warn\nhttp:\n  http_port: 9000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("TEST_CONFIG_KEY", "from-env")
	t.Setenv("HTTP_PORT", "9100")

	var cfg testConfig
	require.NoError(t, GetConfig(&cfg, path, false))

	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 9100, cfg.HTTP.Port, "environment wins over file")
}

func TestGetConfigMissingFile(t *testing.T) {
	t.Setenv("API_KEY", "k")

	var cfg testConfig
	assert.Error(t, GetConfig(&cfg, "/does/not/exist.yaml", false))

	cfg = testConfig{}
	assert.NoError(t, GetConfig(&cfg, "/does/not/exist.yaml", true))
	assert.Equal(t, "k", cfg.APIKey)
}

func TestHTTPServerConfigHelpers(t *testing.T) {
	cfg := HTTPServerConfig{Port: 8081, ReadTimeoutSeconds: 1, WriteTimeoutSeconds: 2, IdleTimeoutSeconds: 3, MaxBodyBytes: 1}
	assert.Equal(t, ":8081", cfg.Addr())
	assert.Equal(t, time.Second, cfg.ReadTimeout())
	assert.Equal(t, 2*time.Second, cfg.WriteTimeout())
	assert.Equal(t, 3*time.Second, cfg.IdleTimeout())
	assert.NoError(t, cfg.Validate())

	cfg.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestDatabaseConfigValidation(t *testing.T) {
	assert.NoError(t, DatabaseConfig{}.Validate(), "disabled database is always valid")

	cfg := DatabaseConfig{URL: "postgres://x", MaxConnections: 2, MinConnections: 5}
	assert.Error(t, cfg.Validate())

	cfg.MinConnections = 1
	assert.NoError(t, cfg.Validate())
}
