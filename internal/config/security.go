package config

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" yaml:"cors_allowed_origins" default:"tauri://localhost,http://localhost:1420,http://localhost:8080"`
	// PathPrefix is stripped from incoming HTTP paths when served behind a proxy.
	PathPrefix string `env:"HTTP_PATH_PREFIX" yaml:"path_prefix"`
}
