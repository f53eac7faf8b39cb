// Package httpmiddleware assembles the chi middleware stack used by the HTTP transport.
package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// Config selects which middleware ApplyToRouter installs.
type Config struct {
	Logger      logger.Logger
	StripPrefix string
	CORS        *CORSConfig
	Security    *secure.Options
	Timeout     time.Duration
	// Extra runs after logging and recovery, e.g. metrics.
	Extra []func(http.Handler) http.Handler

	EnableCorrelationID bool
	EnableLogging       bool // requires Logger
	EnableRecovery      bool
	EnableCORS          bool
	EnableSecurity      bool
	EnableHeartbeat     bool
	EnableRealIP        bool
	EnableTimeout       bool
	EnableStripPrefix   bool // requires StripPrefix
}

// DefaultConfig returns the production middleware set. Logging stays off
// until a Logger is supplied.
func DefaultConfig() Config {
	corsConfig := DefaultCORSConfig()
	return Config{
		CORS: &corsConfig,
		Security: &secure.Options{
			FrameDeny:          true,
			ContentTypeNosniff: true,
			BrowserXssFilter:   true,
		},
		Timeout: 60 * time.Second,

		EnableCorrelationID: true,
		EnableRecovery:      true,
		EnableCORS:          true,
		EnableSecurity:      true,
		EnableHeartbeat:     true,
		EnableRealIP:        true,
		EnableTimeout:       true,
	}
}

// ApplyToRouter installs the configured middleware, outermost first:
// correlation id, security headers, real IP, logging, recovery, extras,
// prefix stripping, CORS, heartbeat.
//
// The request timeout is not installed here because long-lived routes such
// as websockets must opt out; use TimeoutGroup for the routes that want it.
func ApplyToRouter(router chi.Router, config Config) {
	if config.EnableCorrelationID {
		router.Use(CorrelationID())
	}

	if config.EnableSecurity {
		router.Use(Security(config.Security))
	}

	if config.EnableRealIP {
		router.Use(middleware.RealIP)
	}

	if config.EnableLogging && config.Logger != nil {
		router.Use(logger.HTTPMiddleware(config.Logger))
	}

	if config.EnableRecovery {
		router.Use(middleware.Recoverer)
	}

	for _, mw := range config.Extra {
		router.Use(mw)
	}

	if config.EnableStripPrefix && config.StripPrefix != "" {
		router.Use(StripPrefix(config.StripPrefix))
	}

	if config.EnableCORS && config.CORS != nil {
		router.Use(CORS(*config.CORS))
	}

	if config.EnableHeartbeat {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// TimeoutGroup returns a route group carrying the configured request timeout.
func TimeoutGroup(router chi.Router, config Config, fn func(r chi.Router)) {
	router.Group(func(r chi.Router) {
		if config.EnableTimeout && config.Timeout > 0 {
			r.Use(middleware.Timeout(config.Timeout))
		}
		fn(r)
	})
}

// WithLogger applies DefaultConfig with logging enabled.
func WithLogger(router chi.Router, log logger.Logger) {
	config := DefaultConfig()
	config.Logger = log
	config.EnableLogging = true
	ApplyToRouter(router, config)
}
