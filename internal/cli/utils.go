package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/brainoverflow/internal/config"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// Metadata keys set by the root command's Before hook.
const (
	MetadataLogger = "logger"
)

// getLogger retrieves the logger from the CLI context metadata
func getLogger(ctx *cli.Context) logger.Logger {
	if ctx.App.Metadata != nil {
		if log, ok := ctx.App.Metadata[MetadataLogger].(logger.Logger); ok {
			return log
		}
	}

	return logger.NewLogger(logger.Config{
		Level:   logger.InfoLevel,
		Format:  "json",
		Service: "brainoverflow",
		Output:  os.Stderr,
	})
}

// loadConfig reads the --config-file (if any) and the environment, and
// returns a logger configured from the result.
func loadConfig(ctx *cli.Context) (*appconfig.AppConfig, logger.Logger, error) {
	log := getLogger(ctx)

	cfg, err := appconfig.Load(ctx.String("config-file"))
	if err != nil {
		log.Error("Failed to load config", logger.ErrorField(err))
		return nil, log, fmt.Errorf("failed to load config: %w", err)
	}

	// An explicit --log-level wins over the configuration.
	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}

	lc := cfg.LoggerConfig()
	lc.Output = ctx.App.ErrWriter
	if lc.Output == nil {
		lc.Output = os.Stderr
	}
	return cfg, logger.NewLogger(lc), nil
}
