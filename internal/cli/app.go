// Package cli defines the brainoverflow command line.
package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// NewApp builds the root command.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "brainoverflow",
		Usage:   "Snippet store and bridge host for the BrainOverflow desktop app",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config-file",
				Value:   "",
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			log := logger.NewLogger(logger.Config{
				Level:   logger.ParseLevel(ctx.String("log-level")),
				Format:  "json",
				Service: "brainoverflow",
				Output:  ctx.App.ErrWriter,
			})

			ctx.App.Metadata = map[string]interface{}{
				MetadataLogger: log,
			}
			return nil
		},
		Commands: []*cli.Command{
			ServeCommand(),
			RequestCommand(),
			ConfigCommand(),
		},
	}
}
