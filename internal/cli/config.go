package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// ConfigCommand returns a command for configuration operations
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Configuration operations",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Validate configuration",
				Action: configValidateAction,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration as YAML",
				Action: configShowAction,
			},
		},
	}
}

func configValidateAction(ctx *cli.Context) error {
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	cfg.LogConfig(log)
	log.Info("Configuration validation passed")
	_, _ = fmt.Fprintln(ctx.App.Writer, "Configuration is valid")
	return nil
}

func configShowAction(ctx *cli.Context) error {
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	// Credentials never leave the process.
	cfg.Storage.GitAuthPassword = redact(cfg.Storage.GitAuthPassword)
	cfg.Storage.GitSSHKeyPassword = redact(cfg.Storage.GitSSHKeyPassword)
	cfg.Database.URL = redact(cfg.Database.URL)

	out, err := yaml.Marshal(cfg)
	if err != nil {
		log.Error("Failed to encode configuration", logger.ErrorField(err))
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = ctx.App.Writer.Write(out)
	return err
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
