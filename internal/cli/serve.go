package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/brainoverflow/internal/server"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// ServeCommand runs the bridge host with its HTTP, gRPC and metrics listeners.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the bridge host",
		Action:  serveAction,
	}
}

func serveAction(ctx *cli.Context) error {
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	cfg.LogConfig(log)

	s, err := server.New(ctx.Context, cfg, log)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField(err))
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := s.Run(ctx.Context); err != nil {
		log.Error("Server exited with error", logger.ErrorField(err))
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("Server exited gracefully")
	return nil
}
