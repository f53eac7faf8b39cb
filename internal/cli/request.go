package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/brainoverflow/internal/bridge"
	"github.com/lewisedginton/brainoverflow/internal/server"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// RequestCommand invokes one command in-process and prints its response.
// The request is the first argument, or stdin when absent or "-".
func RequestCommand() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Aliases:   []string{"r"},
		Usage:     "Send one request through the command table",
		ArgsUsage: "[request|-]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "command",
				Value: bridge.CommandDotnetRequest,
				Usage: "Command table entry to invoke",
			},
		},
		Action: requestAction,
	}
}

func requestAction(ctx *cli.Context) error {
	request, err := readRequest(ctx)
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	// One-shot invocations never poll the store.
	cfg.Observer.Enabled = false

	s, err := server.New(ctx.Context, cfg, log)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField(err))
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer s.Close()

	response, err := s.Invoke(ctx.Context, ctx.String("command"), request)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(ctx.App.Writer, response)
	return err
}

func readRequest(ctx *cli.Context) (string, error) {
	if arg := ctx.Args().First(); arg != "" && arg != "-" {
		return arg, nil
	}

	in := ctx.App.Reader
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read request from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
