// Package commands implements the flowctl command tree.
package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/flowctl/flowctl/internal/app"
	"github.com/flowctl/flowctl/internal/dataverse"
	"github.com/flowctl/flowctl/internal/observability"
	"github.com/flowctl/flowctl/internal/powerapi"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "flowctl",
		Usage: "Manage Power Automate flows, connectors and connections",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output format (auto|json|table)",
				Value:   app.DefaultConfigOutput,
			},
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "JSON path applied to the result (gjson syntax)",
			},
			&cli.StringFlag{
				Name:  "power--environment-id",
				Usage: "Power Platform environment ID",
			},
		},
		Commands: []*cli.Command{
			authCommand(),
			flowCommand(),
			connectorCommand(),
			connectionCommand(),
			solutionCommand(),
			userCommand(),
			openapiCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

// setup loads configuration, installs logging and builds the application
// context shared by every leaf command.
func setup(cmd *cli.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, &usageError{err: fmt.Errorf("failed to load config: %w", err)}
	}

	if err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat)); err != nil {
		return nil, &usageError{err: fmt.Errorf("failed to set up observability layer: %w", err)}
	}

	application, err := app.New(cfg, cmd.String("query"))
	if err != nil {
		return nil, &usageError{err: fmt.Errorf("failed to create app: %w", err)}
	}

	return application, nil
}

// powerClient builds the Power Platform client, marking construction failures
// (missing environment, broken credentials) as local problems.
func powerClient(ctx context.Context, application *app.App) (*powerapi.Client, error) {
	client, err := application.Power(ctx)
	if err != nil {
		return nil, &usageError{err: err}
	}
	return client, nil
}

// dataverseClient builds the Dataverse client with the same error marking.
func dataverseClient(ctx context.Context, application *app.App) (*dataverse.Client, error) {
	client, err := application.Dataverse(ctx)
	if err != nil {
		return nil, &usageError{err: err}
	}
	return client, nil
}

// confirm asks the user to approve a destructive action. --yes skips the
// prompt.
func confirm(cmd *cli.Command, prompt string) (bool, error) {
	if cmd.Bool("yes") {
		return true, nil
	}

	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// yesFlag is shared by every destructive command.
func yesFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "skip the confirmation prompt",
	}
}
