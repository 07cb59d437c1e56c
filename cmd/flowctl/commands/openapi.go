package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/flowctl/flowctl/internal/openapispec"
)

func openapiCommand() *cli.Command {
	return &cli.Command{
		Name:  "openapi",
		Usage: "Work with connector API definitions",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Validate an OpenAPI definition (JSON or YAML)",
				ArgsUsage: "<file>",
				Action:    openapiValidateAction,
			},
		},
	}
}

func openapiValidateAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "file")
	if err != nil {
		return err
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return &usageError{err: fmt.Errorf("reading definition: %w", err)}
	}

	info, err := openapispec.Validate(data)
	if err != nil {
		return err
	}

	application.Printer.Success("%s is a valid %s document (%d operations)",
		args[0], info.Version, info.Operations)
	return application.Printer.Value(map[string]any{
		"title":      info.Title,
		"version":    info.Version,
		"operations": info.Operations,
	})
}
