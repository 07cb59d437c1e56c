package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/flowctl/flowctl/internal/openapispec"
	"github.com/flowctl/flowctl/internal/powerapi"
)

func connectorCommand() *cli.Command {
	return &cli.Command{
		Name:  "connector",
		Usage: "Manage connectors",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List connectors in the environment",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "custom", Usage: "only custom connectors"},
					&cli.BoolFlag{Name: "managed", Usage: "only managed connectors"},
					&cli.StringFlag{Name: "filter", Usage: "match display name or publisher"},
				},
				Action: connectorListAction,
			},
			{
				Name:      "get",
				Usage:     "Show one connector",
				ArgsUsage: "<connector-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "operations", Usage: "include the full API definition"},
					&cli.BoolFlag{Name: "permissions", Usage: "show permission assignments instead"},
				},
				Action: connectorGetAction,
			},
			{
				Name:  "create",
				Usage: "Create a custom connector from a definition file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "connector definition (JSON)", Required: true},
					&cli.BoolFlag{Name: "skip-validation", Usage: "do not validate the embedded OpenAPI definition"},
				},
				Action: connectorCreateAction,
			},
			{
				Name:      "update",
				Usage:     "Update a custom connector from a definition file",
				ArgsUsage: "<connector-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "connector definition (JSON)", Required: true},
					&cli.StringFlag{Name: "oauth-secret", Usage: "client secret for OAuth-backed connectors"},
				},
				Action: connectorUpdateAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a custom connector",
				ArgsUsage: "<connector-id>",
				Flags:     []cli.Flag{yesFlag()},
				Action:    connectorDeleteAction,
			},
			{
				Name:      "export",
				Usage:     "Write a connector's OpenAPI definition to a file",
				ArgsUsage: "<connector-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "destination path", Required: true},
				},
				Action: connectorExportAction,
			},
		},
	}
}

func connectorListAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := powerClient(ctx, application)
	if err != nil {
		return err
	}

	connectors, err := client.ListConnectors(ctx, powerapi.ConnectorListOptions{
		CustomOnly:  cmd.Bool("custom"),
		ManagedOnly: cmd.Bool("managed"),
		FilterText:  cmd.String("filter"),
	})
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(connectors))
	for _, connector := range connectors {
		kind := "managed"
		if connector.IsCustom() {
			kind = "custom"
		}
		rows = append(rows, []string{
			connector.Name,
			connector.Properties.DisplayName,
			connector.Properties.Publisher,
			kind,
		})
	}
	return application.Printer.Table(
		[]string{"ID", "Display Name", "Publisher", "Kind"}, rows, connectors)
}

func connectorGetAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "connector-id")
	if err != nil {
		return err
	}
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := powerClient(ctx, application)
	if err != nil {
		return err
	}

	if cmd.Bool("permissions") {
		permissions, err := client.GetConnectorPermissions(ctx, args[0])
		if err != nil {
			return err
		}
		return application.Printer.JSON(permissions)
	}

	connector, err := client.GetConnector(ctx, args[0], cmd.Bool("operations"))
	if err != nil {
		return err
	}
	return application.Printer.JSON(connector.Raw)
}

func connectorCreateAction(ctx context.Context, cmd *cli.Command) error {
	definition, err := os.ReadFile(cmd.String("file"))
	if err != nil {
		return &usageError{err: fmt.Errorf("reading definition: %w", err)}
	}
	if !json.Valid(definition) {
		return &usageError{err: fmt.Errorf("definition file is not valid JSON")}
	}

	if !cmd.Bool("skip-validation") {
		if err := validateEmbeddedDefinition(definition); err != nil {
			return err
		}
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := powerClient(ctx, application)
	if err != nil {
		return err
	}

	connector, err := client.CreateConnector(ctx, definition)
	if err != nil {
		return err
	}
	application.Printer.Success("created connector %s (%s)",
		connector.Properties.DisplayName, connector.Name)
	return application.Printer.JSON(connector.Raw)
}

// validateEmbeddedDefinition checks the OpenAPI document inside a connector
// definition when one is present inline.
func validateEmbeddedDefinition(definition []byte) error {
	var doc struct {
		Properties struct {
			APIDefinitions struct {
				Swagger json.RawMessage `json:"swagger"`
			} `json:"apiDefinitions"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(definition, &doc); err != nil {
		return fmt.Errorf("parsing definition: %w", err)
	}
	if len(doc.Properties.APIDefinitions.Swagger) == 0 {
		return nil
	}
	if _, err := openapispec.Validate(doc.Properties.APIDefinitions.Swagger); err != nil {
		return fmt.Errorf("embedded API definition: %w", err)
	}
	return nil
}

func connectorUpdateAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "connector-id")
	if err != nil {
		return err
	}

	data, err := os.ReadFile(cmd.String("file"))
	if err != nil {
		return &usageError{err: fmt.Errorf("reading definition: %w", err)}
	}
	var definition map[string]any
	if err := json.Unmarshal(data, &definition); err != nil {
		return &usageError{err: fmt.Errorf("definition file is not valid JSON: %w", err)}
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := powerClient(ctx, application)
	if err != nil {
		return err
	}

	if err := requireCustomConnector(ctx, client, args[0]); err != nil {
		return err
	}

	connector, err := client.UpdateConnector(ctx, args[0], definition, cmd.String("oauth-secret"))
	if err != nil {
		return err
	}
	application.Printer.Success("updated connector %s", connector.Name)
	return application.Printer.JSON(connector.Raw)
}

func connectorDeleteAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "connector-id")
	if err != nil {
		return err
	}

	ok, err := confirm(cmd, fmt.Sprintf("Delete connector %s?", args[0]))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := powerClient(ctx, application)
	if err != nil {
		return err
	}

	if err := requireCustomConnector(ctx, client, args[0]); err != nil {
		return err
	}

	if err := client.DeleteConnector(ctx, args[0]); err != nil {
		return err
	}
	application.Printer.Success("deleted connector %s", args[0])
	return nil
}

// requireCustomConnector blocks update and delete on Microsoft-managed
// connectors before any write reaches the service.
func requireCustomConnector(ctx context.Context, client *powerapi.Client, connectorID string) error {
	connector, err := client.GetConnector(ctx, connectorID, false)
	if err != nil {
		return err
	}
	if !connector.IsCustom() {
		return fmt.Errorf("connector %s is managed by Microsoft and cannot be modified", connectorID)
	}
	return nil
}

func connectorExportAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "connector-id")
	if err != nil {
		return err
	}
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := powerClient(ctx, application)
	if err != nil {
		return err
	}

	connector, err := client.GetConnector(ctx, args[0], true)
	if err != nil {
		return err
	}
	if connector.Properties.APIDefinitions == nil || len(connector.Properties.APIDefinitions.Swagger) == 0 {
		return fmt.Errorf("connector %s carries no API definition", args[0])
	}

	var pretty []byte
	pretty, err = json.MarshalIndent(json.RawMessage(connector.Properties.APIDefinitions.Swagger), "", "  ")
	if err != nil {
		return fmt.Errorf("formatting definition: %w", err)
	}

	if err := os.WriteFile(cmd.String("file"), append(pretty, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing definition: %w", err)
	}
	application.Printer.Success("exported %s to %s", args[0], cmd.String("file"))
	return nil
}
