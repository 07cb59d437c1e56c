package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

func connectionCommand() *cli.Command {
	return &cli.Command{
		Name:  "connection",
		Usage: "Manage connections",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List connections in the environment",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "connector", Usage: "only connections of this connector"},
				},
				Action: connectionListAction,
			},
			{
				Name:      "get",
				Usage:     "Show one connection",
				ArgsUsage: "<connection-id>",
				Action:    connectionGetAction,
			},
			{
				Name:      "create",
				Usage:     "Create a connection shell for a connector",
				ArgsUsage: "<connector-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "display name", Required: true},
				},
				Action: connectionCreateAction,
			},
			{
				Name:      "update",
				Usage:     "Rename a connection",
				ArgsUsage: "<connection-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "new display name", Required: true},
				},
				Action: connectionUpdateAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a connection",
				ArgsUsage: "<connection-id>",
				Flags:     []cli.Flag{yesFlag()},
				Action:    connectionDeleteAction,
			},
			{
				Name:      "test",
				Usage:     "Test a connection's credentials",
				ArgsUsage: "<connection-id>",
				Action:    connectionTestAction,
			},
			{
				Name:      "refresh",
				Usage:     "Refresh a connection's tokens",
				ArgsUsage: "<connection-id>",
				Action:    connectionRefreshAction,
			},
			{
				Name:      "recreate",
				Usage:     "Delete a connection and create a fresh one for the same connector",
				ArgsUsage: "<connection-id>",
				Flags:     []cli.Flag{yesFlag()},
				Action:    connectionRecreateAction,
			},
		},
	}
}

func connectionListAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := powerClient(ctx, application)
	if err != nil {
		return err
	}

	connections, err := client.ListConnections(ctx, cmd.String("connector"))
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(connections))
	for _, connection := range connections {
		rows = append(rows, []string{
			connection.Name,
			connection.Properties.DisplayName,
			connection.Properties.APIID,
			connection.Status(),
		})
	}
	return application.Printer.Table(
		[]string{"ID", "Display Name", "Connector", "Status"}, rows, connections)
}

func connectionGetAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "connection-id")
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

	connection, err := client.GetConnection(ctx, args[0])
	if err != nil {
		return err
	}
	return application.Printer.JSON(connection.Raw)
}

func connectionCreateAction(ctx context.Context, cmd *cli.Command) error {
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

	connection, err := client.CreateConnection(ctx, args[0], cmd.String("name"))
	if err != nil {
		return err
	}

	application.Printer.Success("created connection %s", connection.Name)
	application.Printer.Warning("the connection has no credentials yet; authorize it in the maker portal")
	return application.Printer.JSON(connection.Raw)
}

func connectionUpdateAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "connection-id")
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

	connection, err := client.UpdateConnection(ctx, args[0], map[string]any{
		"displayName": cmd.String("name"),
	})
	if err != nil {
		return err
	}
	application.Printer.Success("renamed connection %s", args[0])
	return application.Printer.JSON(connection.Raw)
}

func connectionDeleteAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "connection-id")
	if err != nil {
		return err
	}

	ok, err := confirm(cmd, fmt.Sprintf("Delete connection %s?", args[0]))
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

	if err := client.DeleteConnection(ctx, args[0]); err != nil {
		return err
	}
	application.Printer.Success("deleted connection %s", args[0])
	return nil
}

func connectionTestAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "connection-id")
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

	result, err := client.TestConnection(ctx, args[0])
	if err != nil {
		return err
	}

	if result.OK() {
		application.Printer.Success("connection %s is healthy", args[0])
		return nil
	}

	application.Printer.Error("connection %s failed its test", args[0])
	return application.Printer.Value(result.Statuses)
}

func connectionRefreshAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "connection-id")
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

	if _, err := client.RefreshConnection(ctx, args[0]); err != nil {
		return err
	}
	application.Printer.Success("refreshed connection %s", args[0])
	return nil
}

// connectionRecreateAction replaces a broken connection: the old one is
// looked up for its connector and display name, deleted, and a fresh shell
// is created. The new connection still needs to be authorized.
func connectionRecreateAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "connection-id")
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

	existing, err := client.GetConnection(ctx, args[0])
	if err != nil {
		return err
	}
	connectorID := connectorIDFromAPIID(existing.Properties.APIID)
	if connectorID == "" {
		return fmt.Errorf("connection %s does not reference a connector", args[0])
	}

	ok, err := confirm(cmd, fmt.Sprintf("Recreate connection %s (%s)?",
		args[0], existing.Properties.DisplayName))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := client.DeleteConnection(ctx, args[0]); err != nil {
		return err
	}

	replacement, err := client.CreateConnection(ctx, connectorID, existing.Properties.DisplayName)
	if err != nil {
		return err
	}

	application.Printer.Success("recreated connection as %s", replacement.Name)
	application.Printer.Warning("the new connection has no credentials yet; authorize it in the maker portal")
	return application.Printer.JSON(replacement.Raw)
}

// connectorIDFromAPIID extracts the connector name from an apiId resource
// path like "/providers/Microsoft.PowerApps/apis/shared_office365".
func connectorIDFromAPIID(apiID string) string {
	if apiID == "" {
		return ""
	}
	parts := strings.Split(strings.Trim(apiID, "/"), "/")
	for i, part := range parts {
		if part == "apis" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
