package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/flowctl/flowctl/internal/dataverse"
)

func solutionCommand() *cli.Command {
	return &cli.Command{
		Name:  "solution",
		Usage: "Inspect Dataverse solutions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List solutions in the organization",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "filter by unique name"},
				},
				Action: solutionListAction,
			},
			{
				Name:      "get",
				Usage:     "Show one solution",
				ArgsUsage: "<solution-id-or-unique-name>",
				Action:    solutionGetAction,
			},
			{
				Name:      "components",
				Usage:     "List a solution's components",
				ArgsUsage: "<solution-id-or-unique-name>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "type", Usage: "only components of this type code"},
				},
				Action: solutionComponentsAction,
			},
			{
				Name:      "flows",
				Usage:     "List the cloud flows inside a solution",
				ArgsUsage: "<solution-id-or-unique-name>",
				Action:    solutionFlowsAction,
			},
		},
	}
}

// resolveSolution accepts either a solution GUID or its unique name.
func resolveSolution(ctx context.Context, client *dataverse.Client, ref string) (string, error) {
	if isGUID(ref) {
		return ref, nil
	}
	return client.ResolveSolutionID(ctx, ref)
}

func isGUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
			if !isHex {
				return false
			}
		}
	}
	return true
}

func solutionListAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := dataverseClient(ctx, application)
	if err != nil {
		return err
	}

	solutions, err := client.ListSolutions(ctx, cmd.String("name"))
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(solutions))
	for _, solution := range solutions {
		rows = append(rows, []string{
			solution.UniqueName,
			solution.FriendlyName,
			solution.Version,
			strconv.FormatBool(solution.IsManaged),
		})
	}
	return application.Printer.Table(
		[]string{"Unique Name", "Friendly Name", "Version", "Managed"}, rows, solutions)
}

func solutionGetAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "solution")
	if err != nil {
		return err
	}
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := dataverseClient(ctx, application)
	if err != nil {
		return err
	}

	solutionID, err := resolveSolution(ctx, client, args[0])
	if err != nil {
		return err
	}
	solution, err := client.GetSolution(ctx, solutionID)
	if err != nil {
		return err
	}
	return application.Printer.JSON(solution.Raw)
}

func solutionComponentsAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "solution")
	if err != nil {
		return err
	}
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := dataverseClient(ctx, application)
	if err != nil {
		return err
	}

	solutionID, err := resolveSolution(ctx, client, args[0])
	if err != nil {
		return err
	}
	components, err := client.ListSolutionComponents(ctx, solutionID, int(cmd.Int("type")))
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(components))
	for _, component := range components {
		rows = append(rows, []string{
			component.ObjectID,
			component.TypeName(),
			fmt.Sprintf("%d", component.ComponentType),
		})
	}
	return application.Printer.Table(
		[]string{"Object ID", "Type", "Code"}, rows, components)
}

func solutionFlowsAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "solution")
	if err != nil {
		return err
	}
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := dataverseClient(ctx, application)
	if err != nil {
		return err
	}

	solutionID, err := resolveSolution(ctx, client, args[0])
	if err != nil {
		return err
	}
	flows, err := client.ListSolutionFlows(ctx, solutionID)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(flows))
	for _, flow := range flows {
		rows = append(rows, []string{flow.ID, flow.Name, flow.State()})
	}
	return application.Printer.Table([]string{"ID", "Name", "State"}, rows, flows)
}
