package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/flowctl/flowctl/internal/powerapi"
)

func flowCommand() *cli.Command {
	return &cli.Command{
		Name:  "flow",
		Usage: "Manage cloud flows",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List flows in the environment",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top", Usage: "maximum number of flows", Value: 50},
				},
				Action: flowListAction,
			},
			{
				Name:      "get",
				Usage:     "Show one flow",
				ArgsUsage: "<flow-id>",
				Action:    flowGetAction,
			},
			{
				Name:  "create",
				Usage: "Create a flow with a scaffolded trigger",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "display name", Required: true},
					&cli.StringFlag{Name: "trigger", Usage: "trigger type (http|manual)", Value: "http"},
					&cli.StringFlag{Name: "description", Usage: "flow description"},
					&cli.StringFlag{Name: "solution", Usage: "solution ID the flow belongs to"},
				},
				Action: flowCreateAction,
			},
			{
				Name:      "update",
				Usage:     "Update a flow's display name or description",
				ArgsUsage: "<flow-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "new display name"},
					&cli.StringFlag{Name: "description", Usage: "new description"},
				},
				Action: flowUpdateAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a flow",
				ArgsUsage: "<flow-id>",
				Flags:     []cli.Flag{yesFlag()},
				Action:    flowDeleteAction,
			},
			{
				Name:      "start",
				Usage:     "Turn a flow on",
				ArgsUsage: "<flow-id>",
				Action:    flowStateAction(powerapi.FlowStateStarted),
			},
			{
				Name:      "stop",
				Usage:     "Turn a flow off",
				ArgsUsage: "<flow-id>",
				Action:    flowStateAction(powerapi.FlowStateStopped),
			},
			{
				Name:      "runs",
				Usage:     "List a flow's run history",
				ArgsUsage: "<flow-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top", Usage: "maximum number of runs", Value: 20},
					&cli.BoolFlag{Name: "failed", Usage: "only failed runs"},
					&cli.BoolFlag{Name: "succeeded", Usage: "only succeeded runs"},
					&cli.BoolFlag{Name: "running", Usage: "only runs still in progress"},
					&cli.StringFlag{Name: "filter", Usage: "raw OData filter, e.g. \"status eq 'Cancelled'\""},
				},
				Action: flowRunsAction,
			},
			{
				Name:      "run",
				Usage:     "Show one run of a flow",
				ArgsUsage: "<flow-id> <run-id>",
				Action:    flowRunGetAction,
			},
		},
	}
}

// requireArgs checks the positional argument count of a leaf command.
func requireArgs(cmd *cli.Command, names ...string) ([]string, error) {
	args := cmd.Args().Slice()
	if len(args) != len(names) {
		return nil, &usageError{err: fmt.Errorf("expected arguments: %v", names)}
	}
	return args, nil
}

func flowListAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := powerClient(ctx, application)
	if err != nil {
		return err
	}

	flows, err := client.ListFlows(ctx, int(cmd.Int("top")))
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(flows))
	for _, flow := range flows {
		rows = append(rows, []string{
			flow.Name,
			flow.Properties.DisplayName,
			flow.Properties.State,
			humanTime(flow.Properties.LastModifiedTime),
		})
	}
	return application.Printer.Table(
		[]string{"ID", "Display Name", "State", "Modified"}, rows, flows)
}

func flowGetAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "flow-id")
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

	flow, err := client.GetFlow(ctx, args[0])
	if err != nil {
		return err
	}
	return application.Printer.JSON(flow.Raw)
}

func flowCreateAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := powerClient(ctx, application)
	if err != nil {
		return err
	}

	flow, err := client.CreateFlow(ctx, powerapi.CreateFlowParams{
		DisplayName: cmd.String("name"),
		Trigger:     powerapi.TriggerKind(cmd.String("trigger")),
		Description: cmd.String("description"),
		SolutionID:  cmd.String("solution"),
	})
	if err != nil {
		return err
	}

	application.Printer.Success("created flow %s (%s)", flow.Properties.DisplayName, flow.Name)
	return application.Printer.JSON(flow.Raw)
}

func flowUpdateAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "flow-id")
	if err != nil {
		return err
	}

	properties := map[string]any{}
	if cmd.IsSet("name") {
		properties["displayName"] = cmd.String("name")
	}
	if cmd.IsSet("description") {
		properties["description"] = cmd.String("description")
	}
	if len(properties) == 0 {
		return &usageError{err: fmt.Errorf("nothing to update, pass --name or --description")}
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := powerClient(ctx, application)
	if err != nil {
		return err
	}

	if err := client.UpdateFlow(ctx, args[0], properties); err != nil {
		return err
	}
	application.Printer.Success("updated flow %s", args[0])
	return nil
}

func flowDeleteAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "flow-id")
	if err != nil {
		return err
	}

	ok, err := confirm(cmd, fmt.Sprintf("Delete flow %s?", args[0]))
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

	if err := client.DeleteFlow(ctx, args[0]); err != nil {
		return err
	}
	application.Printer.Success("deleted flow %s", args[0])
	return nil
}

func flowStateAction(state string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		args, err := requireArgs(cmd, "flow-id")
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

		if err := client.SetFlowState(ctx, args[0], state); err != nil {
			return err
		}
		application.Printer.Success("flow %s is now %s", args[0], state)
		return nil
	}
}

func flowRunsAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "flow-id")
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

	opts := powerapi.RunsOptions{Top: int(cmd.Int("top"))}
	switch {
	case cmd.String("filter") != "":
		opts.Filter = cmd.String("filter")
	case cmd.Bool("failed"):
		opts.Filter = "status eq 'Failed'"
	case cmd.Bool("succeeded"):
		opts.Filter = "status eq 'Succeeded'"
	case cmd.Bool("running"):
		opts.Filter = "status eq 'Running'"
	}

	runs, nextLink, err := client.ListRuns(ctx, args[0], opts)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.Name,
			run.Properties.Status,
			humanTime(run.Properties.StartTime),
			humanDuration(run.Properties.StartTime, run.Properties.EndTime),
		})
	}
	if err := application.Printer.Table(
		[]string{"Run", "Status", "Started", "Duration"}, rows, runs); err != nil {
		return err
	}

	if nextLink != "" {
		application.Printer.Info(runsMoreHint)
	}
	return nil
}

// runsMoreHint is shown when the service reports another page of run history.
const runsMoreHint = "More runs available; narrow with --failed, --succeeded, --running or --filter, or raise --top."

func flowRunGetAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "flow-id", "run-id")
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

	run, err := client.GetRun(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return application.Printer.JSON(run.Raw)
}

func humanTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func humanDuration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return ""
	}
	return end.Sub(start).Round(time.Second).String()
}
