package commands

import (
	"context"
	"strconv"

	"github.com/urfave/cli/v3"
)

func userCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage Dataverse application users",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List application users",
				Action: userListAction,
			},
			{
				Name:      "get",
				Usage:     "Show one user",
				ArgsUsage: "<user-id>",
				Action:    userGetAction,
			},
			{
				Name:  "create",
				Usage: "Register an Entra application as a Dataverse user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "app-id", Usage: "Entra application (client) ID", Required: true},
					&cli.StringFlag{Name: "role", Usage: "security role to assign, e.g. 'System Administrator'"},
				},
				Action: userCreateAction,
			},
			{
				Name:      "roles",
				Usage:     "List a user's security roles",
				ArgsUsage: "<user-id>",
				Action:    userRolesAction,
			},
			{
				Name:      "assign-role",
				Usage:     "Assign a security role to an existing user",
				ArgsUsage: "<user-id-or-email> <role-name>",
				Action:    userAssignRoleAction,
			},
		},
	}
}

func userListAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := dataverseClient(ctx, application)
	if err != nil {
		return err
	}

	users, err := client.ListApplicationUsers(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(users))
	for _, user := range users {
		rows = append(rows, []string{
			user.ID,
			user.FullName,
			user.ApplicationID,
			strconv.FormatBool(user.IsDisabled),
		})
	}
	return application.Printer.Table(
		[]string{"ID", "Name", "Application ID", "Disabled"}, rows, users)
}

func userGetAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "user-id")
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

	user, err := client.GetUser(ctx, args[0])
	if err != nil {
		return err
	}
	return application.Printer.JSON(user.Raw)
}

// userCreateAction registers an application user and optionally assigns a
// security role. The business unit comes from the caller's WhoAmI response.
func userCreateAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := dataverseClient(ctx, application)
	if err != nil {
		return err
	}

	appID := cmd.String("app-id")
	if existing, err := client.FindUserByAppID(ctx, appID); err == nil {
		application.Printer.Warning("application user for %s already exists (%s)", appID, existing.ID)
		return application.Printer.Value(existing)
	}

	who, err := client.WhoAmI(ctx)
	if err != nil {
		return err
	}

	user, err := client.CreateApplicationUser(ctx, appID, who.BusinessUnitID)
	if err != nil {
		return err
	}
	application.Printer.Success("created application user %s", user.ID)

	if roleName := cmd.String("role"); roleName != "" {
		role, err := client.FindRoleByName(ctx, roleName)
		if err != nil {
			return err
		}
		if err := client.AssignRole(ctx, user.ID, role.ID); err != nil {
			return err
		}
		application.Printer.Success("assigned role %q", role.Name)
	}

	return application.Printer.Value(user)
}

// userAssignRoleAction grants a security role to a user that already exists,
// accepting either the systemuserid or the user's email address.
func userAssignRoleAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "user", "role-name")
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

	userID := args[0]
	if !isGUID(userID) {
		user, err := client.FindUserByEmail(ctx, userID)
		if err != nil {
			return err
		}
		userID = user.ID
	}

	role, err := client.FindRoleByName(ctx, args[1])
	if err != nil {
		return err
	}
	if err := client.AssignRole(ctx, userID, role.ID); err != nil {
		return err
	}

	application.Printer.Success("assigned role %q to user %s", role.Name, userID)
	return nil
}

func userRolesAction(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "user-id")
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

	roles, err := client.ListUserRoles(ctx, args[0])
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(roles))
	for _, role := range roles {
		rows = append(rows, []string{role.ID, role.Name})
	}
	return application.Printer.Table([]string{"ID", "Name"}, rows, roles)
}
