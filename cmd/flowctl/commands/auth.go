package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/flowctl/flowctl/internal/tokenstore"
)

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in and inspect the cached identity",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Sign in with the device-code flow",
				Action: authLoginAction,
			},
			{
				Name:   "whoami",
				Usage:  "Show the signed-in account",
				Action: authWhoamiAction,
			},
			{
				Name:   "logout",
				Usage:  "Remove the persisted token cache",
				Action: authLogoutAction,
			},
		},
	}
}

func authLoginAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	provider, err := application.Provider()
	if err != nil {
		return err
	}

	result, err := provider.Acquire(ctx)
	if err != nil {
		return err
	}

	application.Printer.Success("signed in as %s", result.Account.PreferredUsername)
	return nil
}

func authWhoamiAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	provider, err := application.Provider()
	if err != nil {
		return err
	}

	result, err := provider.Acquire(ctx)
	if err != nil {
		return err
	}

	identity := map[string]any{
		"username":       result.Account.PreferredUsername,
		"token_expires":  result.ExpiresOn.UTC().Format(time.RFC3339),
		"granted_scopes": result.GrantedScopes,
	}

	// With Dataverse configured, also resolve the caller inside the
	// organization.
	if err := application.Config.RequireDataverse(); err == nil {
		client, err := dataverseClient(ctx, application)
		if err != nil {
			return err
		}
		who, err := client.WhoAmI(ctx)
		if err != nil {
			return err
		}
		identity["dataverse"] = who
	}

	return application.Printer.Value(identity)
}

func authLogoutAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	store, err := application.TokenStore()
	if err != nil {
		return err
	}

	remover, ok := store.(interface{ Remove() error })
	if !ok {
		return fmt.Errorf("the configured token storage cannot be cleared")
	}
	if err := remover.Remove(); err != nil {
		return err
	}

	if fileStore, ok := store.(*tokenstore.FileStore); ok {
		application.Printer.Success("signed out, removed %s", fileStore.Path())
		return nil
	}
	application.Printer.Success("signed out")
	return nil
}
