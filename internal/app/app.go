// Package app wires configuration, authentication and API clients together
// for the command layer.
package app

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/flowctl/flowctl/internal/auth"
	"github.com/flowctl/flowctl/internal/dataverse"
	"github.com/flowctl/flowctl/internal/output"
	"github.com/flowctl/flowctl/internal/powerapi"
	"github.com/flowctl/flowctl/internal/tokenstore"
)

// App holds the configured components a command needs. Clients are built on
// first use so commands that never touch an API do not require credentials.
type App struct {
	Config  *Config
	Printer *output.Printer

	store    func() (tokenstore.Store, error)
	provider func() (*auth.Provider, error)

	mu        sync.Mutex
	power     *powerapi.Client
	dataverse *dataverse.Client
}

// New creates an App from validated configuration. The printer's query is
// the optional gjson path applied to JSON output.
func New(cfg *Config, query string) (*App, error) {
	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Printer: output.NewPrinter(format, output.WithQuery(query)),
	}

	a.store = sync.OnceValues(func() (tokenstore.Store, error) {
		return cfg.Auth.NewTokenStore()
	})

	a.provider = sync.OnceValues(func() (*auth.Provider, error) {
		store, err := a.store()
		if err != nil {
			return nil, err
		}
		return auth.NewProvider(auth.Config{
			TenantID: cfg.Power.TenantID,
			ClientID: cfg.Power.ClientID,
			Scopes:   []string{cfg.Power.Scope},
		}, store, auth.WithChallengeHandler(a.showChallenge))
	})

	return a, nil
}

// TokenStore returns the configured token store.
func (a *App) TokenStore() (tokenstore.Store, error) {
	return a.store()
}

// Provider returns the delegated token provider.
func (a *App) Provider() (*auth.Provider, error) {
	return a.provider()
}

// TokenSource returns the token source matching the configured auth method.
func (a *App) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	switch a.Config.Auth.Method {
	case AuthenticationMethodStatic:
		store, err := a.store()
		if err != nil {
			return nil, err
		}
		return auth.NewStaticTokenSource(store)
	default:
		provider, err := a.provider()
		if err != nil {
			return nil, err
		}
		return provider.TokenSource(ctx), nil
	}
}

// Power returns the Power Platform API client, building it on first use.
func (a *App) Power(ctx context.Context) (*powerapi.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.power != nil {
		return a.power, nil
	}

	if err := a.Config.RequireEnvironment(); err != nil {
		return nil, err
	}

	source, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	var opts []powerapi.Option
	if a.Config.Power.FlowBaseURL != "" || a.Config.Power.AppsBaseURL != "" {
		opts = append(opts, powerapi.WithBaseURLs(a.Config.Power.FlowBaseURL, a.Config.Power.AppsBaseURL))
	}

	client, err := powerapi.New(a.Config.Power.EnvironmentID, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("building Power Platform client: %w", err)
	}
	a.power = client
	return client, nil
}

// Dataverse returns the Dataverse client, building it on first use. Service
// principal credentials are preferred; username/password is the fallback.
func (a *App) Dataverse(ctx context.Context) (*dataverse.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dataverse != nil {
		return a.dataverse, nil
	}

	if err := a.Config.RequireDataverse(); err != nil {
		return nil, err
	}

	cfg := a.Config.Dataverse
	var source oauth2.TokenSource
	var err error
	if cfg.HasServicePrincipal() {
		source, err = dataverse.NewClientCredentialsSource(ctx,
			cfg.TenantID, cfg.ClientID, cfg.ClientSecret, cfg.OrgURL)
	} else {
		source, err = dataverse.NewUsernamePasswordSource(ctx,
			cfg.TenantID, a.Config.Power.ClientID, cfg.Username, cfg.Password, cfg.OrgURL)
	}
	if err != nil {
		return nil, err
	}

	client, err := dataverse.New(cfg.OrgURL, source)
	if err != nil {
		return nil, fmt.Errorf("building Dataverse client: %w", err)
	}
	a.dataverse = client
	return client, nil
}

// showChallenge displays device-code sign-in instructions on stderr.
func (a *App) showChallenge(challenge auth.Challenge) {
	if challenge.Message != "" {
		a.Printer.Info("%s", challenge.Message)
		return
	}
	a.Printer.Info("To sign in, visit %s and enter the code %s.",
		challenge.VerificationURL, challenge.UserCode)
}
