package auth

import (
	"context"
	"fmt"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"

	"github.com/flowctl/flowctl/internal/tokenstore"
)

const authorityHost = "https://login.microsoftonline.com/"

// msalClient adapts the MSAL public client to the identityClient interface.
type msalClient struct {
	client public.Client
}

// Compile-time check to ensure msalClient implements identityClient
var _ identityClient = (*msalClient)(nil)

func newMSALClient(cfg Config, store tokenstore.Store) (identityClient, error) {
	client, err := public.New(cfg.ClientID,
		public.WithAuthority(authorityHost+cfg.TenantID),
		public.WithCache(NewCacheAccessor(store)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating public client: %w", err)
	}
	return &msalClient{client: client}, nil
}

func (m *msalClient) Accounts() []public.Account {
	return m.client.Accounts()
}

func (m *msalClient) AcquireTokenSilent(ctx context.Context, scopes []string, account public.Account) (public.AuthResult, error) {
	return m.client.AcquireTokenSilent(ctx, scopes, public.WithSilentAccount(account))
}

func (m *msalClient) AcquireTokenByDeviceCode(ctx context.Context, scopes []string) (deviceCodeFlow, error) {
	dc, err := m.client.AcquireTokenByDeviceCode(ctx, scopes)
	if err != nil {
		return nil, err
	}
	return &msalDeviceCode{dc: dc}, nil
}

// msalDeviceCode wraps the library's pending device code flow.
type msalDeviceCode struct {
	dc public.DeviceCode
}

func (d *msalDeviceCode) Challenge() Challenge {
	return Challenge{
		UserCode:        d.dc.Result.UserCode,
		VerificationURL: d.dc.Result.VerificationURL,
		Message:         d.dc.Result.Message,
		ExpiresOn:       d.dc.Result.ExpiresOn,
	}
}

func (d *msalDeviceCode) Wait(ctx context.Context) (public.AuthResult, error) {
	return d.dc.AuthenticationResult(ctx)
}
