package dataverse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
	"golang.org/x/oauth2"
)

const authorityHost = "https://login.microsoftonline.com/"

// expiryMargin forces a refresh shortly before the token actually expires.
const expiryMargin = 2 * time.Minute

// Scope returns the OAuth scope for an organization, e.g.
// "https://org.crm.dynamics.com/.default".
func Scope(orgURL string) string {
	return orgURL + "/.default"
}

// ClientCredentialsSource authenticates as a service principal using a client
// secret. Tokens are memoized until shortly before expiry.
type ClientCredentialsSource struct {
	ctx    context.Context
	scopes []string
	client func() (confidential.Client, error)

	mu    sync.Mutex
	token *oauth2.Token
}

// NewClientCredentialsSource builds a source for the given app registration.
// The client is initialized on first use so construction never touches the
// network.
func NewClientCredentialsSource(ctx context.Context, tenantID, clientID, clientSecret, orgURL string) (*ClientCredentialsSource, error) {
	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("tenant ID, client ID and client secret are all required")
	}

	return &ClientCredentialsSource{
		ctx:    ctx,
		scopes: []string{Scope(orgURL)},
		client: sync.OnceValues(func() (confidential.Client, error) {
			cred, err := confidential.NewCredFromSecret(clientSecret)
			if err != nil {
				return confidential.Client{}, fmt.Errorf("building client credential: %w", err)
			}
			return confidential.New(clientID, cred,
				confidential.WithAuthority(authorityHost+tenantID))
		}),
	}, nil
}

// Token implements oauth2.TokenSource.
func (s *ClientCredentialsSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && time.Until(s.token.Expiry) > expiryMargin {
		return s.token, nil
	}

	client, err := s.client()
	if err != nil {
		return nil, err
	}

	result, err := client.AcquireTokenByCredential(s.ctx, s.scopes)
	if err != nil {
		return nil, fmt.Errorf("acquiring service principal token: %w", err)
	}

	s.token = &oauth2.Token{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		Expiry:      result.ExpiresOn,
	}
	return s.token, nil
}

// UsernamePasswordSource authenticates with resource owner password
// credentials. This grant only works for accounts without MFA and exists as a
// fallback where no app registration with a secret is available.
type UsernamePasswordSource struct {
	ctx      context.Context
	scopes   []string
	username string
	password string
	client   func() (public.Client, error)

	mu    sync.Mutex
	token *oauth2.Token
}

// NewUsernamePasswordSource builds a source for the given user account.
func NewUsernamePasswordSource(ctx context.Context, tenantID, clientID, username, password, orgURL string) (*UsernamePasswordSource, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are both required")
	}

	return &UsernamePasswordSource{
		ctx:      ctx,
		scopes:   []string{Scope(orgURL)},
		username: username,
		password: password,
		client: sync.OnceValues(func() (public.Client, error) {
			return public.New(clientID, public.WithAuthority(authorityHost+tenantID))
		}),
	}, nil
}

// Token implements oauth2.TokenSource.
func (s *UsernamePasswordSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && time.Until(s.token.Expiry) > expiryMargin {
		return s.token, nil
	}

	client, err := s.client()
	if err != nil {
		return nil, err
	}

	result, err := client.AcquireTokenByUsernamePassword(s.ctx, s.scopes, s.username, s.password)
	if err != nil {
		return nil, fmt.Errorf("acquiring user token: %w", err)
	}

	s.token = &oauth2.Token{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		Expiry:      result.ExpiresOn,
	}
	return s.token, nil
}

var (
	_ oauth2.TokenSource = (*ClientCredentialsSource)(nil)
	_ oauth2.TokenSource = (*UsernamePasswordSource)(nil)
)
