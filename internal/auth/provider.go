package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
	"golang.org/x/oauth2"

	"github.com/flowctl/flowctl/internal/tokenstore"
)

// expiryMargin is how long before the recorded expiry a memoized token is
// considered stale and reacquired (silently, via the cache).
const expiryMargin = 2 * time.Minute

// Challenge is the ephemeral device-code stage shown to the operator. It
// exists only between flow initiation and browser consent.
type Challenge struct {
	UserCode        string
	VerificationURL string
	Message         string
	ExpiresOn       time.Time
}

// AuthenticationError reports that neither the silent nor the interactive flow
// produced a token. Description carries the identity provider's error text
// verbatim when one was given.
type AuthenticationError struct {
	Description string
	Err         error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Description, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Description)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Config identifies the public client application to authenticate as.
type Config struct {
	TenantID string
	ClientID string
	Scopes   []string
}

// identityClient abstracts the identity library's public client so the
// acquisition logic can be tested without network access.
type identityClient interface {
	Accounts() []public.Account
	AcquireTokenSilent(ctx context.Context, scopes []string, account public.Account) (public.AuthResult, error)
	AcquireTokenByDeviceCode(ctx context.Context, scopes []string) (deviceCodeFlow, error)
}

// deviceCodeFlow is a pending device authorization grant: a challenge to show
// the operator and a blocking wait for them to complete (or abandon) consent.
type deviceCodeFlow interface {
	Challenge() Challenge
	Wait(ctx context.Context) (public.AuthResult, error)
}

// Provider acquires delegated access tokens, silent path first with an
// interactive device-code fallback. One Provider is constructed per CLI
// invocation and shared by all API clients; it materializes at most one
// access token for its lifetime.
type Provider struct {
	scopes []string
	notify func(Challenge)
	client func() (identityClient, error)

	mu     sync.Mutex
	result public.AuthResult
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithChallengeHandler sets the callback that displays the device-code
// challenge to the operator. The default writes the provider's message to
// stderr.
func WithChallengeHandler(handler func(Challenge)) ProviderOption {
	return func(p *Provider) {
		p.notify = handler
	}
}

// NewProvider creates a Provider for the given client application, persisting
// the identity library's token cache through store. No I/O happens until the
// first Acquire call; the underlying client is built once via sync.OnceValues.
func NewProvider(cfg Config, store tokenstore.Store, opts ...ProviderOption) (*Provider, error) {
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("missing tenant ID")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("missing client ID")
	}
	if len(cfg.Scopes) == 0 {
		return nil, fmt.Errorf("missing scopes")
	}
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}

	p := &Provider{
		scopes: cfg.Scopes,
		notify: func(c Challenge) {
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, c.Message)
			fmt.Fprintln(os.Stderr)
		},
	}
	p.client = sync.OnceValues(func() (identityClient, error) {
		return newMSALClient(cfg, store)
	})

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Acquire returns a valid access token, running the silent flow first and the
// device-code flow as fallback. The result is memoized: a second call within
// the same process returns the cached token without re-invoking either flow
// while it remains valid.
func (p *Provider) Acquire(ctx context.Context) (public.AuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.result.AccessToken != "" && time.Until(p.result.ExpiresOn) > expiryMargin {
		return p.result, nil
	}

	client, err := p.client()
	if err != nil {
		return public.AuthResult{}, fmt.Errorf("creating identity client: %w", err)
	}

	if accounts := client.Accounts(); len(accounts) > 0 {
		// Always the first enumerated account. Multiple cached accounts are
		// not disambiguated; the cache enumeration order decides.
		account := accounts[0]
		result, err := client.AcquireTokenSilent(ctx, p.scopes, account)
		if err == nil {
			slog.DebugContext(ctx, "acquired token silently",
				"username", account.PreferredUsername, "cached_accounts", len(accounts))
			p.result = result
			return result, nil
		}
		// Silent failure of any kind (expired refresh token, network error)
		// falls through to the interactive flow; nothing is retried here.
		slog.DebugContext(ctx, "silent acquisition failed, falling back to device code", "error", err)
	}

	result, err := p.deviceCodeFlow(ctx, client)
	if err != nil {
		return public.AuthResult{}, err
	}

	p.result = result
	return result, nil
}

func (p *Provider) deviceCodeFlow(ctx context.Context, client identityClient) (public.AuthResult, error) {
	flow, err := client.AcquireTokenByDeviceCode(ctx, p.scopes)
	if err != nil {
		return public.AuthResult{}, &AuthenticationError{
			Description: "failed to initiate device flow",
			Err:         err,
		}
	}

	challenge := flow.Challenge()
	if challenge.UserCode == "" {
		description := challenge.Message
		if description == "" {
			description = "device flow response carried no user code"
		}
		return public.AuthResult{}, &AuthenticationError{Description: description}
	}

	p.notify(challenge)

	// Blocks until the operator completes browser consent, the flow expires
	// per the provider's timeout, or ctx is cancelled.
	result, err := flow.Wait(ctx)
	if err != nil {
		return public.AuthResult{}, &AuthenticationError{
			Description: "device flow did not complete",
			Err:         err,
		}
	}

	return result, nil
}

// TokenSource adapts the Provider to oauth2.TokenSource, binding the given
// context for use by oauth2.Transport (whose Token method takes none).
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &providerTokenSource{ctx: ctx, provider: p}
}

type providerTokenSource struct {
	ctx      context.Context
	provider *Provider
}

// Compile-time check to ensure providerTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*providerTokenSource)(nil)

func (s *providerTokenSource) Token() (*oauth2.Token, error) {
	result, err := s.provider.Acquire(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		Expiry:      result.ExpiresOn,
	}, nil
}
