package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/flowctl/flowctl/internal/tokenstore"
)

// StaticTokenSource serves a pre-issued bearer token from a store, bypassing
// OAuth entirely. Useful with read-only env storage when an external system
// manages token issuance.
type StaticTokenSource struct {
	store tokenstore.Store
}

// Compile-time check to ensure StaticTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*StaticTokenSource)(nil)

// NewStaticTokenSource creates a StaticTokenSource backed by store.
func NewStaticTokenSource(store tokenstore.Store) (*StaticTokenSource, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	return &StaticTokenSource{store: store}, nil
}

// Token returns the stored bearer token as-is. Static tokens carry no known
// expiry; the zero Expiry makes the transport treat them as never expiring.
func (s *StaticTokenSource) Token() (*oauth2.Token, error) {
	data, err := s.store.Read(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading static token: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil, fmt.Errorf("static token is empty")
	}

	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
