// Package auth acquires delegated OAuth2 access tokens for the Power Platform
// APIs using a public client application.
//
// Acquisition is silent-first: if the persisted token cache knows at least one
// account, a cached refresh credential is exchanged for a fresh access token
// without user interaction. Otherwise the provider falls back to the OAuth2
// device authorization grant, displaying a user code and verification URL and
// blocking until the operator completes browser consent or the flow expires.
//
// The provider materializes at most one access token per process and implements
// golang.org/x/oauth2.TokenSource so HTTP clients consume it through
// oauth2.Transport. Durable refresh material lives only in the token cache
// blob, persisted through a tokenstore.Store whenever it changes.
package auth
