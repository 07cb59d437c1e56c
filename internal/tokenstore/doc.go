// Package tokenstore provides persistent storage abstractions for authentication state.
//
// Supports three storage backends with different security and deployment tradeoffs:
//   - File: Local filesystem storage with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Env: Read-only environment variable access (requires external secret management)
//
// The delegated OAuth flow persists an opaque token-cache blob between CLI
// invocations and therefore requires writable storage (file or keyring). Static
// bearer-token authentication can use any backend including read-only env storage.
package tokenstore
