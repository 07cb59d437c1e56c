package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/flowctl/flowctl/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the different storage types supported for the
// token cache.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// AuthenticationMethod represents the different authentication methods supported.
type AuthenticationMethod string

const (
	AuthenticationMethodOAuth  AuthenticationMethod = "oauth"
	AuthenticationMethodStatic AuthenticationMethod = "static"
)

// Default configuration values
const (
	DefaultConfigLogFormat   = LogFormatText
	DefaultConfigOutput      = "auto"
	DefaultConfigAuthStorage = TokenStorageTypeFile
	DefaultConfigAuthMethod  = AuthenticationMethodOAuth

	// DefaultConfigTenantID lets any work or school account sign in; set a
	// tenant GUID to pin authentication to one directory.
	DefaultConfigTenantID = "organizations"

	// DefaultConfigClientID is the Microsoft first-party public client used
	// by the Azure CLI. It is pre-consented for the Power Platform APIs, so
	// device-code sign-in works without registering an application.
	DefaultConfigClientID = "04b07795-8ddb-461a-bbee-02f9e1bf7b46"

	// DefaultConfigScope covers both the Power Automate Management API and
	// the Power Apps connector API.
	DefaultConfigScope = "https://service.flow.microsoft.com//.default"
)

// PowerConfig identifies the Power Platform environment and app registration.
type PowerConfig struct {
	TenantID      string `json:"tenant_id"`
	ClientID      string `json:"client_id"`
	EnvironmentID string `json:"environment_id"`
	Scope         string `json:"scope"`

	// Base URL overrides, for sovereign clouds and tests.
	FlowBaseURL string `json:"flow_base_url,omitempty" validate:"omitempty,url"`
	AppsBaseURL string `json:"apps_base_url,omitempty" validate:"omitempty,url"`
}

// DataverseConfig holds the organization URL and service principal (or user)
// credentials for the Dataverse Web API. Only solution and user commands need
// it.
type DataverseConfig struct {
	OrgURL string `json:"org_url,omitempty" validate:"omitempty,url"`

	// Service principal credentials, preferred when present.
	TenantID     string `json:"tenant_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`

	// Resource owner credentials, the fallback for accounts without MFA.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// HasServicePrincipal reports whether client credential auth is configured.
func (d *DataverseConfig) HasServicePrincipal() bool {
	return d.TenantID != "" && d.ClientID != "" && d.ClientSecret != ""
}

// HasUserCredentials reports whether username/password auth is configured.
func (d *DataverseConfig) HasUserCredentials() bool {
	return d.Username != "" && d.Password != ""
}

// AuthConfig describes where the token cache lives and how tokens are
// acquired.
type AuthConfig struct {
	// Storage configuration - where the token cache comes from
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to the cache file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier

	// Authentication method - oauth runs the device-code flow, static reads
	// a raw bearer token from storage.
	Method AuthenticationMethod `json:"method" validate:"required,oneof=oauth static"`
}

// NewTokenStore creates a token store from the authentication configuration.
func (a *AuthConfig) NewTokenStore() (tokenstore.Store, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(a.File)
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(a.EnvKey)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore("flowctl-token", a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level `json:"log_level"`
	LogFormat LogFormat  `json:"log_format" validate:"oneof=text json"`

	// Output selects the result rendering: auto, json or table.
	Output string `json:"output" validate:"oneof=auto json table"`

	Power     PowerConfig     `json:"power"`
	Dataverse DataverseConfig `json:"dataverse"`
	Auth      AuthConfig      `json:"auth"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Output == "" {
		c.Output = DefaultConfigOutput
	}
	if c.Power.TenantID == "" {
		c.Power.TenantID = DefaultConfigTenantID
	}
	if c.Power.ClientID == "" {
		c.Power.ClientID = DefaultConfigClientID
	}
	if c.Power.Scope == "" {
		c.Power.Scope = DefaultConfigScope
	}
	if c.Dataverse.TenantID == "" {
		c.Dataverse.TenantID = c.Power.TenantID
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.Auth.Method == "" {
		c.Auth.Method = DefaultConfigAuthMethod
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "flowctl", "token_cache.json")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// OAuth needs somewhere to persist the token cache (env is read-only)
	if c.Auth.Method == AuthenticationMethodOAuth && c.Auth.Storage == TokenStorageTypeEnv {
		return errors.New("oauth authentication requires writable storage, env is read-only")
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// RequireEnvironment checks that an environment ID is configured before a
// command that needs one runs.
func (c *Config) RequireEnvironment() error {
	if c.Power.EnvironmentID == "" {
		return errors.New("no environment configured, set power.environment_id or FLOWCTL_POWER__ENVIRONMENT_ID")
	}
	return nil
}

// RequireDataverse checks that Dataverse access is fully configured.
func (c *Config) RequireDataverse() error {
	if c.Dataverse.OrgURL == "" {
		return errors.New("no Dataverse organization configured, set dataverse.org_url")
	}
	if !c.Dataverse.HasServicePrincipal() && !c.Dataverse.HasUserCredentials() {
		return errors.New("Dataverse requires either a client secret or username/password credentials")
	}
	return nil
}
