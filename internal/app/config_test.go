package app

import (
	"strings"
	"testing"
)

func TestApplyDefaultsFillsUnsetFields(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults failed: %v", err)
	}

	if cfg.Power.TenantID != DefaultConfigTenantID {
		t.Errorf("tenant %q, want %q", cfg.Power.TenantID, DefaultConfigTenantID)
	}
	if cfg.Power.Scope != DefaultConfigScope {
		t.Errorf("scope %q, want default", cfg.Power.Scope)
	}
	if cfg.Auth.Method != AuthenticationMethodOAuth {
		t.Errorf("method %q, want oauth", cfg.Auth.Method)
	}
	if !strings.Contains(cfg.Auth.File, "flowctl") {
		t.Errorf("cache path %q, want flowctl config dir", cfg.Auth.File)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Power.TenantID = "contoso.onmicrosoft.com"
	cfg.Auth.File = "/tmp/cache.json"

	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults failed: %v", err)
	}

	if cfg.Power.TenantID != "contoso.onmicrosoft.com" {
		t.Errorf("tenant %q was overwritten", cfg.Power.TenantID)
	}
	if cfg.Auth.File != "/tmp/cache.json" {
		t.Errorf("cache path %q was overwritten", cfg.Auth.File)
	}
	// Dataverse tenant inherits the Power tenant unless set.
	if cfg.Dataverse.TenantID != "contoso.onmicrosoft.com" {
		t.Errorf("dataverse tenant %q, want inherited value", cfg.Dataverse.TenantID)
	}
}

func TestValidateRejectsEnvStorageForOAuth(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Auth.Storage = TokenStorageTypeEnv
	cfg.Auth.EnvKey = "FLOWCTL_TOKEN"
	cfg.Auth.Method = AuthenticationMethodOAuth

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted oauth with read-only env storage")
	}
}

func TestValidateAcceptsStaticWithEnvStorage(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Auth.Storage = TokenStorageTypeEnv
	cfg.Auth.EnvKey = "FLOWCTL_TOKEN"
	cfg.Auth.Method = AuthenticationMethodStatic

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestRequireDataverse(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	if err := cfg.RequireDataverse(); err == nil {
		t.Fatal("RequireDataverse passed with nothing configured")
	}

	cfg.Dataverse.OrgURL = "https://org.crm.dynamics.com"
	if err := cfg.RequireDataverse(); err == nil {
		t.Fatal("RequireDataverse passed without credentials")
	}

	cfg.Dataverse.ClientID = "app"
	cfg.Dataverse.ClientSecret = "secret"
	if err := cfg.RequireDataverse(); err != nil {
		t.Fatalf("RequireDataverse failed with a service principal: %v", err)
	}
}

func TestNewTokenStoreUnsupportedType(t *testing.T) {
	auth := &AuthConfig{Storage: "vault"}
	if _, err := auth.NewTokenStore(); err == nil {
		t.Fatal("NewTokenStore accepted an unsupported storage type")
	}
}
