package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flowctl/flowctl/internal/app"
)

func environWith(vars ...string) func() []string {
	return func() []string { return vars }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", nil, environWith())
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Power.TenantID != app.DefaultConfigTenantID {
		t.Errorf("tenant %q, want default", cfg.Power.TenantID)
	}
	if cfg.Power.ClientID != app.DefaultConfigClientID {
		t.Errorf("client ID %q, want default", cfg.Power.ClientID)
	}
	if cfg.Auth.Storage != app.TokenStorageTypeFile {
		t.Errorf("storage %q, want file", cfg.Auth.Storage)
	}
	if cfg.Auth.File == "" {
		t.Error("file storage default path was not derived")
	}
	if cfg.Output != "auto" {
		t.Errorf("output %q, want auto", cfg.Output)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	cfg, err := loadConfig("", nil, environWith(
		"FLOWCTL_POWER__ENVIRONMENT_ID=Default-abc",
		"FLOWCTL_POWER__TENANT_ID=contoso.onmicrosoft.com",
		"FLOWCTL_OUTPUT=json",
		"UNRELATED=ignored",
	))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Power.EnvironmentID != "Default-abc" {
		t.Errorf("environment %q, want Default-abc", cfg.Power.EnvironmentID)
	}
	if cfg.Power.TenantID != "contoso.onmicrosoft.com" {
		t.Errorf("tenant %q, want value from environment", cfg.Power.TenantID)
	}
	if cfg.Output != "json" {
		t.Errorf("output %q, want json", cfg.Output)
	}
}

func TestLoadConfigFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowctl.toml")
	content := `
output = "table"

[power]
environment_id = "Default-from-file"
tenant_id = "file-tenant"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, nil, environWith(
		"FLOWCTL_POWER__TENANT_ID=env-tenant",
	))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	// Environment beats the file; file values survive where env is silent.
	if cfg.Power.TenantID != "env-tenant" {
		t.Errorf("tenant %q, want env-tenant", cfg.Power.TenantID)
	}
	if cfg.Power.EnvironmentID != "Default-from-file" {
		t.Errorf("environment %q, want value from file", cfg.Power.EnvironmentID)
	}
	if cfg.Output != "table" {
		t.Errorf("output %q, want table", cfg.Output)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	_, err := loadConfig("", nil, environWith("FLOWCTL_OUTPUT=yaml"))
	if err == nil {
		t.Fatal("loadConfig accepted an unknown output format")
	}
}

func TestLoadConfigRejectsOAuthWithEnvStorage(t *testing.T) {
	_, err := loadConfig("", nil, environWith(
		"FLOWCTL_AUTH__STORAGE=env",
		"FLOWCTL_AUTH__ENV_KEY=FLOWCTL_TOKEN",
	))
	if err == nil {
		t.Fatal("loadConfig accepted oauth with read-only env storage")
	}
}

func TestIsGUID(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"11111111-2222-3333-4444-555555555555", true},
		{"MySolution", false},
		{"11111111-2222-3333-4444-55555555555", false},
		{"11111111x2222x3333x4444x555555555555", false},
	}
	for _, tt := range tests {
		if got := isGUID(tt.value); got != tt.want {
			t.Errorf("isGUID(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestConnectorIDFromAPIID(t *testing.T) {
	tests := []struct {
		apiID string
		want  string
	}{
		{"/providers/Microsoft.PowerApps/apis/shared_office365", "shared_office365"},
		{"/providers/Microsoft.PowerApps/apis/", ""},
		{"", ""},
		{"/some/other/path", ""},
	}
	for _, tt := range tests {
		if got := connectorIDFromAPIID(tt.apiID); got != tt.want {
			t.Errorf("connectorIDFromAPIID(%q) = %q, want %q", tt.apiID, got, tt.want)
		}
	}
}
