package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConnectionConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ConnectionConfig
		wantErr string
	}{
		{"token auth", ConnectionConfig{Host: "splunk.corp", Token: "tok"}, ""},
		{"basic auth", ConnectionConfig{Host: "splunk.corp", Username: "admin", Password: "pw"}, ""},
		{"missing host", ConnectionConfig{Token: "tok"}, "host is required"},
		{"missing credentials", ConnectionConfig{Host: "splunk.corp"}, "token or username/password"},
		{"password without username", ConnectionConfig{Host: "splunk.corp", Password: "pw"}, "token or username/password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected %q error, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAuditConfigValidate(t *testing.T) {
	if err := (AuditConfig{}).Validate(); err != nil {
		t.Fatalf("disabled audit is valid: %v", err)
	}
	if err := (AuditConfig{Driver: "sqlite", DSN: "file:audit.db"}).Validate(); err != nil {
		t.Fatalf("sqlite audit is valid: %v", err)
	}
	if err := (AuditConfig{Driver: "oracle", DSN: "x"}).Validate(); err == nil {
		t.Fatalf("unknown driver must fail validation")
	}
	if err := (AuditConfig{Driver: "postgres"}).Validate(); err == nil {
		t.Fatalf("enabled audit requires a dsn")
	}
}

func TestLoadConfigLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spladmin.jsonc")
	content := `{
	// comments are tolerated in the settings file
	"connections": {
		"production": {
			"host": "splunk.corp.example",
			"token": "secret-token"
		}
	},
	"samples": {
		"earliest": "-7d"
	}
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	cfg, err := LoadConfig(context.Background(), path, Config{})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "spladmin" {
		t.Fatalf("default service name missing: %q", cfg.ServiceName)
	}
	connection, err := cfg.Connection("production")
	if err != nil {
		t.Fatalf("connection lookup: %v", err)
	}
	if connection.Host != "splunk.corp.example" || connection.Token != "secret-token" {
		t.Fatalf("unexpected connection: %+v", connection)
	}
	if cfg.Samples.Earliest != "-7d" {
		t.Fatalf("file value must override the default: %q", cfg.Samples.Earliest)
	}
	if cfg.Samples.Latest != "now" {
		t.Fatalf("unset file values keep defaults: %q", cfg.Samples.Latest)
	}
}

func TestLoadConfigRuntimeOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spladmin.jsonc")
	if err := os.WriteFile(path, []byte(`{"interactive": false}`), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	cfg, err := LoadConfig(context.Background(), path, Config{Interactive: true})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Interactive {
		t.Fatalf("runtime overrides must win over the settings file")
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(context.Background(), filepath.Join(t.TempDir(), "absent.jsonc"), Config{})
	if err != nil {
		t.Fatalf("missing settings file must not fail: %v", err)
	}
	if cfg.DefaultUserPassword != DefaultUserPassword {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestConfigConnectionUnknownName(t *testing.T) {
	if _, err := DefaultConfig().Connection("nope"); err == nil {
		t.Fatalf("unknown connection must error")
	}
}
