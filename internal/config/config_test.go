package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mintguard.yaml")

	os.Setenv("DISPATCH_SECRET", "secret")
	defer os.Unsetenv("DISPATCH_SECRET")

	data := `
listen_addr: ":8080"
policy_path: "./policies/scan.yaml"
dispatch:
  webhook_url: "https://hooks.example.com/scan"
  secret: "${DISPATCH_SECRET}"
records:
  url: "https://records.example.com"
  api_key: "key"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.Secret != "secret" {
		t.Fatalf("expected expanded dispatch secret")
	}
	if cfg.Records.Table != "canonical_records" {
		t.Fatalf("expected default table, got %q", cfg.Records.Table)
	}
	if cfg.Records.UpstreamActor != "sonia" || cfg.Records.Actor != "fred" {
		t.Fatalf("expected default actors, got %q/%q", cfg.Records.UpstreamActor, cfg.Records.Actor)
	}
	if cfg.Agent.PollInterval != 30*time.Second {
		t.Fatalf("expected default poll interval, got %s", cfg.Agent.PollInterval)
	}
}

func TestLoadAgentOnlyConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mintguard.yaml")

	// The agent never listens; a config without listen_addr must still
	// load, with the gateway default filled in.
	data := `
records:
  url: "https://records.example.com"
  api_key: "key"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
}

func TestValidateMissingFields(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateGitHubRequiresAllFields(t *testing.T) {
	cfg := Config{ListenAddr: ":8080", GitHub: GitHubConfig{AppID: 123}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateRecordsRequireAPIKey(t *testing.T) {
	cfg := Config{ListenAddr: ":8080", Records: RecordsConfig{URL: "https://records.example.com"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateDispatchRequiresSecret(t *testing.T) {
	cfg := Config{ListenAddr: ":8080", Dispatch: DispatchConfig{WebhookURL: "https://hooks.example.com"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error")
	}
}
