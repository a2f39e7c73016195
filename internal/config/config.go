package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	PolicyPath string `yaml:"policy_path"`
	LedgerPath string `yaml:"ledger_path"`
	StatusPath string `yaml:"status_path"`

	GitHub   GitHubConfig   `yaml:"github"`
	Records  RecordsConfig  `yaml:"records"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Agent    AgentConfig    `yaml:"agent"`
}

type GitHubConfig struct {
	AppID          int64  `yaml:"app_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	InstallationID int64  `yaml:"installation_id"`
	Owner          string `yaml:"owner"`
	Repo           string `yaml:"repo"`
}

type RecordsConfig struct {
	URL           string `yaml:"url"`
	APIKey        string `yaml:"api_key"`
	Table         string `yaml:"table"`
	UpstreamActor string `yaml:"upstream_actor"`
	Actor         string `yaml:"actor"`
}

type DispatchConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Secret     string `yaml:"secret"`
}

type AgentConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	DryRun       bool          `yaml:"dry_run"`
}

func Load(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Records.Table == "" {
		c.Records.Table = "canonical_records"
	}
	if c.Records.UpstreamActor == "" {
		c.Records.UpstreamActor = "sonia"
	}
	if c.Records.Actor == "" {
		c.Records.Actor = "fred"
	}
	if c.Agent.PollInterval <= 0 {
		c.Agent.PollInterval = 30 * time.Second
	}
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	if c.GitHub.AppID != 0 || c.GitHub.PrivateKeyPath != "" || c.GitHub.InstallationID != 0 {
		if c.GitHub.AppID == 0 {
			return fmt.Errorf("github.app_id is required when github auth is configured")
		}
		if c.GitHub.PrivateKeyPath == "" {
			return fmt.Errorf("github.private_key_path is required when github auth is configured")
		}
		if c.GitHub.InstallationID == 0 {
			return fmt.Errorf("github.installation_id is required when github auth is configured")
		}
	}

	if c.Records.URL != "" && c.Records.APIKey == "" {
		return fmt.Errorf("records.api_key is required when records.url is set")
	}

	if c.Dispatch.WebhookURL != "" && c.Dispatch.Secret == "" {
		return fmt.Errorf("dispatch.secret is required when dispatch.webhook_url is set")
	}

	return nil
}
