package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crystalclearhouse/mintguard/internal/agent"
	"github.com/crystalclearhouse/mintguard/internal/config"
	"github.com/crystalclearhouse/mintguard/internal/github"
	"github.com/crystalclearhouse/mintguard/internal/ledger"
	"github.com/crystalclearhouse/mintguard/internal/records"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the record poll loop",
	Long: `Polls the canonical record store on an interval and processes
every record the upstream cleaner has marked done. Stops cleanly on
SIGINT or SIGTERM; a cycle already in flight finishes first.`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Records.URL == "" {
		return fmt.Errorf("records.url is required to run the agent")
	}

	logger := log.New(os.Stderr, "agent: ", log.LstdFlags)

	store, err := records.NewRESTClient(records.RESTConfig{
		URL:      cfg.Records.URL,
		APIKey:   cfg.Records.APIKey,
		Table:    cfg.Records.Table,
		Upstream: cfg.Records.UpstreamActor,
	})
	if err != nil {
		return err
	}

	executor := &agent.Executor{
		DryRun:      dryRun || cfg.Agent.DryRun,
		GitHubOwner: cfg.GitHub.Owner,
		GitHubRepo:  cfg.GitHub.Repo,
		StatusPath:  cfg.StatusPath,
		Logger:      logger,
	}

	if cfg.GitHub.AppID != 0 {
		key, err := os.ReadFile(cfg.GitHub.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("reading github private key: %w", err)
		}
		client, err := github.NewClient(github.Config{
			AppID:          cfg.GitHub.AppID,
			PrivateKey:     key,
			InstallationID: cfg.GitHub.InstallationID,
		})
		if err != nil {
			return err
		}
		executor.GitHub = client
	}

	if cfg.LedgerPath != "" {
		auditLedger, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return fmt.Errorf("opening audit ledger: %w", err)
		}
		defer auditLedger.Close()
		executor.Ledger = auditLedger
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &agent.Agent{
		Store:    store,
		Executor: executor,
		Actor:    cfg.Records.Actor,
		Interval: cfg.Agent.PollInterval,
		Logger:   logger,
	}

	logger.Printf("starting poll loop as %s (interval %s, dry_run=%v)",
		a.Actor, cfg.Agent.PollInterval, executor.DryRun)
	a.Run(ctx)
	logger.Printf("poll loop stopped")
	return nil
}

func loadConfig() (config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("MINTGUARD_CONFIG_PATH")
	}
	if path == "" {
		return config.Config{}, fmt.Errorf("no config file: pass --config or set MINTGUARD_CONFIG_PATH")
	}
	return config.Load(path)
}
