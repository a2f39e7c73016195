package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/crystalclearhouse/mintguard/internal/api"
	"github.com/crystalclearhouse/mintguard/internal/auth"
	"github.com/crystalclearhouse/mintguard/internal/config"
	"github.com/crystalclearhouse/mintguard/internal/dispatch"
	"github.com/crystalclearhouse/mintguard/internal/github"
	"github.com/crystalclearhouse/mintguard/internal/ledger"
	"github.com/crystalclearhouse/mintguard/internal/policy"
	"github.com/crystalclearhouse/mintguard/internal/scan"
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe, newServer); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

func newServer(cfg config.Config, devToken string) (*http.Server, error) {
	logger := log.New(os.Stderr, "gateway: ", log.LstdFlags)

	verifier, err := newVerifier(cfg.GitHub, devToken)
	if err != nil {
		return nil, err
	}

	handle := policy.NewHandle(policy.Default())
	if cfg.PolicyPath != "" {
		loaded, err := policy.Load(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("loading scan policy: %w", err)
		}
		handle = policy.NewHandle(loaded.Policy)
		go func() {
			if err := policy.Watch(context.Background(), cfg.PolicyPath, handle, logger); err != nil {
				logger.Printf("policy watch stopped: %v", err)
			}
		}()
	}

	var auditLedger *ledger.Ledger
	if cfg.LedgerPath != "" {
		auditLedger, err = ledger.Open(cfg.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("opening audit ledger: %w", err)
		}
	}

	h := &api.Handler{
		Auth:   verifier,
		Engine: scan.NewEngine(nil, handle),
		Dispatcher: &dispatch.Dispatcher{
			URL:    cfg.Dispatch.WebhookURL,
			Secret: cfg.Dispatch.Secret,
			Logger: logger,
		},
		Ledger: auditLedger,
		Logger: logger,
	}

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}

func newVerifier(cfg config.GitHubConfig, devToken string) (auth.Verifier, error) {
	if cfg.AppID != 0 {
		key, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading github private key: %w", err)
		}
		client, err := github.NewClient(github.Config{
			AppID:          cfg.AppID,
			PrivateKey:     key,
			InstallationID: cfg.InstallationID,
		})
		if err != nil {
			return nil, err
		}
		return &auth.InstallationVerifier{Tokens: client}, nil
	}

	if devToken != "" {
		return &auth.StaticVerifier{Token: devToken}, nil
	}
	return nil, fmt.Errorf("no credential verifier configured: set github app auth or MINTGUARD_DEV_TOKEN")
}

type envFn func(string) string
type listenFn func(*http.Server) error
type serverFactory func(cfg config.Config, devToken string) (*http.Server, error)

func run(args []string, getenv envFn, listen listenFn, factory serverFactory) error {
	fs := flag.NewFlagSet("mintguard-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to mintguard config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := *configPath
	if cfgFile == "" {
		cfgFile = getenv("MINTGUARD_CONFIG_PATH")
	}

	var cfg config.Config
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	cfg.ListenAddr = firstNonEmpty(getenv("MINTGUARD_LISTEN_ADDR"), cfg.ListenAddr, ":8080")
	cfg.PolicyPath = firstNonEmpty(getenv("MINTGUARD_POLICY_PATH"), cfg.PolicyPath)
	devToken := getenv("MINTGUARD_DEV_TOKEN")

	server, err := factory(cfg, devToken)
	if err != nil {
		return err
	}

	log.Printf("mintguard-gateway listening on %s", cfg.ListenAddr)
	if err := listen(server); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func listenAndServe(server *http.Server) error {
	return server.ListenAndServe()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
