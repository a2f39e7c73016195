package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crystalclearhouse/mintguard/pkg/types"
)

const defaultAddr = "http://localhost:8080"

var (
	scanAddr  string
	scanToken string
	scanJSON  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <subject>",
	Short: "Request a scan verdict from a running gateway",
	Long: `Sends the subject to a mintguard gateway's scan endpoint and
prints the resulting report. Address and token default to the
MINTGUARD_ADDR and MINTGUARD_TOKEN environment variables.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanAddr, "addr", envOrDefault("MINTGUARD_ADDR", defaultAddr), "Gateway address")
	scanCmd.Flags().StringVar(&scanToken, "token", os.Getenv("MINTGUARD_TOKEN"), "Bearer token")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the raw JSON response")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	body, err := json.Marshal(types.ScanRequest{MintAddress: args[0]})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
		strings.TrimRight(scanAddr, "/")+"/v1/scan", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if scanToken != "" {
		req.Header.Set("Authorization", "Bearer "+scanToken)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("scan failed: %s", strings.TrimSpace(string(respBody)))
	}

	if scanJSON {
		_, err = os.Stdout.Write(respBody)
		return err
	}

	var report types.Report
	if err := json.Unmarshal(respBody, &report); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	fmt.Printf("verdict=%s confidence=%d recommendation=%s scan_id=%s\n",
		report.Verdict, report.Confidence, report.Recommendation, report.ScanID)
	for _, reason := range report.Reasons {
		fmt.Printf("  - %s\n", reason)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
