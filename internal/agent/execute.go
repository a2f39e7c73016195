package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crystalclearhouse/mintguard/internal/github"
	"github.com/crystalclearhouse/mintguard/internal/ledger"
)

// ActionResult is the outcome of one action within a batch.
type ActionResult struct {
	Action  Action `json:"action"`
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"`
	DryRun  bool   `json:"dry_run,omitempty"`
	Message string `json:"message,omitempty"`
}

// ExecutionResult aggregates a batch. Success means every non-skipped
// action succeeded.
type ExecutionResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Results []ActionResult `json:"results"`
}

// Executor performs SAFE-classified actions against a fixed set of
// side-effecting handlers. All collaborators are injected; a missing
// collaborator fails the actions that need it, not the process.
type Executor struct {
	DryRun bool

	GitHub      *github.Client
	GitHubOwner string
	GitHubRepo  string

	Ledger     *ledger.Ledger
	StatusPath string

	HTTPClient *http.Client
	Logger     *log.Logger

	now func() time.Time
}

// Execute runs the SAFE actions from a decision. It must only be called
// for an overall SAFE decision; per-action verdicts are rechecked anyway,
// and anything non-SAFE is skipped without touching its handler. One
// action's failure never aborts its siblings.
func (e *Executor) Execute(ctx context.Context, decision Decision, recordID string) ExecutionResult {
	if decision.Verdict != VerdictSafe {
		e.logf("skipping execution: verdict is %s, not SAFE", decision.Verdict)
		return ExecutionResult{Success: false, Message: "Not SAFE to execute"}
	}

	results := make([]ActionResult, 0, len(decision.ActionResults))
	for _, verdict := range decision.ActionResults {
		if verdict.Verdict != VerdictSafe {
			e.logf("skipping action %s: %s", verdict.Action.Type, verdict.Reason)
			results = append(results, ActionResult{
				Action:  verdict.Action,
				Skipped: true,
				Message: verdict.Reason,
			})
			continue
		}
		results = append(results, e.executeAction(ctx, verdict.Action, recordID))
	}

	success := true
	for _, r := range results {
		if !r.Skipped && !r.Success {
			success = false
			break
		}
	}

	return ExecutionResult{
		Success: success,
		Message: fmt.Sprintf("Executed %d action(s)", len(results)),
		Results: results,
	}
}

func (e *Executor) executeAction(ctx context.Context, action Action, recordID string) ActionResult {
	if e.DryRun {
		e.logf("[dry run] would execute %s", action.Type)
		return ActionResult{
			Action:  action,
			Success: true,
			DryRun:  true,
			Message: fmt.Sprintf("[DRY RUN] Would execute %s", action.Type),
		}
	}

	spec, ok := actionCatalog[action.Type]
	if !ok {
		// The evaluator only passes catalog types, so reaching here
		// means the catalog changed between evaluation and execution.
		// Fail the action, not the batch.
		return ActionResult{
			Action:  action,
			Message: fmt.Sprintf("unknown action type %q", action.Type),
		}
	}

	message, err := spec.execute(e, ctx, action, recordID)
	if err != nil {
		e.logf("action %s failed: %v", action.Type, err)
		return ActionResult{Action: action, Message: err.Error()}
	}
	return ActionResult{Action: action, Success: true, Message: message}
}

func (e *Executor) createGitHubIssue(ctx context.Context, action Action, _ string) (string, error) {
	if e.GitHub == nil {
		return "", fmt.Errorf("github client not configured")
	}
	if e.GitHubOwner == "" || e.GitHubRepo == "" {
		return "", fmt.Errorf("github owner/repo not configured")
	}

	issue, err := e.GitHub.CreateIssue(ctx, e.GitHubOwner, e.GitHubRepo, action.Title, action.Body)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("created issue #%d", issue.Number), nil
}

func (e *Executor) updateStatusReport(_ context.Context, action Action, recordID string) (string, error) {
	if e.StatusPath == "" {
		return "", fmt.Errorf("status report path not configured")
	}
	if err := os.MkdirAll(filepath.Dir(e.StatusPath), 0o755); err != nil {
		return "", err
	}

	var content strings.Builder
	content.WriteString("# Status Report\n\n")
	content.WriteString("Updated: " + e.timeNow().UTC().Format(time.RFC3339) + "\n")
	if recordID != "" {
		content.WriteString("Record: " + recordID + "\n")
	}
	content.WriteString("\n```json\n")
	content.Write(action.Raw)
	content.WriteString("\n```\n")

	if err := os.WriteFile(e.StatusPath, []byte(content.String()), 0o644); err != nil {
		return "", err
	}
	return "status report updated", nil
}

func (e *Executor) logFinding(ctx context.Context, action Action, recordID string) (string, error) {
	if e.Ledger == nil {
		return "", fmt.Errorf("ledger not configured")
	}

	finding := ledger.Finding{
		ID:         uuid.NewString(),
		RecordID:   recordID,
		ActionJSON: string(action.Raw),
		CreatedAt:  e.timeNow().UTC().Format(time.RFC3339),
	}
	if err := e.Ledger.RecordFinding(ctx, finding); err != nil {
		return "", err
	}
	return fmt.Sprintf("finding logged as %s", finding.ID), nil
}

func (e *Executor) notifyWebhook(ctx context.Context, action Action, _ string) (string, error) {
	if action.WebhookURL == "" {
		return "", fmt.Errorf("webhook_url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.WebhookURL, bytes.NewReader(action.Raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := e.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return "", fmt.Errorf("webhook returned %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return "webhook notified", nil
}

func (e *Executor) timeNow() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *Executor) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
