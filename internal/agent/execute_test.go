package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/crystalclearhouse/mintguard/internal/ledger"
)

func TestExecuteRefusesNonSafeDecision(t *testing.T) {
	e := &Executor{}
	decision := Evaluate(json.RawMessage(`{"actions":[{"action_type":"unknown_x"}]}`))

	result := e.Execute(context.Background(), decision, "rec-1")
	if result.Success {
		t.Fatal("REVIEW decision executed")
	}
	if result.Message != "Not SAFE to execute" {
		t.Fatalf("message = %q", result.Message)
	}
	if len(result.Results) != 0 {
		t.Fatalf("unexpected per-action results: %+v", result.Results)
	}
}

func TestExecuteSkipsNonSafeActions(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	// Hand-built decision: one SAFE webhook, one REVIEW action. The
	// REVIEW action's handler must never run.
	decision := Decision{
		Verdict: VerdictSafe,
		ActionResults: []ActionVerdict{
			{
				Action:  mustAction(t, `{"action_type":"notify_webhook","webhook_url":"`+server.URL+`"}`),
				Verdict: VerdictSafe,
			},
			{
				Action:  mustAction(t, `{"action_type":"notify_webhook","webhook_url":"`+server.URL+`"}`),
				Verdict: VerdictReview,
				Reason:  "needs a human",
			},
		},
	}

	e := &Executor{HTTPClient: server.Client()}
	result := e.Execute(context.Background(), decision, "rec-1")
	if !result.Success {
		t.Fatalf("execution failed: %+v", result)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("webhook hit %d times, want 1", hits)
	}
	if !result.Results[1].Skipped {
		t.Fatalf("second action not marked skipped: %+v", result.Results[1])
	}
	if result.Results[1].Success {
		t.Fatal("skipped action marked successful")
	}
}

func TestExecuteDryRun(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	decision := Evaluate(json.RawMessage(`{"actions":[{"action_type":"notify_webhook","webhook_url":"` + server.URL + `"}]}`))
	e := &Executor{DryRun: true, HTTPClient: server.Client()}

	result := e.Execute(context.Background(), decision, "rec-1")
	if !result.Success {
		t.Fatalf("dry run not successful: %+v", result)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatal("dry run reached the webhook")
	}
	if !result.Results[0].DryRun {
		t.Fatalf("result not marked dry run: %+v", result.Results[0])
	}
	if !strings.HasPrefix(result.Results[0].Message, "[DRY RUN]") {
		t.Fatalf("message = %q", result.Results[0].Message)
	}
}

func TestExecuteFailureIsolation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	// First action fails (no webhook_url passes validation but the bad
	// URL fails at execution), second succeeds.
	decision := Decision{
		Verdict: VerdictSafe,
		ActionResults: []ActionVerdict{
			{
				Action:  mustAction(t, `{"action_type":"notify_webhook","webhook_url":"http://127.0.0.1:1/unreachable"}`),
				Verdict: VerdictSafe,
			},
			{
				Action:  mustAction(t, `{"action_type":"notify_webhook","webhook_url":"`+server.URL+`"}`),
				Verdict: VerdictSafe,
			},
		},
	}

	e := &Executor{HTTPClient: server.Client()}
	result := e.Execute(context.Background(), decision, "rec-1")
	if result.Success {
		t.Fatal("batch with a failed action reported success")
	}
	if result.Results[0].Success {
		t.Fatal("unreachable webhook reported success")
	}
	if !result.Results[1].Success {
		t.Fatalf("second action did not run: %+v", result.Results[1])
	}
}

func TestExecuteLogFinding(t *testing.T) {
	l, err := ledger.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	decision := Evaluate(json.RawMessage(`{"actions":[{"action_type":"log_finding","body":"suspicious mint"}]}`))
	e := &Executor{Ledger: l}

	result := e.Execute(context.Background(), decision, "rec-42")
	if !result.Success {
		t.Fatalf("execution failed: %+v", result)
	}

	findings, err := l.FindingsByRecord(context.Background(), "rec-42")
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(findings))
	}
	if !strings.Contains(findings[0].ActionJSON, "suspicious mint") {
		t.Fatalf("action json = %q", findings[0].ActionJSON)
	}
}

func TestExecuteUpdateStatusReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "status.md")
	decision := Evaluate(json.RawMessage(`{"actions":[{"action_type":"update_status_report","body":"all clear"}]}`))

	e := &Executor{StatusPath: path}
	result := e.Execute(context.Background(), decision, "rec-7")
	if !result.Success {
		t.Fatalf("execution failed: %+v", result)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "rec-7") {
		t.Fatalf("report missing record id:\n%s", data)
	}
	if !strings.Contains(string(data), "all clear") {
		t.Fatalf("report missing action payload:\n%s", data)
	}
}

func TestExecuteMissingCollaboratorFailsAction(t *testing.T) {
	decision := Evaluate(json.RawMessage(`{"actions":[{"action_type":"create_github_issue","title":"t","body":"b"}]}`))
	e := &Executor{}

	result := e.Execute(context.Background(), decision, "rec-1")
	if result.Success {
		t.Fatal("issue creation succeeded without a client")
	}
	if !strings.Contains(result.Results[0].Message, "not configured") {
		t.Fatalf("message = %q", result.Results[0].Message)
	}
}

func mustAction(t *testing.T, raw string) Action {
	t.Helper()
	var a Action
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatal(err)
	}
	return a
}
