//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/crystalclearhouse/mintguard/internal/agent"
	"github.com/crystalclearhouse/mintguard/internal/api"
	"github.com/crystalclearhouse/mintguard/internal/auth"
	"github.com/crystalclearhouse/mintguard/internal/crypto"
	"github.com/crystalclearhouse/mintguard/internal/dispatch"
	"github.com/crystalclearhouse/mintguard/internal/ledger"
	"github.com/crystalclearhouse/mintguard/internal/records"
	"github.com/crystalclearhouse/mintguard/internal/scan"
	"github.com/crystalclearhouse/mintguard/pkg/types"
)

const webhookSecret = "e2e-secret"

func TestE2EScanAndDispatch(t *testing.T) {
	type delivery struct {
		body      []byte
		signature string
	}
	deliveries := make(chan delivery, 1)

	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		deliveries <- delivery{body: body, signature: r.Header.Get("X-Signature")}
	}))
	defer sink.Close()

	router := api.NewRouter(&api.Handler{
		Auth:   &auth.StaticVerifier{Token: "test-token"},
		Engine: scan.NewEngine(nil, nil),
		Dispatcher: &dispatch.Dispatcher{
			URL:    sink.URL,
			Secret: webhookSecret,
			Client: sink.Client(),
		},
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	report := scanSubject(t, srv.URL, "mint_abc")
	if report.Verdict != types.VerdictSafe {
		t.Fatalf("expected SAFE, got %s", report.Verdict)
	}

	select {
	case d := <-deliveries:
		if !crypto.VerifyHMAC([]byte(webhookSecret), d.body, d.signature) {
			t.Fatalf("webhook signature did not verify")
		}
		var forwarded map[string]any
		if err := json.Unmarshal(d.body, &forwarded); err != nil {
			t.Fatalf("webhook body: %v", err)
		}
		if forwarded["scan_id"] != report.ScanID {
			t.Fatalf("webhook scan_id %v, response scan_id %s", forwarded["scan_id"], report.ScanID)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("webhook never delivered")
	}

	// Blocklisted subject comes back UNSAFE with full confidence.
	blocked := scanSubject(t, srv.URL, "sus_mint_123")
	if blocked.Verdict != types.VerdictUnsafe || blocked.Confidence != 100 {
		t.Fatalf("blocklisted scan: %s/%d", blocked.Verdict, blocked.Confidence)
	}
}

func TestE2EAgentProcessesRecord(t *testing.T) {
	store := records.NewInMemoryStore("sonia")
	store.Put(records.CanonicalRecord{
		ID:                "rec-e2e",
		Status:            records.StatusCleaned,
		LastActor:         "sonia",
		NormalizedPayload: json.RawMessage(`{"actions":[{"action_type":"log_finding","body":"e2e finding"}]}`),
	})

	auditLedger, err := ledger.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	defer auditLedger.Close()

	a := &agent.Agent{
		Store:    store,
		Executor: &agent.Executor{Ledger: auditLedger},
		Actor:    "fred",
		Interval: 10 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, _ := store.Get("rec-e2e")
		if rec.Status == records.StatusExecuted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("record never executed, status %s", rec.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done

	rec, _ := store.Get("rec-e2e")
	if rec.LastActor != "fred" {
		t.Fatalf("last_actor = %s", rec.LastActor)
	}
	findings, err := auditLedger.FindingsByRecord(context.Background(), "rec-e2e")
	if err != nil {
		t.Fatalf("findings: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(findings))
	}
}

func scanSubject(t *testing.T, baseURL, subject string) types.Report {
	t.Helper()

	body, _ := json.Marshal(types.ScanRequest{MintAddress: subject})
	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/scan", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-token")
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("scan status %d", res.StatusCode)
	}
	var report types.Report
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return report
}
