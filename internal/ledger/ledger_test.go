package ledger

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndListScans(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	entries := []ScanEntry{
		{ScanID: "scan_1", Token: "mint_a", Verdict: "SAFE", Confidence: 95, Reasons: []string{"Engine reached"}, Recommendation: "STRUCTURALLY SAFE", CreatedAt: "2026-08-30T10:00:00Z"},
		{ScanID: "scan_2", Token: "mint_a", Verdict: "UNKNOWN", Confidence: 50, Reasons: []string{"Insufficient analysis confidence"}, Recommendation: "MANUAL_REVIEW_REQUIRED", CreatedAt: "2026-08-30T11:00:00Z"},
		{ScanID: "scan_3", Token: "mint_b", Verdict: "UNSAFE", Confidence: 100, CreatedAt: "2026-08-30T12:00:00Z"},
	}
	for _, entry := range entries {
		if err := l.RecordScan(ctx, entry); err != nil {
			t.Fatalf("record %s: %v", entry.ScanID, err)
		}
	}

	got, err := l.ScansByToken(ctx, "mint_a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].ScanID != "scan_1" || got[1].ScanID != "scan_2" {
		t.Fatalf("wrong order: %s, %s", got[0].ScanID, got[1].ScanID)
	}
	if got[0].Reasons[0] != "Engine reached" {
		t.Fatalf("reasons not round-tripped: %v", got[0].Reasons)
	}
}

func TestRecordScanDuplicateID(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	entry := ScanEntry{ScanID: "scan_dup", Token: "mint", Verdict: "SAFE", CreatedAt: "2026-08-30T10:00:00Z"}
	if err := l.RecordScan(ctx, entry); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := l.RecordScan(ctx, entry); err == nil {
		t.Fatal("expected duplicate scan_id to fail")
	}
}

func TestRecordAndListFindings(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	findings := []Finding{
		{ID: "f-1", RecordID: "rec-1", ActionJSON: `{"action_type":"log_finding"}`, CreatedAt: "2026-08-30T10:00:00Z"},
		{ID: "f-2", RecordID: "rec-1", ActionJSON: `{"action_type":"log_finding","note":"x"}`, CreatedAt: "2026-08-30T10:01:00Z"},
		{ID: "f-3", RecordID: "rec-2", ActionJSON: `{}`, CreatedAt: "2026-08-30T10:02:00Z"},
	}
	for _, f := range findings {
		if err := l.RecordFinding(ctx, f); err != nil {
			t.Fatalf("record %s: %v", f.ID, err)
		}
	}

	got, err := l.FindingsByRecord(ctx, "rec-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d findings, want 2", len(got))
	}
	if got[0].ID != "f-1" {
		t.Fatalf("first finding = %s", got[0].ID)
	}
}
