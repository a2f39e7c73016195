// Package ledger provides SQLite-backed local audit storage: every scan
// report the gateway issues and every finding the agent logs.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_reports (
	scan_id        TEXT PRIMARY KEY,
	token          TEXT NOT NULL,
	verdict        TEXT NOT NULL,
	confidence     INTEGER NOT NULL,
	reasons_json   TEXT NOT NULL DEFAULT '[]',
	recommendation TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_reports_token ON scan_reports(token);

CREATE TABLE IF NOT EXISTS findings (
	id           TEXT PRIMARY KEY,
	record_id    TEXT NOT NULL DEFAULT '',
	action_json  TEXT NOT NULL DEFAULT '{}',
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_findings_record ON findings(record_id);
`

// Ledger wraps the audit database.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path and
// applies the schema.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// SQLite allows one writer; both binaries may hold a ledger open.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// ScanEntry is a persisted scan report row.
type ScanEntry struct {
	ScanID         string
	Token          string
	Verdict        string
	Confidence     int
	Reasons        []string
	Recommendation string
	CreatedAt      string
}

// RecordScan inserts one scan report.
func (l *Ledger) RecordScan(ctx context.Context, entry ScanEntry) error {
	reasons, err := json.Marshal(entry.Reasons)
	if err != nil {
		return err
	}
	const q = `INSERT INTO scan_reports (scan_id, token, verdict, confidence, reasons_json, recommendation, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := l.db.ExecContext(ctx, q,
		entry.ScanID, entry.Token, entry.Verdict, entry.Confidence,
		string(reasons), entry.Recommendation, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	return nil
}

// ScansByToken returns all reports for a token, oldest first.
func (l *Ledger) ScansByToken(ctx context.Context, token string) ([]ScanEntry, error) {
	const q = `SELECT scan_id, token, verdict, confidence, reasons_json, recommendation, created_at
FROM scan_reports WHERE token = ? ORDER BY created_at ASC`

	rows, err := l.db.QueryContext(ctx, q, token)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var entries []ScanEntry
	for rows.Next() {
		var entry ScanEntry
		var reasonsJSON string
		if err := rows.Scan(&entry.ScanID, &entry.Token, &entry.Verdict, &entry.Confidence,
			&reasonsJSON, &entry.Recommendation, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(reasonsJSON), &entry.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons for %s: %w", entry.ScanID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Finding is a persisted log_finding action.
type Finding struct {
	ID         string
	RecordID   string
	ActionJSON string
	CreatedAt  string
}

// RecordFinding inserts one finding.
func (l *Ledger) RecordFinding(ctx context.Context, finding Finding) error {
	const q = `INSERT INTO findings (id, record_id, action_json, created_at) VALUES (?, ?, ?, ?)`
	if _, err := l.db.ExecContext(ctx, q,
		finding.ID, finding.RecordID, finding.ActionJSON, finding.CreatedAt,
	); err != nil {
		return fmt.Errorf("record finding: %w", err)
	}
	return nil
}

// FindingsByRecord returns all findings logged while processing a
// canonical record, oldest first.
func (l *Ledger) FindingsByRecord(ctx context.Context, recordID string) ([]Finding, error) {
	const q = `SELECT id, record_id, action_json, created_at
FROM findings WHERE record_id = ? ORDER BY created_at ASC`

	rows, err := l.db.QueryContext(ctx, q, recordID)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	var findings []Finding
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.ID, &f.RecordID, &f.ActionJSON, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("finding row: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
