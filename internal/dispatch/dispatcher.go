// Package dispatch delivers verdict reports to the automation webhook.
// Delivery is best-effort by contract: loss of this side channel must
// never affect the verdict already returned to the scan caller.
package dispatch

import (
	"bytes"
	"log"
	"net/http"

	"github.com/crystalclearhouse/mintguard/internal/crypto"
	"github.com/crystalclearhouse/mintguard/pkg/types"
)

// Dispatcher posts signed reports to a configured webhook. A dispatcher
// with an empty URL or secret is a configured no-op, not an error.
type Dispatcher struct {
	URL    string
	Secret string
	Client *http.Client
	Logger *log.Logger
}

// Dispatch sends the report on a detached goroutine. The result is
// intentionally never awaited; failures are logged inside Send and go
// nowhere else.
func (d *Dispatcher) Dispatch(report types.Report) {
	go d.Send(report)
}

// Send serializes, signs, and posts the report. It never returns an
// error: every failure mode ends in a log line. Exposed separately from
// Dispatch so tests can run delivery synchronously.
func (d *Dispatcher) Send(report types.Report) {
	if d.URL == "" || d.Secret == "" {
		return
	}

	payload, err := crypto.Canonicalize(signingView(report))
	if err != nil {
		d.logf("dispatch: serializing report %s: %v", report.ScanID, err)
		return
	}
	signature := crypto.SignHMAC([]byte(d.Secret), payload)

	req, err := http.NewRequest(http.MethodPost, d.URL, bytes.NewReader(payload))
	if err != nil {
		d.logf("dispatch: building request for %s: %v", report.ScanID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", d.Secret)
	req.Header.Set("X-Signature", signature)

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		d.logf("dispatch: posting %s: %v", report.ScanID, err)
		return
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		d.logf("dispatch: %s returned %d for %s", d.URL, res.StatusCode, report.ScanID)
	}
}

// signingView is the exact payload shape the receiver verifies the
// signature against.
func signingView(report types.Report) map[string]any {
	return map[string]any{
		"scan_id":        report.ScanID,
		"verdict":        string(report.Verdict),
		"confidence":     report.Confidence,
		"reasons":        report.Reasons,
		"recommendation": report.Recommendation,
		"token":          report.Token,
		"timestamp":      report.Timestamp,
	}
}

func (d *Dispatcher) logf(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
