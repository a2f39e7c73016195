package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crystalclearhouse/mintguard/internal/auth"
	"github.com/crystalclearhouse/mintguard/internal/dispatch"
	"github.com/crystalclearhouse/mintguard/internal/ledger"
	"github.com/crystalclearhouse/mintguard/internal/scan"
	"github.com/crystalclearhouse/mintguard/pkg/types"
)

// Handler serves the scan API. Ledger and Dispatcher are optional;
// when nil the corresponding step is skipped.
type Handler struct {
	Auth       auth.Verifier
	Engine     *scan.Engine
	Dispatcher *dispatch.Dispatcher
	Ledger     *ledger.Ledger

	Logger Logger
}

// Logger is the subset of log.Logger the handler needs.
type Logger interface {
	Printf(format string, args ...any)
}

// Scan verifies the caller, runs the engine, records and dispatches the
// report, and returns it. Dispatch is fire-and-forget: the response
// never waits on the webhook.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Verify(r.Context(), r); err != nil {
		// Only credential problems are the caller's fault. A broken
		// verifier (identity provider down) is ours, and its detail
		// stays out of the response.
		if errors.Is(err, auth.ErrMissingBearer) || errors.Is(err, auth.ErrInvalidToken) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":   "Unauthorized",
				"message": err.Error(),
			})
			return
		}
		errID := "err_" + uuid.NewString()
		h.logf("credential check %s failed: %v", errID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal Server Error",
			"scan_id": errID,
		})
		return
	}

	var req types.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.MintAddress) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Invalid Request",
			"message": "mintAddress is required and must be a string",
		})
		return
	}

	report, err := h.Engine.Scan(r.Context(), req.MintAddress)
	if err != nil {
		// The caller gets an opaque correlation id; the detail stays in
		// the logs.
		errID := "err_" + uuid.NewString()
		h.logf("scan %s failed: %v", errID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal Server Error",
			"scan_id": errID,
		})
		return
	}

	if h.Ledger != nil {
		entry := ledger.ScanEntry{
			ScanID:         report.ScanID,
			Token:          report.Token,
			Verdict:        string(report.Verdict),
			Confidence:     report.Confidence,
			Reasons:        report.Reasons,
			Recommendation: report.Recommendation,
			CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		}
		if err := h.Ledger.RecordScan(r.Context(), entry); err != nil {
			h.logf("ledger write for %s failed: %v", report.ScanID, err)
		}
	}

	if h.Dispatcher != nil {
		h.Dispatcher.Dispatch(report)
	}

	writeJSON(w, http.StatusOK, report)
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) logf(format string, args ...any) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
