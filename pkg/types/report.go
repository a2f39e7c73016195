package types

// Verdict is the terminal outcome of a scan. External automation relies
// on this exact vocabulary; do not extend without versioning the contract.
type Verdict string

const (
	VerdictSafe    Verdict = "SAFE"
	VerdictUnsafe  Verdict = "UNSAFE"
	VerdictUnknown Verdict = "UNKNOWN"
)

// Recommendation labels attached to a report. Free text by contract, but
// the engine only ever emits these three.
const (
	RecommendationSafe          = "STRUCTURALLY SAFE"
	RecommendationManualReview  = "MANUAL_REVIEW_REQUIRED"
	RecommendationDoNotInteract = "DO_NOT_INTERACT"
)

// Report is the immutable result of one scan invocation. It is built once,
// returned to the caller, and forwarded unchanged to the automation
// webhook. Downstream systems depend on this exact shape.
type Report struct {
	Verdict        Verdict  `json:"verdict"`
	Confidence     int      `json:"confidence"`
	Reasons        []string `json:"reasons"`
	Recommendation string   `json:"recommendation"`
	Token          string   `json:"token"`
	ScanID         string   `json:"scan_id"`
	Timestamp      string   `json:"timestamp"`
}

// ScanRequest is the inbound scan endpoint body.
type ScanRequest struct {
	MintAddress string `json:"mintAddress"`
}
