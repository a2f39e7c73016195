// Package records is the client side of the canonical record store: the
// external service holding the units of work the agent consumes.
package records

import "encoding/json"

// Record statuses the agent reads or writes. The store owns the full
// lifecycle; the agent only ever sees cleaned records and moves them to
// one of the terminal states.
const (
	StatusCleaned  = "cleaned"
	StatusExecuted = "executed"
	StatusReview   = "review"
	StatusFailed   = "failed"
)

// CanonicalRecord is the slice of a stored record the decision loop
// touches. NormalizedPayload is kept raw: its shape is validated by the
// evaluator, not the transport.
type CanonicalRecord struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	LastActor         string          `json:"last_actor"`
	Verdict           string          `json:"verdict,omitempty"`
	NextAction        *string         `json:"next_action,omitempty"`
	NormalizedPayload json.RawMessage `json:"normalized_payload"`
	UpdatedAt         string          `json:"updated_at,omitempty"`
}

// Update is a partial write to a record. LastActor is mandatory: every
// mutation must be attributable, and the pickup query depends on it to
// keep the agent from reprocessing its own writes.
type Update struct {
	Status     string  `json:"status,omitempty"`
	Verdict    string  `json:"verdict,omitempty"`
	NextAction *string `json:"next_action"`
	LastActor  string  `json:"last_actor"`
	UpdatedAt  string  `json:"updated_at,omitempty"`
}
