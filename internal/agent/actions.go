// Package agent implements the execution agent: deterministic action
// safety evaluation, gated execution, and the record poll loop.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Action is one proposed side effect embedded in a record's normalized
// payload. Raw preserves the full original object for logging and
// webhook forwarding.
type Action struct {
	Type       string
	Title      string
	Body       string
	WebhookURL string
	Raw        json.RawMessage
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var fields struct {
		Type       string `json:"action_type"`
		Title      string `json:"title"`
		Body       string `json:"body"`
		WebhookURL string `json:"webhook_url"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	a.Type = fields.Type
	a.Title = fields.Title
	a.Body = fields.Body
	a.WebhookURL = fields.WebhookURL
	a.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the original action object, so verdicts and results
// carry the exact proposed action rather than a lossy re-encoding.
func (a Action) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	return json.Marshal(map[string]string{"action_type": a.Type})
}

// handlerSpec binds one action type's safety validation to its executor.
// The catalog below is the single source of truth for both: the
// evaluator's allowlist is its key set, so the two can't drift apart.
type handlerSpec struct {
	// validate runs at evaluation time; a non-nil error fails the action.
	validate func(Action) error

	// execute performs the side effect and returns a result message.
	execute func(e *Executor, ctx context.Context, action Action, recordID string) (string, error)
}

var actionCatalog = map[string]handlerSpec{
	"create_github_issue": {
		validate: func(a Action) error {
			if a.Title == "" || a.Body == "" {
				return fmt.Errorf("GitHub issue missing required fields (title, body)")
			}
			return nil
		},
		execute: (*Executor).createGitHubIssue,
	},
	"update_status_report": {
		execute: (*Executor).updateStatusReport,
	},
	"log_finding": {
		execute: (*Executor).logFinding,
	},
	"notify_webhook": {
		execute: (*Executor).notifyWebhook,
	},
}

// AllowedActionTypes returns the catalog's key set, sorted. Exposed for
// operator tooling and tests.
func AllowedActionTypes() []string {
	types := make([]string, 0, len(actionCatalog))
	for name := range actionCatalog {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
