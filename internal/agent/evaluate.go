package agent

import (
	"encoding/json"
	"fmt"
)

// Verdict classifies an action or a whole payload.
type Verdict string

const (
	VerdictSafe   Verdict = "SAFE"
	VerdictReview Verdict = "REVIEW"
	VerdictFail   Verdict = "FAIL"
)

// ActionVerdict is one action's classification.
type ActionVerdict struct {
	Action  Action  `json:"action"`
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
}

// Decision is the aggregate classification of a payload. NextAction is
// nil when nothing should happen (FAIL); otherwise it instructs the next
// actor, human or agent.
type Decision struct {
	Verdict       Verdict
	Reason        string
	NextAction    *string
	ActionResults []ActionVerdict
}

// Evaluate classifies a record's normalized payload. It is a pure
// decision table: same payload, same decision, no I/O. The rules fail
// closed: anything structurally wrong is FAIL; anything merely
// unrecognized is REVIEW.
func Evaluate(payload json.RawMessage) Decision {
	var object map[string]json.RawMessage
	if len(payload) == 0 || json.Unmarshal(payload, &object) != nil || object == nil {
		return Decision{
			Verdict: VerdictFail,
			Reason:  "Invalid payload structure",
		}
	}

	rawActions, ok := object["actions"]
	if !ok {
		return noActionsDecision()
	}
	var elements []json.RawMessage
	if json.Unmarshal(rawActions, &elements) != nil || len(elements) == 0 {
		return noActionsDecision()
	}

	// Decode element by element: one malformed entry fails that entry,
	// not the whole array, and its valid siblings still get classified.
	results := make([]ActionVerdict, 0, len(elements))
	for _, element := range elements {
		var action Action
		if err := json.Unmarshal(element, &action); err != nil {
			results = append(results, ActionVerdict{
				Action:  Action{Raw: append(json.RawMessage(nil), element...)},
				Verdict: VerdictFail,
				Reason:  "Missing action_type field",
			})
			continue
		}
		results = append(results, evaluateAction(action))
	}

	failed, review := 0, 0
	for _, r := range results {
		switch r.Verdict {
		case VerdictFail:
			failed++
		case VerdictReview:
			review++
		}
	}

	switch {
	case failed > 0:
		return Decision{
			Verdict:       VerdictFail,
			Reason:        fmt.Sprintf("%d action(s) failed validation", failed),
			ActionResults: results,
		}
	case review > 0:
		return Decision{
			Verdict:       VerdictReview,
			Reason:        fmt.Sprintf("%d action(s) require human review", review),
			NextAction:    strPtr("Human approval required for non-standard actions"),
			ActionResults: results,
		}
	default:
		return Decision{
			Verdict:       VerdictSafe,
			Reason:        "All actions passed safety checks",
			NextAction:    strPtr(fmt.Sprintf("Execute %d action(s)", len(results))),
			ActionResults: results,
		}
	}
}

func evaluateAction(action Action) ActionVerdict {
	if action.Type == "" {
		return ActionVerdict{Action: action, Verdict: VerdictFail, Reason: "Missing action_type field"}
	}

	spec, allowed := actionCatalog[action.Type]
	if !allowed {
		return ActionVerdict{
			Action:  action,
			Verdict: VerdictReview,
			Reason:  fmt.Sprintf("Action type %q not in safe allowlist", action.Type),
		}
	}

	if spec.validate != nil {
		if err := spec.validate(action); err != nil {
			return ActionVerdict{Action: action, Verdict: VerdictFail, Reason: err.Error()}
		}
	}

	return ActionVerdict{Action: action, Verdict: VerdictSafe, Reason: "Passed all safety checks"}
}

func noActionsDecision() Decision {
	return Decision{
		Verdict:    VerdictReview,
		Reason:     "No actions specified in payload",
		NextAction: strPtr("Human review required: missing actions array"),
	}
}

func strPtr(s string) *string {
	return &s
}
