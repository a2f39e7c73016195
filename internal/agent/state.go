package agent

import "github.com/crystalclearhouse/mintguard/internal/records"

// TransitionFromDecision maps an evaluation verdict (and, for SAFE, the
// execution outcome) to the record status written back to the store.
func TransitionFromDecision(verdict Verdict, executionOK bool) string {
	switch verdict {
	case VerdictSafe:
		if executionOK {
			return records.StatusExecuted
		}
		return records.StatusFailed
	case VerdictReview:
		return records.StatusReview
	default:
		return records.StatusFailed
	}
}
