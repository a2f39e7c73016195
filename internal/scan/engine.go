// Package scan implements the verdict engine: a fixed-priority policy
// pipeline that turns an analysis result into an immutable report.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/crystalclearhouse/mintguard/internal/policy"
	"github.com/crystalclearhouse/mintguard/pkg/types"
)

// Analysis is the raw output of the analysis step, before policy is
// applied.
type Analysis struct {
	Confidence int
	Reasons    []string
}

// Analyzer produces a confidence score for a subject. Implementations
// may call external detectors; StubAnalyzer stands in until they exist.
type Analyzer interface {
	Analyze(ctx context.Context, subject string) (Analysis, error)
}

// Engine turns a subject into a verdict report. Policy is read through
// the handle on every scan, so live policy reloads take effect without a
// restart.
type Engine struct {
	analyzer Analyzer
	policies *policy.Handle
	now      func() time.Time
}

// NewEngine builds an engine. A nil analyzer falls back to StubAnalyzer;
// a nil handle falls back to the compiled-in default policy.
func NewEngine(analyzer Analyzer, policies *policy.Handle) *Engine {
	if analyzer == nil {
		analyzer = StubAnalyzer{}
	}
	if policies == nil {
		policies = policy.NewHandle(policy.Default())
	}
	return &Engine{analyzer: analyzer, policies: policies, now: time.Now}
}

// Scan evaluates subject and returns a complete report. The branch order
// is a policy statement: low confidence is never upgraded to SAFE, and an
// explicit block always overrides a passing score. Every branch builds a
// full report; there is no partial or default report.
func (e *Engine) Scan(ctx context.Context, subject string) (types.Report, error) {
	analysis, err := e.analyzer.Analyze(ctx, subject)
	if err != nil {
		return types.Report{}, fmt.Errorf("analysis: %w", err)
	}

	active := e.policies.Current()
	now := e.now().UTC()

	if analysis.Confidence < active.MinConfidence {
		return types.Report{
			Verdict:        types.VerdictUnknown,
			Confidence:     analysis.Confidence,
			Reasons:        append([]string{"Insufficient analysis confidence"}, analysis.Reasons...),
			Recommendation: types.RecommendationManualReview,
			Token:          subject,
			ScanID:         scanID(now),
			Timestamp:      now.Format(time.RFC3339Nano),
		}, nil
	}

	if active.Blocked(subject) {
		return types.Report{
			Verdict:        types.VerdictUnsafe,
			Confidence:     100,
			Reasons:        []string{"Explicitly blocked by local policy"},
			Recommendation: types.RecommendationDoNotInteract,
			Token:          subject,
			ScanID:         scanID(now),
			Timestamp:      now.Format(time.RFC3339Nano),
		}, nil
	}

	return types.Report{
		Verdict:        types.VerdictSafe,
		Confidence:     analysis.Confidence,
		Reasons:        append([]string{"Engine reached", "No malicious patterns found"}, analysis.Reasons...),
		Recommendation: types.RecommendationSafe,
		Token:          subject,
		ScanID:         scanID(now),
		Timestamp:      now.Format(time.RFC3339Nano),
	}, nil
}

func scanID(now time.Time) string {
	return fmt.Sprintf("scan_%d", now.UnixNano())
}
