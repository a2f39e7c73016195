package scan

import "context"

// StubAnalyzer is the stand-in analysis step used until external
// detectors are wired in. It reports a healthy scan for everything except
// the low-confidence probe subject, which exercises the fail-closed path
// end to end.
type StubAnalyzer struct{}

// LowConfidenceSubject triggers a below-threshold analysis result.
const LowConfidenceSubject = "low_conf"

func (StubAnalyzer) Analyze(_ context.Context, subject string) (Analysis, error) {
	if subject == LowConfidenceSubject {
		return Analysis{Confidence: 50, Reasons: []string{"Data providers unreachable"}}, nil
	}
	return Analysis{Confidence: 95}, nil
}
