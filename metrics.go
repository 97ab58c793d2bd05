package auth

import "time"

// Operation names used when reporting metrics.
const (
	OperationIssue   = "issue"
	OperationVerify  = "verify"
	OperationRefresh = "refresh"
	OperationRevoke  = "revoke"
)

// OutcomeOK is reported for successful operations; failures report their Kind.
const OutcomeOK = "ok"

// MetricsRecorder observes the outcome and latency of pipeline operations.
type MetricsRecorder interface {
	Observe(operation, outcome string, elapsed time.Duration)
}

// MetricsRecorderFunc adapts a function to the MetricsRecorder interface.
type MetricsRecorderFunc func(operation, outcome string, elapsed time.Duration)

// Observe implements MetricsRecorder.
func (f MetricsRecorderFunc) Observe(operation, outcome string, elapsed time.Duration) {
	if f != nil {
		f(operation, outcome, elapsed)
	}
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(string, string, time.Duration) {}

func normalizeMetricsRecorder(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return noopMetricsRecorder{}
	}
	return m
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return string(KindOf(err))
}
