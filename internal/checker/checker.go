// Package checker defines the source checker contract: a bounded, read-only
// probe against one independent truth source. Checkers are total — a probe
// always returns a Result, never an error or a panic that escapes to the
// aggregator.
package checker

import (
	"context"
	"fmt"
	"time"
)

// Source identifies one independent truth source.
type Source string

const (
	SourceFilesystem  Source = "filesystem"
	SourceVCS         Source = "vcs"
	SourceDatabase    Source = "database"
	SourceDeployment  Source = "deployment"
	SourceIntegration Source = "integration"
	SourceTaskTracker Source = "task-tracker"
)

// ParseSource validates a source name from configuration.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceFilesystem, SourceVCS, SourceDatabase, SourceDeployment, SourceIntegration, SourceTaskTracker:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// FailureReason classifies why a probe did not succeed.
type FailureReason string

const (
	// ReasonConfigGap means required configuration was absent. The checker
	// was never attempted and is excluded from the scoring denominator.
	ReasonConfigGap FailureReason = "config_gap"

	// ReasonProbeFailure means the probe ran but the probed system was
	// unreachable or returned an error. Counts as a failed attempt.
	ReasonProbeFailure FailureReason = "probe_failure"

	// ReasonProbeTimeout means the probe did not complete within its budget.
	// Scores like a failure but is logged distinctly so operators can tell
	// slow systems from broken ones.
	ReasonProbeTimeout FailureReason = "probe_timeout"
)

// Result is the outcome of one probe. Invariant: if Available is false,
// Confidence is 0 and Facts is empty. Use the constructors below rather than
// building Results by hand.
type Result struct {
	Source     Source         `json:"source"`
	Available  bool           `json:"available"`
	Skipped    bool           `json:"skipped,omitempty"`
	Confidence float64        `json:"confidence"`
	Facts      map[string]any `json:"facts,omitempty"`
	Error      string         `json:"error,omitempty"`
	Reason     FailureReason  `json:"reason,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// Attempted reports whether this checker was actually invoked (as opposed to
// being skipped over a configuration gap).
func (r Result) Attempted() bool {
	return !r.Skipped
}

// OK builds a successful result with full confidence.
func OK(source Source, facts map[string]any, elapsed time.Duration) Result {
	return Degraded(source, 1.0, facts, elapsed)
}

// Degraded builds a successful result with reduced confidence, for probes
// that completed with partial access.
func Degraded(source Source, confidence float64, facts map[string]any, elapsed time.Duration) Result {
	if facts == nil {
		facts = map[string]any{}
	}
	return Result{
		Source:     source,
		Available:  true,
		Confidence: confidence,
		Facts:      facts,
		DurationMS: elapsed.Milliseconds(),
	}
}

// Failed builds a probe-failure result.
func Failed(source Source, errMsg string, elapsed time.Duration) Result {
	return Result{
		Source:     source,
		Available:  false,
		Confidence: 0,
		Error:      errMsg,
		Reason:     ReasonProbeFailure,
		DurationMS: elapsed.Milliseconds(),
	}
}

// TimedOut builds a probe-timeout result.
func TimedOut(source Source, elapsed time.Duration) Result {
	return Result{
		Source:     source,
		Available:  false,
		Confidence: 0,
		Error:      "probe did not complete within its time budget",
		Reason:     ReasonProbeTimeout,
		DurationMS: elapsed.Milliseconds(),
	}
}

// Unavailable builds an unavailable result for a probe that could not run
// at all (e.g. missing binary). Distinct from Skipped: the checker was
// attempted and counts against the score.
func Unavailable(source Source, errMsg string) Result {
	return Failed(source, errMsg, 0)
}

// ConfigGap builds a skipped result for a checker whose prerequisites are
// absent. Not a failure; excluded from the scoring denominator.
func ConfigGap(source Source, missing string) Result {
	return Result{
		Source:  source,
		Skipped: true,
		Error:   missing,
		Reason:  ReasonConfigGap,
	}
}

// Checker probes exactly one truth source.
//
// Check must be total: it catches every internal error and converts it into
// a Result. It must respect ctx for its time budget and must not mutate the
// system it reports on.
type Checker interface {
	// Name returns the source this checker probes.
	Name() Source

	// Configured reports whether the checker's prerequisites (credentials,
	// paths) are present. Unconfigured checkers are skipped, not failed.
	Configured() bool

	// Check performs the probe and returns its result.
	Check(ctx context.Context) Result
}
