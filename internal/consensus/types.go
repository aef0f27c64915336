// Package consensus aggregates source checker results into a readiness
// decision: a consensus score, a READY/CAUTION/BLOCKED status, and a set of
// trust-hierarchy-resolved fact conflicts.
package consensus

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reality-cli/internal/checker"
)

// Status is the readiness tier derived from the consensus score. It gates
// whether downstream automation may proceed.
type Status string

const (
	StatusReady   Status = "READY"
	StatusCaution Status = "CAUTION"
	StatusBlocked Status = "BLOCKED"
)

// Fixed policy thresholds. Not configurable per run.
const (
	readyThreshold   = 80
	cautionThreshold = 60
)

// StatusFromScore maps a consensus score to its readiness tier.
func StatusFromScore(score int) Status {
	switch {
	case score >= readyThreshold:
		return StatusReady
	case score >= cautionThreshold:
		return StatusCaution
	default:
		return StatusBlocked
	}
}

// ReasonNoCheckersConfigured marks a report where every checker was skipped
// over missing configuration, so the score is undefined and the run blocks.
const ReasonNoCheckersConfigured = "no checkers configured"

// Conflict records one fact on which sources disagreed, and how the trust
// hierarchy resolved it.
type Conflict struct {
	FactKey          string                 `json:"fact_key"`
	CandidateValues  map[checker.Source]any `json:"candidate_values"`
	ResolvedValue    any                    `json:"resolved_value"`
	ResolvedBy       checker.Source         `json:"resolved_by"`
	ResolutionReason string                 `json:"resolution_reason"`
}

// Report is the immutable outcome of one consensus run. Reports are never
// mutated after creation, only superseded by a newer report.
type Report struct {
	ID             string           `json:"id"`
	Timestamp      time.Time        `json:"timestamp"`
	Mode           checker.Mode     `json:"mode"`
	Results        []checker.Result `json:"results"`
	Attempted      int              `json:"attempted"`
	Succeeded      int              `json:"succeeded"`
	Skipped        int              `json:"skipped"`
	ConsensusScore int              `json:"consensus_score"`
	Status         Status           `json:"status"`
	Reason         string           `json:"reason,omitempty"`
	Conflicts      []Conflict       `json:"conflicts,omitempty"`
}

// ErrEmptyHierarchy is the hard configuration error for a missing trust
// hierarchy. Consensus about reality must never be accidental, so an empty
// hierarchy aborts the run instead of picking arbitrary winners.
var ErrEmptyHierarchy = eris.New("consensus: trust hierarchy is empty")

// TrustHierarchy is the fixed ranking of sources, most authoritative first.
// It is the sole tie-breaker when sources disagree about a fact.
type TrustHierarchy []checker.Source

// DefaultHierarchy ranks version control above the local tree, the local
// tree above cached database state, and remote surfaces last. History that
// was committed beats state that was merely observed.
func DefaultHierarchy() TrustHierarchy {
	return TrustHierarchy{
		checker.SourceVCS,
		checker.SourceFilesystem,
		checker.SourceDatabase,
		checker.SourceDeployment,
		checker.SourceIntegration,
		checker.SourceTaskTracker,
	}
}

// Validate returns ErrEmptyHierarchy if the hierarchy has no entries.
func (h TrustHierarchy) Validate() error {
	if len(h) == 0 {
		return ErrEmptyHierarchy
	}
	return nil
}

// Rank returns the position of source in the hierarchy; lower is more
// trusted. A source absent from the hierarchy ranks below every source
// present in it.
func (h TrustHierarchy) Rank(source checker.Source) int {
	for i, s := range h {
		if s == source {
			return i
		}
	}
	return len(h)
}
