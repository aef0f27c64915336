// Package store persists the consensus run history and daily baselines.
package store

import (
	"context"
	"time"

	"github.com/sells-group/reality-cli/internal/consensus"
)

// HistoryEntry is a compact summary record of one consensus run. History is
// append-only: entries are never rewritten or deleted.
type HistoryEntry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Mode           string    `json:"mode"`
	ConsensusScore int       `json:"consensus_score"`
	Status         string    `json:"status"`
}

// Store defines the persistence interface for consensus reports.
type Store interface {
	// AppendHistory records a compact summary of one run.
	AppendHistory(ctx context.Context, rep *consensus.Report) error
	// ListHistory returns the most recent entries, newest first.
	ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error)

	// SaveBaseline captures the report as the baseline for the given day
	// (formatted 2006-01-02). The first report of a day wins; later writes
	// for the same day are no-ops and return false.
	SaveBaseline(ctx context.Context, day string, rep *consensus.Report) (bool, error)
	// GetBaseline returns the baseline report for the given day, or nil if
	// none was captured.
	GetBaseline(ctx context.Context, day string) (*consensus.Report, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
