// Package report turns a consensus report into persisted state and a
// human-readable summary, and owns the gating signal for downstream callers.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reality-cli/internal/checker"
	"github.com/sells-group/reality-cli/internal/consensus"
)

// ErrBlocked is returned by Gate when the run is BLOCKED. Callers translate
// it into a failing exit status so downstream automation cannot proceed
// against an unverified system state.
var ErrBlocked = eris.New("reality check blocked")

const latestFile = "latest.json"

// Emitter persists consensus reports and renders their summaries. The latest
// report is a single atomically-replaced file; run history and daily
// baselines go through the store.
type Emitter struct {
	dir string
	st  Persister
}

// Persister is the subset of the store the emitter needs.
type Persister interface {
	AppendHistory(ctx context.Context, rep *consensus.Report) error
	SaveBaseline(ctx context.Context, day string, rep *consensus.Report) (bool, error)
}

// NewEmitter creates an Emitter writing latest.json under dir. A nil store
// disables history and baseline capture (used by read-only commands).
func NewEmitter(dir string, st Persister) *Emitter {
	return &Emitter{dir: dir, st: st}
}

// Emit persists the report: latest.json is replaced atomically, a compact
// summary is appended to the history log, and the first run of a calendar
// day is captured as that day's baseline.
func (e *Emitter) Emit(ctx context.Context, rep *consensus.Report) error {
	if err := e.writeLatest(rep); err != nil {
		return err
	}

	if e.st == nil {
		return nil
	}

	if err := e.st.AppendHistory(ctx, rep); err != nil {
		return eris.Wrap(err, "report: append history")
	}

	day := rep.Timestamp.Format("2006-01-02")
	captured, err := e.st.SaveBaseline(ctx, day, rep)
	if err != nil {
		return eris.Wrap(err, "report: save baseline")
	}
	if captured {
		zap.L().Info("daily baseline captured", zap.String("day", day))
	}
	return nil
}

// writeLatest replaces latest.json via write-to-temp-then-rename, so a
// concurrent reader never observes a torn report.
func (e *Emitter) writeLatest(rep *consensus.Report) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return eris.Wrap(err, "report: mkdir")
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal")
	}

	path := filepath.Join(e.dir, latestFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "report: write latest")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "report: commit latest")
	}
	return nil
}

// Latest reads the most recent persisted report, or nil if none exists yet.
func (e *Emitter) Latest() (*consensus.Report, error) {
	data, err := os.ReadFile(filepath.Join(e.dir, latestFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "report: read latest")
	}

	var rep consensus.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, eris.Wrap(err, "report: unmarshal latest")
	}
	return &rep, nil
}

// Gate converts the report status into the gating signal: nil for READY and
// CAUTION (with a logged warning for CAUTION), ErrBlocked for BLOCKED.
func Gate(rep *consensus.Report) error {
	switch rep.Status {
	case consensus.StatusBlocked:
		return eris.Wrapf(ErrBlocked, "consensus score %d", rep.ConsensusScore)
	case consensus.StatusCaution:
		zap.L().Warn("proceeding with caution",
			zap.Int("score", rep.ConsensusScore),
		)
	}
	return nil
}

// Summary renders the human-readable report: mode, per-source outcome,
// score, status, and any resolved conflicts.
func Summary(rep *consensus.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Reality check — mode %s at %s\n", rep.Mode, rep.Timestamp.Format(time.RFC3339))
	for _, res := range rep.Results {
		fmt.Fprintf(&b, "  %-12s %s\n", res.Source, resultLine(res))
	}
	fmt.Fprintf(&b, "Consensus: %d%% (%d/%d attempted", rep.ConsensusScore, rep.Succeeded, rep.Attempted)
	if rep.Skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", rep.Skipped)
	}
	fmt.Fprintf(&b, ") → %s\n", rep.Status)
	if rep.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", rep.Reason)
	}

	for _, c := range rep.Conflicts {
		fmt.Fprintf(&b, "Conflict on %q: resolved to %v (%s)\n", c.FactKey, c.ResolvedValue, c.ResolutionReason)
	}
	return b.String()
}

func resultLine(res checker.Result) string {
	switch {
	case res.Skipped:
		return fmt.Sprintf("SKIP  (%s)", res.Error)
	case res.Available:
		return fmt.Sprintf("PASS  confidence=%.2f %dms", res.Confidence, res.DurationMS)
	case res.Reason == checker.ReasonProbeTimeout:
		return fmt.Sprintf("FAIL  timeout after %dms", res.DurationMS)
	default:
		return fmt.Sprintf("FAIL  %s", res.Error)
	}
}
