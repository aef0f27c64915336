package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reality-cli/internal/checker"
	"github.com/sells-group/reality-cli/internal/consensus"
)

type fakePersister struct {
	history   []*consensus.Report
	baselines map[string]*consensus.Report
}

func newFakePersister() *fakePersister {
	return &fakePersister{baselines: map[string]*consensus.Report{}}
}

func (f *fakePersister) AppendHistory(_ context.Context, rep *consensus.Report) error {
	f.history = append(f.history, rep)
	return nil
}

func (f *fakePersister) SaveBaseline(_ context.Context, day string, rep *consensus.Report) (bool, error) {
	if _, exists := f.baselines[day]; exists {
		return false, nil
	}
	f.baselines[day] = rep
	return true, nil
}

func sampleReport() *consensus.Report {
	return &consensus.Report{
		ID:        "run-1",
		Timestamp: time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		Mode:      checker.ModeQuick,
		Results: []checker.Result{
			checker.OK(checker.SourceFilesystem, map[string]any{"root_exists": true}, 12*time.Millisecond),
			checker.Failed(checker.SourceDatabase, "connection refused", 40*time.Millisecond),
			checker.ConfigGap(checker.SourceIntegration, "integration webhook url not configured"),
		},
		Attempted:      2,
		Succeeded:      1,
		Skipped:        1,
		ConsensusScore: 50,
		Status:         consensus.StatusBlocked,
	}
}

func TestEmitterWritesLatest(t *testing.T) {
	dir := t.TempDir()
	st := newFakePersister()
	e := NewEmitter(dir, st)

	rep := sampleReport()
	require.NoError(t, e.Emit(context.Background(), rep))

	got, err := e.Latest()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rep.ID, got.ID)
	assert.Equal(t, rep.ConsensusScore, got.ConsensusScore)
	assert.Equal(t, rep.Status, got.Status)

	// No leftover temp file from the atomic replacement.
	_, err = os.Stat(filepath.Join(dir, "latest.json.tmp"))
	assert.True(t, os.IsNotExist(err))

	require.Len(t, st.history, 1)
	assert.Contains(t, st.baselines, "2026-08-31")
}

func TestEmitterLatestReplacedNotAppended(t *testing.T) {
	e := NewEmitter(t.TempDir(), newFakePersister())

	first := sampleReport()
	require.NoError(t, e.Emit(context.Background(), first))

	second := sampleReport()
	second.ID = "run-2"
	second.ConsensusScore = 100
	second.Status = consensus.StatusReady
	require.NoError(t, e.Emit(context.Background(), second))

	got, err := e.Latest()
	require.NoError(t, err)
	assert.Equal(t, "run-2", got.ID)
	assert.Equal(t, consensus.StatusReady, got.Status)
}

func TestEmitterBaselineOncePerDay(t *testing.T) {
	st := newFakePersister()
	e := NewEmitter(t.TempDir(), st)

	first := sampleReport()
	require.NoError(t, e.Emit(context.Background(), first))

	second := sampleReport()
	second.ID = "run-2"
	require.NoError(t, e.Emit(context.Background(), second))

	assert.Equal(t, "run-1", st.baselines["2026-08-31"].ID, "first report of the day stays the baseline")
	assert.Len(t, st.history, 2, "history keeps every run")
}

func TestEmitterLatestMissing(t *testing.T) {
	e := NewEmitter(t.TempDir(), nil)
	got, err := e.Latest()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGate(t *testing.T) {
	blocked := sampleReport()
	err := Gate(blocked)
	assert.ErrorIs(t, err, ErrBlocked)

	caution := sampleReport()
	caution.ConsensusScore = 66
	caution.Status = consensus.StatusCaution
	assert.NoError(t, Gate(caution))

	ready := sampleReport()
	ready.ConsensusScore = 100
	ready.Status = consensus.StatusReady
	assert.NoError(t, Gate(ready))
}

func TestSummary(t *testing.T) {
	out := Summary(sampleReport())

	assert.Contains(t, out, "mode quick")
	assert.Contains(t, out, "filesystem")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "FAIL  connection refused")
	assert.Contains(t, out, "SKIP")
	assert.Contains(t, out, "Consensus: 50% (1/2 attempted, 1 skipped)")
	assert.Contains(t, out, "BLOCKED")
}

func TestSummaryConflicts(t *testing.T) {
	rep := sampleReport()
	rep.Conflicts = []consensus.Conflict{{
		FactKey:          "table_profiles_exists",
		ResolvedValue:    true,
		ResolvedBy:       checker.SourceVCS,
		ResolutionReason: "vcs outranks database per configured trust hierarchy (tier 1)",
	}}

	out := Summary(rep)
	assert.Contains(t, out, `Conflict on "table_profiles_exists"`)
	assert.Contains(t, out, "vcs outranks database")
}
