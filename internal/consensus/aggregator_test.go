package consensus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reality-cli/internal/checker"
)

// fakeChecker is a scriptable checker for aggregator tests.
type fakeChecker struct {
	source     checker.Source
	configured bool
	result     checker.Result
	delay      time.Duration
	panics     bool
}

func (f *fakeChecker) Name() checker.Source { return f.source }
func (f *fakeChecker) Configured() bool     { return f.configured }

func (f *fakeChecker) Check(ctx context.Context) checker.Result {
	if f.panics {
		panic("synthetic checker bug")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			// Keep blocking past the budget; the watchdog must not wait
			// for a hung probe.
			<-time.After(f.delay)
		}
	}
	return f.result
}

func okChecker(source checker.Source) *fakeChecker {
	return &fakeChecker{
		source:     source,
		configured: true,
		result:     checker.OK(source, map[string]any{"probe": "ok"}, time.Millisecond),
	}
}

func failChecker(source checker.Source) *fakeChecker {
	return &fakeChecker{
		source:     source,
		configured: true,
		result:     checker.Failed(source, "probe refused", time.Millisecond),
	}
}

func buildRegistry(t *testing.T, checkers ...checker.Checker) *checker.Registry {
	t.Helper()
	reg := checker.NewRegistry()
	for _, c := range checkers {
		require.NoError(t, reg.Register(c))
	}
	return reg
}

func TestAggregatorAllSucceed(t *testing.T) {
	reg := buildRegistry(t,
		okChecker(checker.SourceFilesystem),
		okChecker(checker.SourceIntegration),
		okChecker(checker.SourceDatabase),
	)
	agg, err := NewAggregator(reg, DefaultHierarchy())
	require.NoError(t, err)

	rep, err := agg.Run(context.Background(), checker.ModeQuick)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Attempted)
	assert.Equal(t, 3, rep.Succeeded)
	assert.Equal(t, 100, rep.ConsensusScore)
	assert.Equal(t, StatusReady, rep.Status)
	assert.Empty(t, rep.Conflicts)
	assert.NotEmpty(t, rep.ID)
}

func TestAggregatorPartialFailure(t *testing.T) {
	reg := buildRegistry(t,
		okChecker(checker.SourceFilesystem),
		okChecker(checker.SourceIntegration),
		failChecker(checker.SourceDatabase),
	)
	agg, err := NewAggregator(reg, DefaultHierarchy())
	require.NoError(t, err)

	rep, err := agg.Run(context.Background(), checker.ModeQuick)
	require.NoError(t, err)

	// Integer division floors: 2/3 → 66, never 67.
	assert.Equal(t, 66, rep.ConsensusScore)
	assert.Equal(t, StatusCaution, rep.Status)
}

func TestAggregatorMostlyFailing(t *testing.T) {
	checkers := make([]checker.Checker, 0, 7)
	for i := 0; i < 7; i++ {
		source := checker.Source(fmt.Sprintf("source-%d", i))
		if i < 3 {
			checkers = append(checkers, okChecker(source))
		} else {
			checkers = append(checkers, failChecker(source))
		}
	}
	reg := buildRegistry(t, checkers...)
	agg, err := NewAggregator(reg, DefaultHierarchy())
	require.NoError(t, err)

	rep, err := agg.Run(context.Background(), checker.ModeFull)
	require.NoError(t, err)

	assert.Equal(t, 7, rep.Attempted)
	assert.Equal(t, 3, rep.Succeeded)
	assert.Equal(t, 42, rep.ConsensusScore)
	assert.Equal(t, StatusBlocked, rep.Status)
}

func TestAggregatorSkipsUnconfigured(t *testing.T) {
	reg := buildRegistry(t,
		okChecker(checker.SourceFilesystem),
		&fakeChecker{source: checker.SourceDatabase, configured: false},
	)
	agg, err := NewAggregator(reg, DefaultHierarchy())
	require.NoError(t, err)

	rep, err := agg.Run(context.Background(), checker.ModeFull)
	require.NoError(t, err)

	// The skipped checker is excluded from the denominator entirely.
	assert.Equal(t, 1, rep.Attempted)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 100, rep.ConsensusScore)
	assert.Equal(t, StatusReady, rep.Status)

	var skipped checker.Result
	for _, res := range rep.Results {
		if res.Source == checker.SourceDatabase {
			skipped = res
		}
	}
	assert.True(t, skipped.Skipped)
	assert.Equal(t, checker.ReasonConfigGap, skipped.Reason)
}

func TestAggregatorNothingConfigured(t *testing.T) {
	reg := buildRegistry(t,
		&fakeChecker{source: checker.SourceFilesystem, configured: false},
		&fakeChecker{source: checker.SourceDatabase, configured: false},
	)
	agg, err := NewAggregator(reg, DefaultHierarchy())
	require.NoError(t, err)

	rep, err := agg.Run(context.Background(), checker.ModeFull)
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Attempted)
	assert.Equal(t, 0, rep.ConsensusScore)
	assert.Equal(t, StatusBlocked, rep.Status)
	assert.Equal(t, ReasonNoCheckersConfigured, rep.Reason)
}

func TestAggregatorContainsPanic(t *testing.T) {
	reg := buildRegistry(t,
		okChecker(checker.SourceFilesystem),
		&fakeChecker{source: checker.SourceDatabase, configured: true, panics: true},
	)
	agg, err := NewAggregator(reg, DefaultHierarchy())
	require.NoError(t, err)

	rep, err := agg.Run(context.Background(), checker.ModeFull)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Attempted)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 50, rep.ConsensusScore)

	var panicked checker.Result
	for _, res := range rep.Results {
		if res.Source == checker.SourceDatabase {
			panicked = res
		}
	}
	assert.False(t, panicked.Available)
	assert.Equal(t, checker.ReasonProbeFailure, panicked.Reason)
	assert.Contains(t, panicked.Error, "probe panic")
}

func TestAggregatorTimesOutSlowChecker(t *testing.T) {
	slow := &fakeChecker{
		source:     checker.SourceDatabase,
		configured: true,
		delay:      5 * time.Second,
		result:     checker.OK(checker.SourceDatabase, nil, time.Millisecond),
	}
	reg := buildRegistry(t, okChecker(checker.SourceFilesystem), slow)
	agg, err := NewAggregator(reg, DefaultHierarchy(),
		WithBudget(checker.ModeFull, 50*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	rep, err := agg.Run(context.Background(), checker.ModeFull)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "run must not wait for the hung probe")

	var timedOut checker.Result
	for _, res := range rep.Results {
		if res.Source == checker.SourceDatabase {
			timedOut = res
		}
	}
	assert.False(t, timedOut.Available)
	assert.Equal(t, checker.ReasonProbeTimeout, timedOut.Reason)
	assert.Equal(t, 50, rep.ConsensusScore)
	assert.Equal(t, StatusBlocked, rep.Status)
}

func TestAggregatorIdempotent(t *testing.T) {
	reg := buildRegistry(t,
		okChecker(checker.SourceFilesystem),
		okChecker(checker.SourceVCS),
		failChecker(checker.SourceDatabase),
	)
	agg, err := NewAggregator(reg, DefaultHierarchy())
	require.NoError(t, err)

	first, err := agg.Run(context.Background(), checker.ModeFull)
	require.NoError(t, err)
	second, err := agg.Run(context.Background(), checker.ModeFull)
	require.NoError(t, err)

	assert.Equal(t, first.ConsensusScore, second.ConsensusScore)
	assert.Equal(t, first.Status, second.Status)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAggregatorWritesCache(t *testing.T) {
	cache := checker.NewCache(t.TempDir(), time.Hour)
	reg := buildRegistry(t,
		okChecker(checker.SourceFilesystem),
		failChecker(checker.SourceDatabase),
	)
	agg, err := NewAggregator(reg, DefaultHierarchy(), WithCache(cache))
	require.NoError(t, err)

	_, err = agg.Run(context.Background(), checker.ModeFull)
	require.NoError(t, err)

	cached, _, ok := cache.Load(checker.SourceFilesystem)
	require.True(t, ok)
	assert.True(t, cached.Available)

	// Failed probes never enter the last-known-good cache.
	_, _, ok = cache.Load(checker.SourceDatabase)
	assert.False(t, ok)
}

func TestNewAggregatorRejectsBadConfig(t *testing.T) {
	reg := buildRegistry(t, okChecker(checker.SourceFilesystem))

	_, err := NewAggregator(checker.NewRegistry(), DefaultHierarchy())
	assert.Error(t, err, "empty registry is a hard error")

	_, err = NewAggregator(reg, TrustHierarchy{})
	assert.ErrorIs(t, err, ErrEmptyHierarchy)
}
