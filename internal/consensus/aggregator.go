package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/reality-cli/internal/checker"
)

// Aggregator orchestrates one consensus run: it selects the checkers for the
// requested mode, probes them concurrently under the mode's time budget, and
// reduces their results to a Report.
type Aggregator struct {
	registry  *checker.Registry
	hierarchy TrustHierarchy
	cache     *checker.Cache
	budgets   map[checker.Mode]time.Duration
	now       func() time.Time
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithCache stores each successful probe result in the given cache after
// the run.
func WithCache(c *checker.Cache) AggregatorOption {
	return func(a *Aggregator) {
		a.cache = c
	}
}

// WithBudget overrides the time budget for one mode.
func WithBudget(mode checker.Mode, budget time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		a.budgets[mode] = budget
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator creates an Aggregator. An empty registry or an empty trust
// hierarchy is a hard configuration error, not a BLOCKED outcome: those are
// environment mistakes and must not masquerade as reality detection.
func NewAggregator(reg *checker.Registry, hierarchy TrustHierarchy, opts ...AggregatorOption) (*Aggregator, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, eris.New("consensus: no checkers registered")
	}
	if err := hierarchy.Validate(); err != nil {
		return nil, err
	}

	a := &Aggregator{
		registry:  reg,
		hierarchy: hierarchy,
		budgets:   map[checker.Mode]time.Duration{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Aggregator) budget(mode checker.Mode) time.Duration {
	if b, ok := a.budgets[mode]; ok && b > 0 {
		return b
	}
	return mode.Budget()
}

// Run executes one consensus check in the given mode and returns the report.
// Individual checker failures never fail the run; only resolver
// misconfiguration can return an error here, and that is guarded at
// construction time.
func (a *Aggregator) Run(ctx context.Context, mode checker.Mode) (*Report, error) {
	log := zap.L().With(
		zap.String("component", "consensus.aggregator"),
		zap.String("mode", string(mode)),
	)

	checkers := a.registry.ForMode(mode)
	results := make([]checker.Result, len(checkers))

	runCtx, cancel := context.WithTimeout(ctx, a.budget(mode))
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	for i, c := range checkers {
		if !c.Configured() {
			results[i] = checker.ConfigGap(c.Name(), fmt.Sprintf("%s checker not configured", c.Name()))
			log.Info("checker skipped over configuration gap", zap.String("source", string(c.Name())))
			continue
		}
		g.Go(func() error {
			results[i] = probe(gctx, c)
			return nil
		})
	}
	// Probes never return errors; Wait only synchronizes.
	_ = g.Wait()

	var attempted, succeeded, skipped int
	for _, res := range results {
		if res.Skipped {
			skipped++
			continue
		}
		attempted++
		if res.Available {
			succeeded++
		}
		if res.Reason == checker.ReasonProbeTimeout {
			log.Warn("checker timed out", zap.String("source", string(res.Source)))
		}
	}

	rep := &Report{
		ID:        uuid.New().String(),
		Timestamp: a.now().UTC(),
		Mode:      mode,
		Results:   results,
		Attempted: attempted,
		Succeeded: succeeded,
		Skipped:   skipped,
	}

	if attempted == 0 {
		rep.ConsensusScore = 0
		rep.Status = StatusBlocked
		rep.Reason = ReasonNoCheckersConfigured
		log.Warn("no checkers attempted", zap.Int("skipped", skipped))
		return rep, nil
	}

	// Integer division floors, per the scoring contract.
	rep.ConsensusScore = 100 * succeeded / attempted
	rep.Status = StatusFromScore(rep.ConsensusScore)

	conflicts, err := Resolve(results, a.hierarchy)
	if err != nil {
		return nil, eris.Wrap(err, "consensus: resolve conflicts")
	}
	rep.Conflicts = conflicts

	if a.cache != nil {
		for _, res := range results {
			if err := a.cache.Save(res); err != nil {
				log.Warn("probe cache write failed",
					zap.String("source", string(res.Source)),
					zap.Error(err),
				)
			}
		}
	}

	log.Info("consensus run complete",
		zap.Int("attempted", attempted),
		zap.Int("succeeded", succeeded),
		zap.Int("skipped", skipped),
		zap.Int("score", rep.ConsensusScore),
		zap.String("status", string(rep.Status)),
		zap.Int("conflicts", len(conflicts)),
	)
	return rep, nil
}

// probe runs one checker with a watchdog. The checker contract says Check is
// total, but the aggregator still contains panics and hung probes here so a
// misbehaving checker can never take down or stall the run.
func probe(ctx context.Context, c checker.Checker) checker.Result {
	start := time.Now()
	done := make(chan checker.Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- checker.Failed(c.Name(), fmt.Sprintf("probe panic: %v", r), time.Since(start))
			}
		}()
		done <- c.Check(ctx)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return checker.TimedOut(c.Name(), time.Since(start))
	}
}
