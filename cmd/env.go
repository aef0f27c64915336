package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reality-cli/internal/checker"
	"github.com/sells-group/reality-cli/internal/consensus"
	"github.com/sells-group/reality-cli/internal/report"
	"github.com/sells-group/reality-cli/internal/store"
	"github.com/sells-group/reality-cli/pkg/notion"
)

// env wires together everything a command needs: the checker registry, the
// aggregator, the history store, and the report emitter.
type env struct {
	Registry   *checker.Registry
	Aggregator *consensus.Aggregator
	Store      store.Store
	Emitter    *report.Emitter
}

func (e *env) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("store close failed", zap.Error(err))
		}
	}
}

// initEnv builds the runtime environment from loaded config. Unconfigured
// checkers are still registered; the aggregator reports them as skipped.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	reg := checker.NewRegistry()

	var notionClient notion.Client
	if cfg.TaskTracker.Token != "" {
		notionClient = notion.NewClient(cfg.TaskTracker.Token)
	}

	checkers := []checker.Checker{
		checker.NewFilesystem(cfg.Filesystem.Root, cfg.Filesystem.RequiredFiles),
		checker.NewVCS(cfg.VCS.RepoPath),
		checker.NewDatabase(cfg.Database.URL, cfg.Database.Key, cfg.Database.ExpectedTables),
		checker.NewDeployment(cfg.Deployment.URL, cfg.Deployment.ExpectStatus),
		checker.NewIntegration(cfg.Integration.WebhookURL),
		checker.NewTaskTracker(notionClient, cfg.TaskTracker.DatabaseID),
	}
	for _, c := range checkers {
		if err := reg.Register(c); err != nil {
			st.Close()
			return nil, eris.Wrap(err, "register checker")
		}
	}

	hierarchy, err := trustHierarchy()
	if err != nil {
		st.Close()
		return nil, err
	}

	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	cache := checker.NewCache(cfg.Cache.Dir, ttl)

	agg, err := consensus.NewAggregator(reg, hierarchy, consensus.WithCache(cache))
	if err != nil {
		st.Close()
		return nil, err
	}

	return &env{
		Registry:   reg,
		Aggregator: agg,
		Store:      st,
		Emitter:    report.NewEmitter(cfg.Report.Dir, st),
	}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.Path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// trustHierarchy builds the conflict-resolution ordering from config, falling
// back to the built-in default when none is configured.
func trustHierarchy() (consensus.TrustHierarchy, error) {
	if len(cfg.Trust.Hierarchy) == 0 {
		return consensus.DefaultHierarchy(), nil
	}
	h := make(consensus.TrustHierarchy, 0, len(cfg.Trust.Hierarchy))
	for _, name := range cfg.Trust.Hierarchy {
		src, err := checker.ParseSource(name)
		if err != nil {
			return nil, eris.Wrap(err, "trust hierarchy")
		}
		h = append(h, src)
	}
	return h, h.Validate()
}
