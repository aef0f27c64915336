package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reality-cli/internal/consensus"
)

// Pool abstracts the pgx pool operations the store needs, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS history (
	id     TEXT PRIMARY KEY,
	ts     TIMESTAMPTZ NOT NULL,
	mode   TEXT NOT NULL,
	score  INTEGER NOT NULL,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS baselines (
	day        TEXT PRIMARY KEY,
	report     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_history_ts ON history(ts);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, rep *consensus.Report) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO history (id, ts, mode, score, status) VALUES ($1, $2, $3, $4, $5)`,
		rep.ID, rep.Timestamp, string(rep.Mode), rep.ConsensusScore, string(rep.Status),
	)
	return eris.Wrap(err, "postgres: append history")
}

func (s *PostgresStore) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, ts, mode, score, status FROM history ORDER BY ts DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list history")
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Mode, &e.ConsensusScore, &e.Status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan history entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate history")
}

func (s *PostgresStore) SaveBaseline(ctx context.Context, day string, rep *consensus.Report) (bool, error) {
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal baseline report")
	}

	// ON CONFLICT DO NOTHING keeps the first report of the day immutable.
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO baselines (day, report) VALUES ($1, $2) ON CONFLICT (day) DO NOTHING`,
		day, reportJSON,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: save baseline %s", day)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetBaseline(ctx context.Context, day string) (*consensus.Report, error) {
	var reportJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM baselines WHERE day = $1`, day,
	).Scan(&reportJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get baseline %s", day)
	}

	var rep consensus.Report
	if err := json.Unmarshal(reportJSON, &rep); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal baseline %s", day)
	}
	return &rep, nil
}
