package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/reality-cli/internal/consensus"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS history (
	id         TEXT PRIMARY KEY,
	ts         DATETIME NOT NULL,
	mode       TEXT NOT NULL,
	score      INTEGER NOT NULL,
	status     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS baselines (
	day        TEXT PRIMARY KEY,
	report     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_history_ts ON history(ts);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, rep *consensus.Report) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (id, ts, mode, score, status) VALUES (?, ?, ?, ?, ?)`,
		rep.ID, rep.Timestamp, string(rep.Mode), rep.ConsensusScore, string(rep.Status),
	)
	return eris.Wrap(err, "sqlite: append history")
}

func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, mode, score, status FROM history ORDER BY ts DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list history")
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Mode, &e.ConsensusScore, &e.Status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate history")
}

func (s *SQLiteStore) SaveBaseline(ctx context.Context, day string, rep *consensus.Report) (bool, error) {
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal baseline report")
	}

	// INSERT OR IGNORE keeps the first report of the day immutable.
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO baselines (day, report) VALUES (?, ?)`,
		day, string(reportJSON),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: save baseline %s", day)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: baseline rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetBaseline(ctx context.Context, day string) (*consensus.Report, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM baselines WHERE day = ?`, day,
	).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get baseline %s", day)
	}

	var rep consensus.Report
	if err := json.Unmarshal([]byte(reportJSON), &rep); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal baseline %s", day)
	}
	return &rep, nil
}
