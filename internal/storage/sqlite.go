package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	input_rows INTEGER NOT NULL,
	normalized INTEGER NOT NULL,
	dropped_missing INTEGER NOT NULL,
	dropped_unparsable INTEGER NOT NULL,
	vacancy_matched INTEGER NOT NULL,
	scored INTEGER NOT NULL,
	stages TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

CREATE TABLE IF NOT EXISTS run_funds (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	fund_id TEXT NOT NULL,
	sector TEXT NOT NULL,
	score INTEGER,
	data TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// fundData is the part of a Fund kept as JSON.
type fundData struct {
	YieldRank       *float64           `json:"yield_rank,omitempty"`
	VolatilityRank  *float64           `json:"volatility_rank,omitempty"`
	ValuationSignal *float64           `json:"valuation_signal,omitempty"`
	Values          map[string]float64 `json:"values,omitempty"`
	Extra           map[string]string  `json:"extra,omitempty"`
}

// Save stores run and its funds in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run id is required")
	}
	stages, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, duration_ns, input_rows, normalized,
			dropped_missing, dropped_unparsable, vacancy_matched, scored, stages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), int64(run.Duration), run.InputRows, run.Normalized,
		run.DroppedMissing, run.DroppedUnparsable, run.VacancyMatched, run.Scored, string(stages))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_funds (run_id, position, fund_id, sector, score, data)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare fund insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range run.Funds {
		data, err := json.Marshal(fundData{
			YieldRank:       f.YieldRank,
			VolatilityRank:  f.VolatilityRank,
			ValuationSignal: f.ValuationSignal,
			Values:          f.Values,
			Extra:           f.Extra,
		})
		if err != nil {
			return fmt.Errorf("marshal fund %s: %w", f.ID, err)
		}
		var score sql.NullInt64
		if f.Score != nil {
			score = sql.NullInt64{Int64: int64(*f.Score), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, f.Position, f.ID, f.Sector, score, string(data)); err != nil {
			return fmt.Errorf("insert fund %s: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, created_at, duration_ns, input_rows, normalized,
	dropped_missing, dropped_unparsable, vacancy_matched, scored, stages`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run       Run
		createdAt int64
		duration  int64
		stages    string
	)
	err := row.Scan(&run.ID, &createdAt, &duration, &run.InputRows, &run.Normalized,
		&run.DroppedMissing, &run.DroppedUnparsable, &run.VacancyMatched, &run.Scored, &stages)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	run.Duration = time.Duration(duration)
	if err := json.Unmarshal([]byte(stages), &run.Stages); err != nil {
		return nil, fmt.Errorf("unmarshal stages of run %s: %w", run.ID, err)
	}
	return &run, nil
}

// Get loads the run with id and its funds.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return s.withFunds(ctx, row)
}

// Latest loads the most recent run and its funds.
func (s *SQLiteStore) Latest(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	return s.withFunds(ctx, row)
}

func (s *SQLiteStore) withFunds(ctx context.Context, row *sql.Row) (*Run, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT position, fund_id, sector, score, data
		FROM run_funds WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("query funds of run %s: %w", run.ID, err)
	}
	defer rows.Close()

	run.Funds = []Fund{}
	for rows.Next() {
		var (
			f     Fund
			score sql.NullInt64
			data  string
		)
		if err := rows.Scan(&f.Position, &f.ID, &f.Sector, &score, &data); err != nil {
			return nil, fmt.Errorf("scan fund: %w", err)
		}
		if score.Valid {
			v := int(score.Int64)
			f.Score = &v
		}
		var d fundData
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, fmt.Errorf("unmarshal fund %s: %w", f.ID, err)
		}
		f.YieldRank, f.VolatilityRank, f.ValuationSignal = d.YieldRank, d.VolatilityRank, d.ValuationSignal
		f.Values, f.Extra = d.Values, d.Extra
		run.Funds = append(run.Funds, f)
	}
	return run, rows.Err()
}

// Runs lists at most limit runs, newest first. A non-positive limit lists all.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
