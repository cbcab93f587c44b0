package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xhhuango/json"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore implements RunStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the run journal at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// batch pricing records from several goroutines
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		command TEXT NOT NULL,
		method TEXT NOT NULL,
		kind TEXT NOT NULL,
		strike REAL NOT NULL,
		maturity REAL NOT NULL,
		exercise TEXT NOT NULL,
		barrier REAL DEFAULT 0,
		rebate REAL DEFAULT 0,
		spot REAL NOT NULL,
		rate REAL NOT NULL,
		dividend_yield REAL NOT NULL,
		volatility REAL NOT NULL,
		price REAL NOT NULL,
		standard_error REAL DEFAULT 0,
		paths INTEGER DEFAULT 0,
		greeks TEXT,
		elapsed INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_method ON runs(method);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no id")
	}
	greeks, err := json.Marshal(run.Greeks)
	if err != nil {
		return fmt.Errorf("failed to encode greeks: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, timestamp, command, method, kind, strike, maturity, exercise, barrier, rebate, spot, rate, dividend_yield, volatility, price, standard_error, paths, greeks, elapsed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Timestamp, run.Command, run.Method, run.Kind, run.Strike, run.Maturity, run.Exercise, run.Barrier, run.Rebate,
		run.Spot, run.Rate, run.DividendYield, run.Volatility, run.Price, run.StandardError, run.Paths, string(greeks), run.Elapsed.Nanoseconds())
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const runColumns = "id, timestamp, command, method, kind, strike, maturity, exercise, barrier, rebate, spot, rate, dividend_yield, volatility, price, standard_error, paths, COALESCE(greeks, 'null'), elapsed"

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var greeksJSON string
	var elapsedNs int64

	if err := row.Scan(&r.ID, &r.Timestamp, &r.Command, &r.Method, &r.Kind, &r.Strike, &r.Maturity, &r.Exercise, &r.Barrier, &r.Rebate,
		&r.Spot, &r.Rate, &r.DividendYield, &r.Volatility, &r.Price, &r.StandardError, &r.Paths, &greeksJSON, &elapsedNs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(greeksJSON), &r.Greeks); err != nil {
		return nil, fmt.Errorf("failed to decode greeks of run %s: %w", r.ID, err)
	}
	r.Elapsed = time.Duration(elapsedNs)
	return &r, nil
}

// GetRun retrieves a single run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns matching runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE 1=1"
	args := []interface{}{}

	if filter.Command != "" {
		query += " AND command = ?"
		args = append(args, filter.Command)
	}
	if filter.Method != "" {
		query += " AND method = ?"
		args = append(args, filter.Method)
	}
	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}
