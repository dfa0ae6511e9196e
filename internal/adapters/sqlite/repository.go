package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/shopspring/decimal"

	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
)

// Repository implements the ports.RunJournal interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/executions.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Workflow runs write concurrently; a single connection serialises them.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Debug(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS workflow_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		mode TEXT NOT NULL,
		external_ref TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		failed_at TEXT NOT NULL DEFAULT '',
		error_code TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		close_order_id INTEGER NOT NULL DEFAULT 0,
		entry_order_id INTEGER NOT NULL DEFAULT 0,
		protective_order_id INTEGER NOT NULL DEFAULT 0,
		closed_quantity TEXT NOT NULL DEFAULT '0',
		entry_quantity TEXT NOT NULL DEFAULT '0',
		fill_price TEXT NOT NULL DEFAULT '0',
		protective_price TEXT NOT NULL DEFAULT '0',
		protective_attempts INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);
	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_workflow_runs_symbol_started ON workflow_runs (symbol, started_at);
	CREATE INDEX IF NOT EXISTS idx_workflow_runs_state ON workflow_runs (state);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- RunJournal Implementation ---

// Record saves a finished run and returns its assigned ID.
func (r *Repository) Record(ctx context.Context, run *domain.RunRecord) (int64, error) {
	const query = `
	INSERT INTO workflow_runs (run_id, symbol, side, mode, external_ref, state, failed_at, error_code,
	                           error_message, close_order_id, entry_order_id, protective_order_id,
	                           closed_quantity, entry_quantity, fill_price, protective_price,
	                           protective_attempts, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		run.RunID, run.Symbol, run.Side, run.Mode, run.ExternalRef, run.State, run.FailedAt, run.ErrorCode,
		run.ErrorMessage, run.CloseOrderID, run.EntryOrderID, run.ProtectiveOrderID,
		run.ClosedQuantity.String(), run.EntryQuantity.String(), run.FillPrice.String(), run.ProtectivePrice.String(),
		run.ProtectiveAttempts, run.StartedAt, run.FinishedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run %s for symbol %s: %w: %w", run.RunID, run.Symbol, ports.ErrQueryFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for run %s: %w", run.RunID, err)
	}
	run.ID = id // Update the domain object with the ID
	r.logger.Debug(ctx, "Run journaled", map[string]interface{}{"id": id, "runID": run.RunID, "state": run.State})
	return id, nil
}

// FindByRunID retrieves a run by its UUID. Returns nil, nil if not found.
func (r *Repository) FindByRunID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, selectRuns+` WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Run not found", map[string]interface{}{"runID": runID})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query run %s: %w: %w", runID, ports.ErrQueryFailed, err)
	}
	return run, nil
}

// FindRecent retrieves the most recent runs, newest first.
func (r *Repository) FindRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	return r.queryRuns(ctx, "FindRecent", selectRuns+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
}

// FindBySymbol retrieves the most recent runs for a symbol, newest first.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.RunRecord, error) {
	return r.queryRuns(ctx, "FindBySymbol", selectRuns+` WHERE symbol = ? ORDER BY started_at DESC, id DESC LIMIT ?`, symbol, limit)
}

// CountByState counts runs that ended in the given state.
func (r *Repository) CountByState(ctx context.Context, state domain.WorkflowState) (int, error) {
	const query = `SELECT COUNT(*) FROM workflow_runs WHERE state = ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, state).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs in state %s: %w: %w", state, ports.ErrQueryFailed, err)
	}
	return count, nil
}

const selectRuns = `
	SELECT id, run_id, symbol, side, mode, external_ref, state, failed_at, error_code, error_message,
	       close_order_id, entry_order_id, protective_order_id, closed_quantity, entry_quantity,
	       fill_price, protective_price, protective_attempts, started_at, finished_at
	FROM workflow_runs`

func (r *Repository) queryRuns(ctx context.Context, op, query string, args ...interface{}) ([]*domain.RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	runs := make([]*domain.RunRecord, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run during %s: %w", op, err)
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRun scans a row into a domain.RunRecord struct.
func scanRun(s scanner) (*domain.RunRecord, error) {
	run := &domain.RunRecord{}
	var side, mode, state, failedAt string
	var closedQty, entryQty, fillPrice, protectivePrice string
	err := s.Scan(
		&run.ID, &run.RunID, &run.Symbol, &side, &mode, &run.ExternalRef, &state, &failedAt,
		&run.ErrorCode, &run.ErrorMessage, &run.CloseOrderID, &run.EntryOrderID, &run.ProtectiveOrderID,
		&closedQty, &entryQty, &fillPrice, &protectivePrice, &run.ProtectiveAttempts,
		&run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	run.Side = domain.OrderSide(side)
	run.Mode = domain.PositionMode(mode)
	run.State = domain.WorkflowState(state)
	run.FailedAt = domain.WorkflowState(failedAt)

	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{closedQty, &run.ClosedQuantity},
		{entryQty, &run.EntryQuantity},
		{fillPrice, &run.FillPrice},
		{protectivePrice, &run.ProtectivePrice},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt decimal %q in run %s: %w", f.raw, run.RunID, err)
		}
		*f.dst = d
	}
	return run, nil
}
