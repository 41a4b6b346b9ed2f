package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Open database connection
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, dbError("NewSQLiteStore", "failed to open database", ErrConnectionFailed)
	}
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, dbError("NewSQLiteStore", "failed to ping database", ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, dbError("NewSQLiteStore", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	return finishRun(ctx, s.db, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	return listRuns(ctx, s.db, opts)
}

func (s *SQLiteStore) AppendOutcome(ctx context.Context, rec *OutcomeRecord) error {
	return appendOutcome(ctx, s.db, rec)
}

func (s *SQLiteStore) ListOutcomes(ctx context.Context, runID string) ([]OutcomeRecord, error) {
	return listOutcomes(ctx, s.db, runID)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return dbError("WithTx", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return dbError("WithTx", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return dbError("WithTx", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	return createRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	return finishRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	return getRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	return listRuns(ctx, s.tx, opts)
}

func (s *txSQLiteStore) AppendOutcome(ctx context.Context, rec *OutcomeRecord) error {
	return appendOutcome(ctx, s.tx, rec)
}

func (s *txSQLiteStore) ListOutcomes(ctx context.Context, runID string) ([]OutcomeRecord, error) {
	return listOutcomes(ctx, s.tx, runID)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Run Implementation
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID           string  `db:"id"`
	Source       string  `db:"source"`
	SourceMode   string  `db:"source_mode"`
	TargetID     string  `db:"target_id"`
	TargetName   string  `db:"target_name"`
	TypeFilter   string  `db:"type_filter"`
	DryRun       bool    `db:"dry_run"`
	Status       string  `db:"status"`
	Stage        string  `db:"stage"`
	ErrorMessage string  `db:"error_message"`
	Total        int     `db:"total"`
	Succeeded    int     `db:"succeeded"`
	Failed       int     `db:"failed"`
	Skipped      int     `db:"skipped"`
	StartedAt    string  `db:"started_at"`
	FinishedAt   *string `db:"finished_at"`
}

func createRun(ctx context.Context, exec executor, run *Run) error {
	if run.ID == "" {
		return runError("CreateRun", "", "run id is required", ErrInvalidData)
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.TypeFilter == "" {
		run.TypeFilter = "all"
	}

	query := `
		INSERT INTO runs (
			id, source, source_mode, target_id, target_name, type_filter, dry_run,
			status, stage, error_message, total, succeeded, failed, skipped,
			started_at, finished_at
		) VALUES (
			:id, :source, :source_mode, :target_id, :target_name, :type_filter, :dry_run,
			:status, :stage, :error_message, :total, :succeeded, :failed, :skipped,
			:started_at, :finished_at
		)`

	_, err := exec.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return runError("CreateRun", run.ID, "run id already recorded", ErrDuplicateID)
		}
		return runError("CreateRun", run.ID, err.Error(), err)
	}

	return nil
}

func finishRun(ctx context.Context, exec executor, run *Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	query := `
		UPDATE runs SET
			target_id = :target_id,
			target_name = :target_name,
			status = :status,
			stage = :stage,
			error_message = :error_message,
			total = :total,
			succeeded = :succeeded,
			failed = :failed,
			skipped = :skipped,
			finished_at = :finished_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		return runError("FinishRun", run.ID, err.Error(), err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return runError("FinishRun", run.ID, "run not found", ErrNotFound)
	}

	return nil
}

func getRun(ctx context.Context, exec executor, id string) (*Run, error) {
	query := `SELECT * FROM runs WHERE id = ?`

	var row runRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, runError("GetRun", id, "run not found", ErrNotFound)
		}
		return nil, runError("GetRun", id, err.Error(), err)
	}

	return rowToRun(&row), nil
}

func listRuns(ctx context.Context, exec executor, opts ListOptions) ([]Run, error) {
	opts = opts.Normalize()

	query := `SELECT * FROM runs`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []runRow
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, dbError("ListRuns", err.Error(), err)
	}

	runs := make([]Run, 0, len(rows))
	for i := range rows {
		runs = append(runs, *rowToRun(&rows[i]))
	}
	return runs, nil
}

func runToRow(run *Run) map[string]any {
	var finishedAt *string
	if run.FinishedAt != nil {
		s := run.FinishedAt.UTC().Format(time.RFC3339Nano)
		finishedAt = &s
	}

	return map[string]any{
		"id":            run.ID,
		"source":        run.Source,
		"source_mode":   run.SourceMode,
		"target_id":     run.TargetID,
		"target_name":   run.TargetName,
		"type_filter":   run.TypeFilter,
		"dry_run":       run.DryRun,
		"status":        string(run.Status),
		"stage":         run.Stage,
		"error_message": run.Error,
		"total":         run.Total,
		"succeeded":     run.Succeeded,
		"failed":        run.Failed,
		"skipped":       run.Skipped,
		"started_at":    run.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at":   finishedAt,
	}
}

func rowToRun(row *runRow) *Run {
	startedAt, _ := time.Parse(time.RFC3339Nano, row.StartedAt)

	run := &Run{
		ID:         row.ID,
		Source:     row.Source,
		SourceMode: row.SourceMode,
		TargetID:   row.TargetID,
		TargetName: row.TargetName,
		TypeFilter: row.TypeFilter,
		DryRun:     row.DryRun,
		Status:     RunStatus(row.Status),
		Stage:      row.Stage,
		Error:      row.ErrorMessage,
		Total:      row.Total,
		Succeeded:  row.Succeeded,
		Failed:     row.Failed,
		Skipped:    row.Skipped,
		StartedAt:  startedAt,
	}
	if row.FinishedAt != nil {
		t, _ := time.Parse(time.RFC3339Nano, *row.FinishedAt)
		run.FinishedAt = &t
	}
	return run
}

// =============================================================================
// Outcome Implementation
// =============================================================================

// outcomeRow represents an outcome row in the database.
type outcomeRow struct {
	RunID      string `db:"run_id"`
	Seq        int    `db:"seq"`
	ItemName   string `db:"item_name"`
	ItemType   string `db:"item_type"`
	Origin     string `db:"origin"`
	Status     string `db:"status"`
	Detail     string `db:"detail"`
	RecordedAt string `db:"recorded_at"`
}

func appendOutcome(ctx context.Context, exec executor, rec *OutcomeRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO outcomes (
			run_id, seq, item_name, item_type, origin, status, detail, recorded_at
		) VALUES (
			:run_id, :seq, :item_name, :item_type, :origin, :status, :detail, :recorded_at
		)`

	row := outcomeRow{
		RunID:      rec.RunID,
		Seq:        rec.Seq,
		ItemName:   rec.ItemName,
		ItemType:   rec.ItemType,
		Origin:     rec.Origin,
		Status:     rec.Status,
		Detail:     rec.Detail,
		RecordedAt: rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return outcomeError("AppendOutcome", rec, "outcome already recorded", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return outcomeError("AppendOutcome", rec, "run does not exist", ErrForeignKey)
		}
		return outcomeError("AppendOutcome", rec, err.Error(), err)
	}

	return nil
}

func listOutcomes(ctx context.Context, exec executor, runID string) ([]OutcomeRecord, error) {
	query := `SELECT * FROM outcomes WHERE run_id = ? ORDER BY seq`

	var rows []outcomeRow
	if err := exec.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, runError("ListOutcomes", runID, err.Error(), err)
	}

	records := make([]OutcomeRecord, 0, len(rows))
	for _, row := range rows {
		recordedAt, _ := time.Parse(time.RFC3339Nano, row.RecordedAt)
		records = append(records, OutcomeRecord{
			RunID:      row.RunID,
			Seq:        row.Seq,
			ItemName:   row.ItemName,
			ItemType:   row.ItemType,
			Origin:     row.Origin,
			Status:     row.Status,
			Detail:     row.Detail,
			RecordedAt: recordedAt,
		})
	}
	return records, nil
}
