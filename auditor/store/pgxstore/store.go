package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/ballotaudit/auditor"
	"github.com/screwyprof/ballotaudit/auditor/store/dbrow"
)

// Sentinel errors for store operations
var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrInsertFailed      = errors.New("insert operation failed")
	ErrCopyFailed        = errors.New("bulk copy operation failed")
	ErrQueryFailed       = errors.New("query failed")
)

// Store archives finished audit reports in PostgreSQL
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// SaveReport stores the run and all of its lines in one transaction and
// returns the id of the run
func (s *Store) SaveReport(ctx context.Context, report *auditor.Report, completedAt time.Time) (int64, error) {
	run := dbrow.ReportToRun(report, completedAt)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // No-op if commit succeeds

	var runID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO audit_runs (from_block, to_block, ballots, completed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, run.FromBlock, run.ToBlock, run.Ballots, run.CompletedAt).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}

	if len(report.Lines) > 0 {
		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"audit_report_lines"},
			dbrow.ReportLineColumns,
			pgx.CopyFromRows(dbrow.ReportLinesToRows(runID, report.Lines)),
		)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrCopyFailed, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	return runID, nil
}

// RunCount returns the number of archived runs
func (s *Store) RunCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return n, nil
}
