package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/ballotaudit/auditor/store/dbrow"
	"github.com/screwyprof/ballotaudit/web/archive"
)

// Sentinel errors for store operations
var (
	ErrQueryFailed = errors.New("archive query failed")
)

// ArchiveFinder implements archive querying using pgx
type ArchiveFinder struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL archive finder with an existing connection pool
// Returns the finder and a closer function
func New(pool *pgxpool.Pool) (*ArchiveFinder, func()) {
	finder := &ArchiveFinder{pool: pool}
	closer := func() {
		pool.Close()
	}
	return finder, closer
}

// FindRuns lists archived runs, most recent first.
// Uses LIMIT n+1 technique for efficient pagination without separate count query
func (f *ArchiveFinder) FindRuns(ctx context.Context, criteria archive.RunsCriteria) (*archive.RunsPage, error) {
	query, args := NewRunsQuery().ForCriteria(criteria).Build()

	rows, err := f.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	dbRuns, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.Run])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	runs := make([]archive.Run, 0, len(dbRuns))
	for _, r := range dbRuns {
		runs = append(runs, toRun(r))
	}

	// Determine if there are more pages using LIMIT n+1 technique
	hasMore := uint64(len(runs)) > criteria.ItemsPerPage()
	if hasMore {
		runs = runs[:criteria.ItemsPerPage()]
	}

	return &archive.RunsPage{
		Runs:    runs,
		HasMore: hasMore,
		Number:  criteria.Page,
		Size:    criteria.Size,
	}, nil
}

// FindReport loads one run and every line of its report
func (f *ArchiveFinder) FindReport(ctx context.Context, runID int64) (*archive.RunReport, error) {
	rows, err := f.pool.Query(ctx, runQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	run, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[dbrow.Run])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", archive.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	rows, err = f.pool.Query(ctx, reportLinesQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.ReportLine])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	return &archive.RunReport{
		Run:    toRun(run),
		Report: dbrow.RowsToReport(run, lines),
	}, nil
}

func toRun(r dbrow.Run) archive.Run {
	return archive.Run{
		ID:          r.ID,
		FromBlock:   uint64(r.FromBlock),
		ToBlock:     uint64(r.ToBlock),
		Ballots:     int(r.Ballots),
		CompletedAt: r.CompletedAt,
	}
}
