//go:build acceptance

package pgxstore_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/ballotaudit/auditor"
	"github.com/screwyprof/ballotaudit/auditor/store/pgxstore"
	"github.com/screwyprof/ballotaudit/migrator/migratortest"
)

// TestStoreAcceptanceBehavior tests report archiving against a real PostgreSQL
func TestStoreAcceptanceBehavior(t *testing.T) {
	t.Parallel()

	t.Run("it stores a run with every line in report order", func(t *testing.T) {
		t.Parallel()

		// Arrange
		pool := migratortest.CreateTestDatabase(t, "../../../migrations")
		store, closer := pgxstore.New(pool)
		defer closer()

		report := reportWithLines()

		// Act
		runID, err := store.SaveReport(t.Context(), report, time.Now())

		// Assert
		require.NoError(t, err)
		assertRunStored(t, pool, runID, report)
		assertLinesStored(t, pool, runID, report)
	})

	t.Run("it stores an empty report as a run without lines", func(t *testing.T) {
		t.Parallel()

		// Arrange
		pool := migratortest.CreateTestDatabase(t, "../../../migrations")
		store, closer := pgxstore.New(pool)
		defer closer()

		// Act
		_, err := store.SaveReport(t.Context(), &auditor.Report{FromBlock: 1, ToBlock: 2}, time.Now())

		// Assert
		require.NoError(t, err)
		count, err := store.RunCount(t.Context())
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func reportWithLines() *auditor.Report {
	mining := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	return &auditor.Report{
		Ballots:   3,
		FromBlock: 10,
		ToBlock:   500,
		Lines: []auditor.ReportLine{
			{Voter: common.HexToAddress("0x0b"), Eligible: 3, Voted: 1},
			{Voter: common.HexToAddress("0x0a"), MiningKey: &mining, Name: "Alice Smith", Eligible: 3, Voted: 3},
		},
	}
}

func assertRunStored(t *testing.T, pool *pgxpool.Pool, runID int64, report *auditor.Report) {
	t.Helper()

	var fromBlock, toBlock, ballots int64
	err := pool.QueryRow(t.Context(),
		"SELECT from_block, to_block, ballots FROM audit_runs WHERE id = $1", runID,
	).Scan(&fromBlock, &toBlock, &ballots)
	require.NoError(t, err)

	assert.Equal(t, int64(report.FromBlock), fromBlock)
	assert.Equal(t, int64(report.ToBlock), toBlock)
	assert.Equal(t, int64(report.Ballots), ballots)
}

func assertLinesStored(t *testing.T, pool *pgxpool.Pool, runID int64, report *auditor.Report) {
	t.Helper()

	rows, err := pool.Query(t.Context(),
		"SELECT voting_key, name FROM audit_report_lines WHERE run_id = $1 ORDER BY position", runID)
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	var names []*string
	for rows.Next() {
		var key string
		var name *string
		require.NoError(t, rows.Scan(&key, &name))
		got = append(got, key)
		names = append(names, name)
	}
	require.NoError(t, rows.Err())

	require.Len(t, got, len(report.Lines))
	for i, l := range report.Lines {
		assert.Equal(t, l.Voter.Hex(), got[i])
	}
	assert.Nil(t, names[0])
	require.NotNil(t, names[1])
	assert.Equal(t, "Alice Smith", *names[1])
}
