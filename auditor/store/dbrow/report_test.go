package dbrow_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/ballotaudit/auditor"
	"github.com/screwyprof/ballotaudit/auditor/store/dbrow"
)

func TestReportLinesToRows(t *testing.T) {
	t.Parallel()

	t.Run("it keeps report order and maps unknown identities to NULL", func(t *testing.T) {
		t.Parallel()

		// Arrange
		voterA := common.HexToAddress("0x000000000000000000000000000000000000000a")
		voterB := common.HexToAddress("0x000000000000000000000000000000000000000b")
		miningA := common.HexToAddress("0x00000000000000000000000000000000000000a1")
		lines := []auditor.ReportLine{
			{Voter: voterB, Eligible: 3, Voted: 0},
			{Voter: voterA, MiningKey: &miningA, Name: "Alice Smith", Eligible: 3, Voted: 3},
		}

		// Act
		rows := dbrow.ReportLinesToRows(42, lines)

		// Assert
		require.Len(t, rows, 2)
		for _, row := range rows {
			assert.Len(t, row, len(dbrow.ReportLineColumns))
		}
		assert.Equal(t, []any{int64(42), int32(0), voterB.Hex(), (*string)(nil), (*string)(nil), int64(3), int64(0)}, rows[0])

		mining, name := miningA.Hex(), "Alice Smith"
		assert.Equal(t, []any{int64(42), int32(1), voterA.Hex(), &mining, &name, int64(3), int64(3)}, rows[1])
	})
}

func TestReportToRun(t *testing.T) {
	t.Parallel()

	// Arrange
	completed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	report := &auditor.Report{Ballots: 7, FromBlock: 100, ToBlock: 2000}

	// Act
	run := dbrow.ReportToRun(report, completed)

	// Assert
	assert.Equal(t, int64(100), run.FromBlock)
	assert.Equal(t, int64(2000), run.ToBlock)
	assert.Equal(t, int64(7), run.Ballots)
	assert.Equal(t, time.UTC, run.CompletedAt.Location())
	assert.True(t, completed.Equal(run.CompletedAt))
}

func TestRowsToReport(t *testing.T) {
	t.Parallel()

	t.Run("it restores the lines written by ReportLinesToRows", func(t *testing.T) {
		t.Parallel()

		// Arrange
		voterA := common.HexToAddress("0x000000000000000000000000000000000000000a")
		voterB := common.HexToAddress("0x000000000000000000000000000000000000000b")
		miningA := common.HexToAddress("0x00000000000000000000000000000000000000a1")
		mining, name := miningA.Hex(), "Alice Smith"
		run := dbrow.Run{ID: 7, FromBlock: 10, ToBlock: 500, Ballots: 3}
		rows := []dbrow.ReportLine{
			{RunID: 7, Position: 0, VotingKey: voterB.Hex(), BallotsEligible: 3, BallotsVoted: 0},
			{RunID: 7, Position: 1, VotingKey: voterA.Hex(), MiningKey: &mining, Name: &name, BallotsEligible: 3, BallotsVoted: 3},
		}

		// Act
		report := dbrow.RowsToReport(run, rows)

		// Assert
		assert.Equal(t, &auditor.Report{
			Ballots:   3,
			FromBlock: 10,
			ToBlock:   500,
			Lines: []auditor.ReportLine{
				{Voter: voterB, Eligible: 3, Voted: 0},
				{Voter: voterA, MiningKey: &miningA, Name: "Alice Smith", Eligible: 3, Voted: 3},
			},
		}, report)
	})
}
