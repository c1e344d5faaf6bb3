package dbrow

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screwyprof/ballotaudit/auditor"
)

// ReportLineColumns are the columns copied into audit_report_lines, in row order
var ReportLineColumns = []string{
	"run_id", "position", "voting_key", "mining_key", "name", "ballots_eligible", "ballots_voted",
}

// Run represents an audit run as stored in the database
type Run struct {
	ID          int64     `db:"id"`
	FromBlock   int64     `db:"from_block"`
	ToBlock     int64     `db:"to_block"`
	Ballots     int64     `db:"ballots"`
	CompletedAt time.Time `db:"completed_at"`
	// created_at is handled by database DEFAULT CURRENT_TIMESTAMP
}

// ReportLine represents one voter of a run as stored in the database
type ReportLine struct {
	RunID           int64   `db:"run_id"`
	Position        int32   `db:"position"`
	VotingKey       string  `db:"voting_key"`
	MiningKey       *string `db:"mining_key"`
	Name            *string `db:"name"`
	BallotsEligible int64   `db:"ballots_eligible"`
	BallotsVoted    int64   `db:"ballots_voted"`
}

// ReportToRun converts report metadata into a run record
func ReportToRun(r *auditor.Report, completedAt time.Time) Run {
	return Run{
		FromBlock:   int64(r.FromBlock),
		ToBlock:     int64(r.ToBlock),
		Ballots:     int64(r.Ballots),
		CompletedAt: completedAt.UTC(),
	}
}

// ReportLinesToRows converts report lines directly to [][]any for pgx.CopyFromRows.
// Position keeps the report order; unknown keys and names become NULL.
func ReportLinesToRows(runID int64, lines []auditor.ReportLine) [][]any {
	rows := make([][]any, len(lines))

	for i, l := range lines {
		var mining, name *string
		if l.MiningKey != nil {
			hex := l.MiningKey.Hex()
			mining = &hex
		}
		if l.Name != "" {
			n := l.Name
			name = &n
		}

		rows[i] = []any{
			runID,
			int32(i),
			l.Voter.Hex(),
			mining,
			name,
			int64(l.Eligible),
			int64(l.Voted),
		}
	}

	return rows
}

// RowsToReport rebuilds an archived report. Lines must be in position order.
func RowsToReport(run Run, lines []ReportLine) *auditor.Report {
	report := &auditor.Report{
		Lines:     make([]auditor.ReportLine, len(lines)),
		Ballots:   int(run.Ballots),
		FromBlock: uint64(run.FromBlock),
		ToBlock:   uint64(run.ToBlock),
	}

	for i, l := range lines {
		line := auditor.ReportLine{
			Voter:    common.HexToAddress(l.VotingKey),
			Eligible: uint64(l.BallotsEligible),
			Voted:    uint64(l.BallotsVoted),
		}
		if l.MiningKey != nil {
			mining := common.HexToAddress(*l.MiningKey)
			line.MiningKey = &mining
		}
		if l.Name != nil {
			line.Name = *l.Name
		}
		report.Lines[i] = line
	}

	return report
}
