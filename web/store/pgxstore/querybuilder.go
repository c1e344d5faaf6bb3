package pgxstore

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screwyprof/ballotaudit/web/archive"
)

// SQL queries
const (
	baseRunsQuery = "SELECT r.id, r.from_block, r.to_block, r.ballots, r.completed_at FROM audit_runs r"

	runQuery = "SELECT id, from_block, to_block, ballots, completed_at FROM audit_runs WHERE id = $1"

	reportLinesQuery = `SELECT run_id, position, voting_key, mining_key, name, ballots_eligible, ballots_voted
		FROM audit_report_lines WHERE run_id = $1 ORDER BY position`
)

// RunsQueryBuilder provides a domain-specific language for building run listing queries
type RunsQueryBuilder struct {
	sql  string
	args []any
}

// NewRunsQuery creates a new run listing query builder
func NewRunsQuery() *RunsQueryBuilder {
	return &RunsQueryBuilder{
		sql: baseRunsQuery,
	}
}

// ForCriteria applies the run criteria to the query in one fluent call
func (q *RunsQueryBuilder) ForCriteria(criteria archive.RunsCriteria) *RunsQueryBuilder {
	return q.
		filterByVoter(criteria.Voter).
		orderByMostRecent().
		paginateWithDetection(criteria)
}

// filterByVoter keeps runs that include the voting key
func (q *RunsQueryBuilder) filterByVoter(voter *common.Address) *RunsQueryBuilder {
	if voter != nil {
		q.addWhereCondition(
			"EXISTS (SELECT 1 FROM audit_report_lines l WHERE l.run_id = r.id AND l.voting_key = $%d)",
			voter.Hex(),
		)
	}
	return q
}

// orderByMostRecent puts the latest completed run first; id breaks ties
func (q *RunsQueryBuilder) orderByMostRecent() *RunsQueryBuilder {
	q.sql += " ORDER BY r.completed_at DESC, r.id DESC"
	return q
}

// paginateWithDetection adds pagination with "has more" detection using LIMIT n+1
func (q *RunsQueryBuilder) paginateWithDetection(criteria archive.RunsCriteria) *RunsQueryBuilder {
	// Request one extra item to detect if there are more pages
	limit := criteria.ItemsPerPage() + 1
	offset := criteria.ItemsToSkip()

	q.addParameter("LIMIT $%d", limit)

	if offset > 0 {
		q.addParameter("OFFSET $%d", offset)
	}

	return q
}

// Build returns the final SQL query and arguments
func (q *RunsQueryBuilder) Build() (string, []any) {
	return q.sql, q.args
}

// addWhereCondition adds a WHERE condition, handling AND logic automatically
func (q *RunsQueryBuilder) addWhereCondition(sqlClause string, value any) {
	placeholder := q.nextPlaceholder()

	if q.hasWhereClause() {
		q.sql += " AND " + fmt.Sprintf(sqlClause, placeholder)
	} else {
		q.sql += " WHERE " + fmt.Sprintf(sqlClause, placeholder)
	}

	q.args = append(q.args, value)
}

// addParameter adds a SQL clause with a parameter
func (q *RunsQueryBuilder) addParameter(sqlClause string, value any) {
	placeholder := q.nextPlaceholder()
	q.sql += " " + fmt.Sprintf(sqlClause, placeholder)
	q.args = append(q.args, value)
}

// hasWhereClause checks if the query already has a WHERE clause.
// Only filters add arguments before pagination does.
func (q *RunsQueryBuilder) hasWhereClause() bool {
	return len(q.args) > 0
}

// nextPlaceholder returns the next PostgreSQL placeholder ($1, $2, etc.)
func (q *RunsQueryBuilder) nextPlaceholder() int {
	return len(q.args) + 1
}
