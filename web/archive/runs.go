// Package archive is the read side of the audit report archive.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screwyprof/ballotaudit/auditor"
)

// Sentinel errors for archive queries
var (
	ErrInvalidVoter   = errors.New("invalid voter")
	ErrInvalidPerPage = errors.New("invalid per_page")
	ErrRunNotFound    = errors.New("audit run not found")
)

// Run is the metadata of one archived audit
type Run struct {
	ID          int64
	FromBlock   uint64
	ToBlock     uint64
	Ballots     int
	CompletedAt time.Time
}

// RunReport is an archived run with its report, lines in report order
type RunReport struct {
	Run
	Report *auditor.Report
}

// RunsCriteria specifies criteria for listing archived runs
type RunsCriteria struct {
	Voter *common.Address // only runs that include this voting key; nil means all runs
	Page  Page            // 1-based page number
	Size  PerPage         // Items per page
}

// ItemsPerPage returns the number of items requested per page
func (c RunsCriteria) ItemsPerPage() uint64 {
	return uint64(c.Size)
}

// ItemsToSkip returns the number of items to skip for pagination
func (c RunsCriteria) ItemsToSkip() uint64 {
	return c.Page.Offset(c.Size)
}

// NewRunsCriteria creates RunsCriteria with validation. An empty voter lists every run.
func NewRunsCriteria(voter string, page, perPage uint64) (RunsCriteria, error) {
	var criteria RunsCriteria

	if voter != "" {
		if !common.IsHexAddress(voter) {
			return RunsCriteria{}, fmt.Errorf("%w: %q is not an address", ErrInvalidVoter, voter)
		}
		addr := common.HexToAddress(voter)
		criteria.Voter = &addr
	}

	pp, err := NewPerPage(perPage)
	if err != nil {
		return RunsCriteria{}, fmt.Errorf("%w: %w", ErrInvalidPerPage, err)
	}

	criteria.Page = NewPage(page)
	criteria.Size = pp
	return criteria, nil
}

// RunsPage represents a page of runs with navigation metadata
type RunsPage struct {
	Runs    []Run
	HasMore bool    // True if there are more pages after this one
	Number  Page    // Current page number
	Size    PerPage // Page size
}

// Helper methods for pagination state
func (p *RunsPage) HasNext() bool     { return p.HasMore }
func (p *RunsPage) HasPrevious() bool { return p.Number > 1 }

// Finder defines the interface for querying the archive
type Finder interface {
	FindRuns(ctx context.Context, criteria RunsCriteria) (*RunsPage, error)
	// FindReport returns ErrRunNotFound for an unknown id
	FindReport(ctx context.Context, runID int64) (*RunReport, error)
}
