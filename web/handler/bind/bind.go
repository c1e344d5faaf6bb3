package bind

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/screwyprof/ballotaudit/auditor"
	"github.com/screwyprof/ballotaudit/pkg/httpkit"
	"github.com/screwyprof/ballotaudit/web/api"
	"github.com/screwyprof/ballotaudit/web/archive"
)

// Sentinel errors for request binding
var (
	ErrInvalidPage    = errors.New("invalid page parameter")
	ErrInvalidPerPage = errors.New("invalid per_page parameter")
	ErrInvalidRunID   = errors.New("invalid run id")
	ErrInvalidAll     = errors.New("invalid all parameter")

	// Specific page validation errors
	ErrPageNotNumeric  = errors.New("page must be numeric")
	ErrPageNotPositive = errors.New("page must be positive")

	// Specific per_page validation errors
	ErrPerPageNotNumeric  = errors.New("per_page must be numeric")
	ErrPerPageNotPositive = errors.New("per_page must be positive")

	ErrRunIDNotPositive = errors.New("run id must be a positive integer")
)

// GetRunsRequest binds HTTP request to RunsRequest with defaults
func GetRunsRequest(r *http.Request) (api.RunsRequest, error) {
	req := api.RunsRequest{
		Page:    archive.FirstPage,
		PerPage: archive.DefaultPerPage,
	}

	query := r.URL.Query()

	// Voter is validated by the domain criteria
	req.Voter = query.Get("voter")

	// Parse page parameter
	if pageParam := query.Get("page"); pageParam != "" {
		page, err := parsePageNumber(pageParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidPage, err)
		}
		req.Page = page
	}

	// Parse per_page parameter
	if perPageParam := query.Get("per_page"); perPageParam != "" {
		perPage, err := parsePerPageLimit(perPageParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidPerPage, err)
		}
		req.PerPage = perPage
	}

	return req, nil
}

// GetReportRequest binds the run id from the path and the output format
func GetReportRequest(r *http.Request) (api.ReportRequest, error) {
	var req api.ReportRequest

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return req, fmt.Errorf("%w: %w", ErrInvalidRunID, ErrRunIDNotPositive)
	}
	req.RunID = id

	if allParam := r.URL.Query().Get("all"); allParam != "" {
		all, err := strconv.ParseBool(allParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidAll, err)
		}
		req.All = all
	}

	req.Text = r.URL.Query().Get("format") == "text" || httpkit.AcceptsText(r)
	return req, nil
}

// parsePageNumber validates that the page parameter is a positive integer
func parsePageNumber(pageParam string) (uint64, error) {
	page, err := strconv.ParseUint(pageParam, 10, 64)
	if err != nil {
		return 0, ErrPageNotNumeric
	}

	if page == 0 {
		return 0, ErrPageNotPositive
	}

	return page, nil
}

// parsePerPageLimit validates that the per_page parameter is a positive integer.
// The upper bound is a domain rule checked by archive.NewRunsCriteria.
func parsePerPageLimit(perPageParam string) (uint64, error) {
	perPage, err := strconv.ParseUint(perPageParam, 10, 64)
	if err != nil {
		return 0, ErrPerPageNotNumeric
	}

	if perPage == 0 {
		return 0, ErrPerPageNotPositive
	}

	return perPage, nil
}

// GetRunsResponse binds archived runs to API response format
func GetRunsResponse(runs []archive.Run) api.RunsResponse {
	apiRuns := make([]api.Run, len(runs))
	for i, run := range runs {
		apiRuns[i] = toAPIRun(run)
	}

	return api.RunsResponse{
		Data: apiRuns,
	}
}

// GetReportResponse binds an archived report to API response format
func GetReportResponse(rr *archive.RunReport) api.ReportResponse {
	lines := make([]api.ReportLine, len(rr.Report.Lines))
	for i, l := range rr.Report.Lines {
		line := api.ReportLine{
			VotingKey:     l.Voter.Hex(),
			Name:          l.Name,
			Eligible:      l.Eligible,
			Voted:         l.Voted,
			Participation: formatParticipation(l),
		}
		if l.MiningKey != nil {
			line.MiningKey = l.MiningKey.Hex()
		}
		lines[i] = line
	}

	return api.ReportResponse{
		Run:   toAPIRun(rr.Run),
		Lines: lines,
	}
}

func toAPIRun(run archive.Run) api.Run {
	return api.Run{
		ID:          run.ID,
		FromBlock:   strconv.FormatUint(run.FromBlock, 10),
		ToBlock:     strconv.FormatUint(run.ToBlock, 10),
		Ballots:     run.Ballots,
		CompletedAt: run.CompletedAt.UTC().Format(time.RFC3339),
	}
}

func formatParticipation(l auditor.ReportLine) string {
	return strconv.FormatFloat(l.Participation(), 'f', 4, 64)
}
