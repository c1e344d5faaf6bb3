package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/screwyprof/ballotaudit/auditor"
	"github.com/screwyprof/ballotaudit/pkg/httpkit"
	"github.com/screwyprof/ballotaudit/web/api"
	"github.com/screwyprof/ballotaudit/web/archive"
	"github.com/screwyprof/ballotaudit/web/handler/bind"
)

const (
	GetRunsRoute   = http.MethodGet + " " + "/audits"
	GetReportRoute = http.MethodGet + " " + "/audits/{id}"
)

// Sentinel errors
var (
	ErrQueryFailed = errors.New("failed to query the audit archive")
)

type Audits struct {
	finder archive.Finder
}

func NewAudits(finder archive.Finder) *Audits {
	return &Audits{
		finder: finder,
	}
}

func (h *Audits) AddRoutes(m *http.ServeMux) {
	m.Handle(GetRunsRoute, httpkit.HandlerFunc(h.GetRuns))
	m.Handle(GetReportRoute, httpkit.HandlerFunc(h.GetReport))
}

func (h *Audits) GetRuns(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	// Parse query parameters using bind layer
	req, err := bind.GetRunsRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	// Create domain criteria with validation
	criteria, err := archive.NewRunsCriteria(req.Voter, req.Page, req.PerPage)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	page, err := h.finder.FindRuns(r.Context(), criteria)
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrQueryFailed, err)))
	}

	// Build GitHub-style Link header for navigation
	if linkHeader := buildPaginationLinks(page, r.URL); linkHeader != "" {
		w.Header().Set("Link", linkHeader)
	}

	return httpkit.JSON(bind.GetRunsResponse(page.Runs))
}

func (h *Audits) GetReport(_ http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.GetReportRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	rr, err := h.finder.FindReport(r.Context(), req.RunID)
	if errors.Is(err, archive.ErrRunNotFound) {
		return httpkit.JsonError(api.NotFound(err))
	}
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrQueryFailed, err)))
	}

	if req.Text {
		return httpkit.Text(func(w io.Writer) error {
			return rr.Report.Render(w, auditor.RenderOptions{IncludeUnresolved: req.All})
		})
	}
	return httpkit.JSON(bind.GetReportResponse(rr))
}

// buildPaginationLinks creates GitHub-style Link header for pagination navigation
func buildPaginationLinks(page *archive.RunsPage, baseURL *url.URL) string {
	var links []string

	// Keep existing query params such as the voter filter
	u := *baseURL
	query := u.Query()

	if page.HasPrevious() {
		query.Set("page", fmt.Sprintf("%d", page.Number-1))
		query.Set("per_page", fmt.Sprintf("%d", page.Size))
		u.RawQuery = query.Encode()
		links = append(links, fmt.Sprintf(`<%s>; rel="prev"`, u.String()))
	}

	// Only when we know there are more pages
	if page.HasNext() {
		query.Set("page", fmt.Sprintf("%d", page.Number+1))
		query.Set("per_page", fmt.Sprintf("%d", page.Size))
		u.RawQuery = query.Encode()
		links = append(links, fmt.Sprintf(`<%s>; rel="next"`, u.String()))
	}

	return strings.Join(links, ", ")
}
