package api

// RunsRequest represents the query parameters for GET /audits
type RunsRequest struct {
	Voter   string `query:"voter"`    // Optional voting key; only runs that include it
	Page    uint64 `query:"page"`     // Page number for pagination (default: 1)
	PerPage uint64 `query:"per_page"` // Number of items per page (default: 20, max: 100)
}

// ReportRequest represents the path and query parameters for GET /audits/{id}
type ReportRequest struct {
	RunID int64 `path:"id"`
	Text  bool  // plain-text rendering instead of JSON
	All   bool  `query:"all"` // include voters without a resolved identity in text output
}

// Run represents a single archived audit run in the API response
type Run struct {
	ID          int64  `json:"id"`
	FromBlock   string `json:"from_block"`
	ToBlock     string `json:"to_block"`
	Ballots     int    `json:"ballots"`
	CompletedAt string `json:"completed_at"`
}

// RunsResponse represents the API response format for GET /audits
type RunsResponse struct {
	Data []Run `json:"data"`
}

// ReportLine represents one voter of an archived report.
// Mining key and name are omitted when unknown.
type ReportLine struct {
	VotingKey     string `json:"voting_key"`
	MiningKey     string `json:"mining_key,omitempty"`
	Name          string `json:"name,omitempty"`
	Eligible      uint64 `json:"ballots_eligible"`
	Voted         uint64 `json:"ballots_voted"`
	Participation string `json:"participation"`
}

// ReportResponse represents the API response format for GET /audits/{id}
type ReportResponse struct {
	Run   Run          `json:"run"`
	Lines []ReportLine `json:"lines"`
}
