package models

// FilterStatusPassed marks a candidate that survived every enabled filter.
const FilterStatusPassed = "passed"

// SearchResult is a single ranked hit.
type SearchResult struct {
	Hash       string         `json:"hash"`
	Similarity float64        `json:"similarity"`
	Score      float64        `json:"score"`
	Metadata   *BuildMetadata `json:"metadata"`
	Rank       int            `json:"rank"`
	// BoostReasons lists the human-readable boosts applied during scoring.
	BoostReasons []string `json:"boost_reasons,omitempty"`
	// FilterStatus is "passed", or the first failing filter reason for
	// candidates reported through diagnostics.
	FilterStatus string `json:"filter_status"`
}

// SearchResponse wraps ranked results with query timing.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}
