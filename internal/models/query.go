package models

import "fmt"

// SearchQuery represents a similarity search request: free text and/or
// structured filter fields. A filter is enabled when its field is non-zero
// (pointers distinguish "unset" where zero is meaningful).
type SearchQuery struct {
	Query string `json:"query,omitempty"`

	// Structured filters (AND-combined).
	Class             string   `json:"class,omitempty"`
	Ascendancy        string   `json:"ascendancy,omitempty"`
	MainSkill         string   `json:"main_skill,omitempty"`
	Goal              string   `json:"goal,omitempty"`
	MinCost           float64  `json:"min_cost,omitempty"`
	MaxCost           float64  `json:"max_cost,omitempty"` // 0 = no upper bound
	MinLevel          int      `json:"min_level,omitempty"`
	MaxLevel          int      `json:"max_level,omitempty"` // 0 = no upper bound
	MinDPS            float64  `json:"min_dps,omitempty"`
	MinQuality        string   `json:"min_quality,omitempty"` // quality tier floor
	RequiredKeystones []string `json:"required_keystones,omitempty"`
	ExcludedKeystones []string `json:"excluded_keystones,omitempty"`
	ExcludeHashes     []string `json:"exclude_hashes,omitempty"`

	// PreferredGoal boosts goal-matching results without filtering the rest
	// out (unlike Goal, which is a hard filter).
	PreferredGoal string `json:"preferred_goal,omitempty"`

	// Retrieval and ranking knobs. Pointers distinguish "unset" from an
	// explicit zero (a zero MinSimilarity is a valid request).
	MaxResults    int      `json:"max_results,omitempty"`
	MinSimilarity *float64 `json:"min_similarity,omitempty"`
	Diversify     *bool    `json:"diversify,omitempty"`
}

// HasText reports whether the query carries free text.
func (q *SearchQuery) HasText() bool {
	return q.Query != ""
}

// HasStructuredFields reports whether any structured field that can synthesize
// query text is present.
func (q *SearchQuery) HasStructuredFields() bool {
	return q.Class != "" || q.Ascendancy != "" || q.MainSkill != "" ||
		q.Goal != "" || q.MaxCost > 0 || q.MinCost > 0
}

// Validate ensures the query is answerable and normalizes limits.
func (q *SearchQuery) Validate() error {
	if !q.HasText() && !q.HasStructuredFields() {
		return fmt.Errorf("query requires free text or at least one structured field")
	}
	if q.MaxCost > 0 && q.MinCost > q.MaxCost {
		return fmt.Errorf("min_cost %.2f exceeds max_cost %.2f", q.MinCost, q.MaxCost)
	}
	if q.MaxLevel > 0 && q.MinLevel > q.MaxLevel {
		return fmt.Errorf("min_level %d exceeds max_level %d", q.MinLevel, q.MaxLevel)
	}
	if q.MaxResults < 0 {
		return fmt.Errorf("max_results cannot be negative")
	}
	if q.MaxResults > 100 {
		q.MaxResults = 100
	}
	return nil
}
