package domain

import (
	"strings"
	"time"
)

// DefaultMaxResults is used when a query does not ask for a specific count.
const DefaultMaxResults = 5

// SearchQuery is a free-text lookup, optionally scoped to one deal.
type SearchQuery struct {
	Query string `json:"query"`

	// ParentID restricts results to one deal; empty means no filter
	ParentID string `json:"parent_id,omitempty"`

	MaxResults int `json:"max_results"`
}

// Normalize applies defaults. Any query text is accepted, including the
// empty string, and MaxResults is used as given when positive.
func (q *SearchQuery) Normalize() {
	q.ParentID = strings.TrimSpace(q.ParentID)
	if q.MaxResults <= 0 {
		q.MaxResults = DefaultMaxResults
	}
}

// IsFiltered reports whether the query is scoped to a deal.
func (q *SearchQuery) IsFiltered() bool {
	return q.ParentID != ""
}

// SearchResult is the ranked output of a query.
type SearchResult struct {
	Query    string   `json:"query"`
	ParentID string   `json:"parent_id,omitempty"`
	Texts    []string `json:"texts"`

	// Candidates is how many neighbours were considered before filtering
	Candidates int           `json:"candidates"`
	Took       time.Duration `json:"took" swaggertype:"integer" example:"1500000"`
}
