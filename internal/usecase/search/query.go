package search

import (
	"github.com/biblios/discovery/internal/domain/hit"
	"github.com/biblios/discovery/internal/domain/query"
	"github.com/biblios/discovery/internal/usecase/facets"
)

// Query is one search session's state. The hit list and facet lists are
// replaced by each Execute call; the hit count is memoized once computed and
// survives page changes.
type Query struct {
	Raw                  string
	Page                 int
	Sort                 string
	Locale               string
	Aggregated           bool
	IncludeBlacklist     bool
	IncludeDiscriminator bool

	Facets *facets.State
	Hits   []*hit.Hit

	terms    query.Terms
	hitCount *int64
}

// NewQuery creates a search session for a raw query string.
func NewQuery(raw string) *Query {
	return &Query{
		Raw:                  raw,
		Facets:               facets.NewState(),
		IncludeBlacklist:     true,
		IncludeDiscriminator: true,
	}
}

// HitCount returns the memoized total result count, 0 before the first
// execution.
func (q *Query) HitCount() int64 {
	if q.hitCount == nil {
		return 0
	}
	return *q.hitCount
}

// Terms returns the search terms extracted during the last execution.
func (q *Query) Terms() query.Terms { return q.terms }

func (q *Query) setHitCount(n int64) {
	if q.hitCount == nil {
		q.hitCount = &n
	}
}
