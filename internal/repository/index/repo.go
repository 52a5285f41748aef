// Package index adapts the solr client to the query shapes the services
// need.
package index

import (
	"context"
	"fmt"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/solr"
)

// client is the consumer interface for the solr client (ISP).
type client interface {
	Search(ctx context.Context, req *solr.Request) (*solr.Response, error)
	Count(ctx context.Context, query string, filterQueries []string) (int64, error)
}

// FacetCount is one facet bucket in index arrival order.
type FacetCount struct {
	Value string
	Count int64
}

// Result is a parsed search result.
type Result struct {
	NumFound int64
	Docs     []domain.Document
	Facets   map[string][]FacetCount
	Expanded map[string][]domain.Document
}

// Spec describes one search against the index.
type Spec struct {
	Query         string
	FilterQueries []string
	Fields        []string
	Sort          string
	Start         int
	Rows          int
	FacetFields   []string
	// Aggregated joins child documents onto their top-level record via the
	// topstruct identifier; ExpandQuery selects which children expand.
	Aggregated  bool
	ExpandQuery string
	ExpandRows  int
}

// Repo implements the index contracts of the usecase layer.
type Repo struct {
	client client
}

// New creates an index repository.
func New(c client) *Repo {
	return &Repo{client: c}
}

// Search executes one query, optionally with facet counting and aggregated
// child expansion.
func (r *Repo) Search(ctx context.Context, spec *Spec) (*Result, error) {
	req := &solr.Request{
		Query:         spec.Query,
		FilterQueries: spec.FilterQueries,
		Fields:        spec.Fields,
		Sort:          spec.Sort,
		Start:         spec.Start,
		Rows:          spec.Rows,
		FacetFields:   spec.FacetFields,
		FacetLimit:    -1,
	}
	if spec.Aggregated {
		req.ExpandField = domain.FieldPITopstruct
		req.ExpandQuery = spec.ExpandQuery
		req.ExpandRows = spec.ExpandRows
	}

	resp, err := r.client.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	out := &Result{
		NumFound: resp.NumFound,
		Docs:     resp.Docs,
		Expanded: resp.Expanded,
	}
	if len(resp.Facets) > 0 {
		out.Facets = map[string][]FacetCount{}
		for field, buckets := range resp.Facets {
			counts := make([]FacetCount, len(buckets))
			for i, b := range buckets {
				counts[i] = FacetCount{Value: b.Value, Count: b.Count}
			}
			out.Facets[field] = counts
		}
	}
	return out, nil
}

// Count returns the number of matching documents.
func (r *Repo) Count(ctx context.Context, query string, filterQueries []string) (int64, error) {
	n, err := r.client.Count(ctx, query, filterQueries)
	if err != nil {
		return 0, fmt.Errorf("index count: %w", err)
	}
	return n, nil
}

// FirstDoc returns the first document matching the query, or ErrNotFound.
func (r *Repo) FirstDoc(ctx context.Context, query string, fields []string) (domain.Document, error) {
	resp, err := r.client.Search(ctx, &solr.Request{Query: query, Fields: fields, Rows: 1})
	if err != nil {
		return nil, fmt.Errorf("index fetch: %w", err)
	}
	if len(resp.Docs) == 0 {
		return nil, fmt.Errorf("%w: no document for %q", domain.ErrNotFound, query)
	}
	return resp.Docs[0], nil
}
