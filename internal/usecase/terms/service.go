// Package terms aggregates distinct index term values for browsing lists
// (calendar years, creator names, collection titles).
package terms

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/repository/index"
	"github.com/biblios/discovery/internal/repository/termcache"
)

// FieldConfig names the value field and its optional paired sort-key field.
type FieldConfig struct {
	Field     string `json:"field"`
	SortField string `json:"sortField,omitempty"`
}

// Term is one distinct browsable value with its record count.
type Term struct {
	Value     string `json:"value"`
	SortValue string `json:"sortValue,omitempty"`
	Count     int64  `json:"count"`
}

// Config holds the aggregation policies.
type Config struct {
	// Rows bounds the document scan per term query.
	Rows int
	// Aggregated counts each top-level record at most once per term.
	Aggregated bool
	CacheTTL   time.Duration
}

// Service aggregates terms. Documents of one query are processed across
// workers; each worker emits per-document deltas that a single reducer
// merges, so no shared map needs locking.
type Service struct {
	cfg   Config
	index Index
	cache termcache.Cache
}

// New creates a terms service. cache may be nil to disable caching.
func New(cfg Config, idx Index, cache termcache.Cache) *Service {
	if cfg.Rows <= 0 {
		cfg.Rows = 100000
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Service{cfg: cfg, index: idx, cache: cache}
}

// delta is one worker's contribution: a term seen in one document. Per-doc
// de-duplication already happened in the worker.
type delta struct {
	value     string
	sortValue string
	recordID  string
}

// FilteredTerms returns the sorted distinct values of a field, optionally
// restricted to a case-insensitive prefix.
func (s *Service) FilteredTerms(ctx context.Context, fc FieldConfig, startsWith string) ([]Term, error) {
	all, err := s.allTerms(ctx, fc)
	if err != nil {
		return nil, err
	}
	if startsWith == "" {
		return all, nil
	}
	prefix := strings.ToLower(startsWith)
	filtered := make([]Term, 0, len(all))
	for _, t := range all {
		if strings.HasPrefix(strings.ToLower(t.Value), prefix) {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

func (s *Service) allTerms(ctx context.Context, fc FieldConfig) ([]Term, error) {
	key := cacheKey(fc)
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var cached []Term
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	fields := []string{fc.Field, domain.FieldPITopstruct}
	if fc.SortField != "" {
		fields = append(fields, fc.SortField)
	}
	res, err := s.index.Search(ctx, &index.Spec{
		Query:  fc.Field + ":[* TO *]",
		Fields: fields,
		Rows:   s.cfg.Rows,
	})
	if err != nil {
		return nil, fmt.Errorf("collect terms: %w", err)
	}

	deltas, err := s.collect(ctx, fc, res.Docs)
	if err != nil {
		return nil, err
	}
	out := s.reduce(deltas)

	if s.cache != nil {
		if raw, err := json.Marshal(out); err == nil {
			s.cache.Set(ctx, key, raw, s.cfg.CacheTTL)
		}
	}
	return out, nil
}

// collect fans the documents out to one worker per CPU. Each worker walks its
// slice of documents and emits deltas de-duplicated within each document, so
// a term repeated inside one document counts once.
func (s *Service) collect(ctx context.Context, fc FieldConfig, docs []domain.Document) ([][]delta, error) {
	workers := runtime.NumCPU()
	if workers > len(docs) {
		workers = len(docs)
	}
	if workers == 0 {
		return nil, nil
	}

	results := make([][]delta, workers)
	chunk := (len(docs) + workers - 1) / workers

	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(docs) {
			end = len(docs)
		}
		g.Go(func() error {
			var local []delta
			for _, doc := range docs[start:end] {
				local = append(local, docDeltas(fc, doc)...)
			}
			results[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// docDeltas extracts one document's term contributions, pairing sort-key
// values positionally when the sort field has matching cardinality.
func docDeltas(fc FieldConfig, doc domain.Document) []delta {
	values := doc.Values(fc.Field)
	if len(values) == 0 {
		return nil
	}
	sortValues := doc.Values(fc.SortField)
	if len(sortValues) != len(values) {
		sortValues = nil
	}
	recordID := doc.First(domain.FieldPITopstruct)

	seen := map[string]struct{}{}
	out := make([]delta, 0, len(values))
	for i, v := range values {
		if v == "" || v[0] == byte(domain.ReversedValuePrefix) {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		d := delta{value: v, recordID: recordID}
		if sortValues != nil {
			d.sortValue = sortValues[i]
		}
		out = append(out, d)
	}
	return out
}

// reduce merges all worker deltas sequentially into the final sorted list.
// In aggregated mode a record identifier increments a term at most once.
func (s *Service) reduce(deltas [][]delta) []Term {
	type agg struct {
		term    Term
		records map[string]struct{}
	}
	byValue := map[string]*agg{}
	for _, local := range deltas {
		for _, d := range local {
			a, ok := byValue[d.value]
			if !ok {
				a = &agg{term: Term{Value: d.value, SortValue: d.sortValue}}
				if s.cfg.Aggregated {
					a.records = map[string]struct{}{}
				}
				byValue[d.value] = a
			}
			if s.cfg.Aggregated && d.recordID != "" {
				if _, counted := a.records[d.recordID]; counted {
					continue
				}
				a.records[d.recordID] = struct{}{}
			}
			a.term.Count++
		}
	}

	out := make([]Term, 0, len(byValue))
	for _, a := range byValue {
		out = append(out, a.term)
	}
	sort.Slice(out, func(i, j int) bool {
		return sortKey(out[i]) < sortKey(out[j])
	})
	return out
}

func sortKey(t Term) string {
	if t.SortValue != "" {
		return t.SortValue
	}
	return t.Value
}

func cacheKey(fc FieldConfig) string {
	return "terms:" + fc.Field + ":" + fc.SortField
}
