// Package search executes composed queries against the index and assembles
// the typed hit tree from the returned documents.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/domain/hit"
	"github.com/biblios/discovery/internal/domain/query"
	"github.com/biblios/discovery/internal/domain/security"
	"github.com/biblios/discovery/internal/repository/index"
	"github.com/biblios/discovery/internal/translate"
	"github.com/biblios/discovery/internal/usecase/facets"
)

// Config holds the execution policies.
type Config struct {
	PageSize           int
	ChildPageSize      int
	ExpandRows         int
	FragmentLength     int
	Stopwords          []string
	DiscriminatorValue string
	// BoostedFields spread an unfielded query term over several fields.
	BoostedFields []string
}

// Service executes search sessions.
type Service struct {
	cfg       Config
	index     Index
	suffixes  SuffixComposer
	engine    *facets.Engine
	labels    *translate.Registry
	stopwords map[string]struct{}
}

// New creates a search service.
func New(cfg Config, idx Index, suffixes SuffixComposer, engine *facets.Engine, labels *translate.Registry) *Service {
	stopwords := make(map[string]struct{}, len(cfg.Stopwords))
	for _, w := range cfg.Stopwords {
		stopwords[strings.ToLower(w)] = struct{}{}
	}
	return &Service{
		cfg:       cfg,
		index:     idx,
		suffixes:  suffixes,
		engine:    engine,
		labels:    labels,
		stopwords: stopwords,
	}
}

// Execute runs the session's query for its current page: composes the final
// query from the raw query, the suffixes, and the facet filter queries, runs
// it (together with the range-bound query when range facets are configured),
// then fills the hit list and the available facet lists. The total hit count
// is memoized on first execution.
func (s *Service) Execute(ctx context.Context, q *Query, user *security.User, ip string) error {
	composed := s.composeQuery(q.Raw)

	suffix, err := s.suffixes.AllSuffixes(ctx, user, ip, q.IncludeBlacklist, q.IncludeDiscriminator)
	if err != nil {
		return fmt.Errorf("compose suffixes: %w", err)
	}
	final := composed + suffix

	q.terms = query.ExtractSearchTerms(composed, s.cfg.DiscriminatorValue, s.stopwords)

	spec := &index.Spec{
		Query:         final,
		FilterQueries: s.engine.FilterQueries(q.Facets, false),
		Sort:          q.Sort,
		Start:         q.Page * s.cfg.PageSize,
		Rows:          s.cfg.PageSize,
		FacetFields:   s.engine.Fields(),
		Aggregated:    q.Aggregated,
		ExpandQuery:   composed,
		ExpandRows:    s.cfg.ExpandRows,
	}

	var main, bounds *index.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		main, err = s.index.Search(gctx, spec)
		return err
	})
	if rangeFields := s.engine.RangeFields(); len(rangeFields) > 0 {
		// Range sliders need bounds computed without their own filter applied.
		boundsSpec := &index.Spec{
			Query:         final,
			FilterQueries: s.engine.FilterQueries(q.Facets, true),
			Rows:          0,
			FacetFields:   rangeFields,
		}
		g.Go(func() error {
			var err error
			bounds, err = s.index.Search(gctx, boundsSpec)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	q.setHitCount(main.NumFound)
	s.engine.PopulateAvailable(q.Facets, mergeCounts(main, bounds), q.Locale)

	b := s.builder(q)
	ownerDocs := map[string]domain.Document{}
	hits := make([]*hit.Hit, 0, len(main.Docs))
	for _, doc := range main.Docs {
		h := b.hit(doc)
		if q.Aggregated {
			h.BufferChildDocs(main.Expanded[doc.First(domain.FieldPITopstruct)])
			if err := s.PopulateChildren(ctx, q, h, s.cfg.ChildPageSize); err != nil {
				return err
			}
		} else if err := s.enrichFromOwner(ctx, h, doc, ownerDocs); err != nil {
			return err
		}
		hits = append(hits, h)
	}
	q.Hits = hits
	return nil
}

// PopulateChildren drains at most n buffered child documents of a root hit
// into the hit tree. Children are classified by document type: structural
// children attach directly, dependent children attach under their resolved
// owner hit, group and UGC documents are ignored.
func (s *Service) PopulateChildren(ctx context.Context, q *Query, root *hit.Hit, n int) error {
	b := s.builder(q)
	for _, doc := range root.TakeChildDocs(n) {
		switch t := hit.TypeFromDocType(doc.First(domain.FieldDocType)); t {
		case hit.TypeGroup, hit.TypeUGC:
			continue
		case hit.TypeDocstruct:
			root.AddChild(b.hit(doc))
		default:
			if err := s.attachToOwner(ctx, b, root, doc, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// attachToOwner places a dependent hit under its owner hit, creating the
// owner hit from the owner document on first sight. Dependent hits nested
// below an intermediate owner still count toward the root's type badges.
func (s *Service) attachToOwner(ctx context.Context, b *hitBuilder, root *hit.Hit, doc domain.Document, t hit.Type) error {
	child := b.hit(doc)
	ownerID := doc.First(domain.FieldIDDocOwner)
	if ownerID == "" || ownerID == root.OwnerID() {
		root.AddChild(child)
		return nil
	}

	owner := root.FindChildByOwner(ownerID)
	if owner == nil {
		ownerDoc, ok := root.OwnerDoc(ownerID)
		if !ok {
			var err error
			ownerDoc, err = s.index.FirstDoc(ctx, fmt.Sprintf("+%s:\"%s\"", domain.FieldIDDoc, ownerID), nil)
			if errors.Is(err, domain.ErrNotFound) {
				root.AddChild(child)
				return nil
			}
			if err != nil {
				return err
			}
			root.CacheOwnerDoc(ownerID, ownerDoc)
		}
		owner = b.hit(ownerDoc)
		root.AddChild(owner)
	}
	owner.AddChild(child)
	root.HitTypeCounts[t]++
	return nil
}

// enrichFromOwner fills label and identifier gaps of a dependent hit from
// its owner document in non-aggregated mode, where each index document is
// its own hit. Owner documents are cached for the duration of one execution.
func (s *Service) enrichFromOwner(ctx context.Context, h *hit.Hit, doc domain.Document, ownerDocs map[string]domain.Document) error {
	switch h.Type {
	case hit.TypePage, hit.TypeMetadata, hit.TypeEvent:
	default:
		return nil
	}
	ownerID := doc.First(domain.FieldIDDocOwner)
	if ownerID == "" {
		return nil
	}
	ownerDoc, ok := ownerDocs[ownerID]
	if !ok {
		var err error
		ownerDoc, err = s.index.FirstDoc(ctx, fmt.Sprintf("+%s:\"%s\"", domain.FieldIDDoc, ownerID), nil)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ownerDocs[ownerID] = ownerDoc
	}
	if h.Element.PI == "" {
		h.Element.PI = pi(ownerDoc)
	}
	if h.Element.Label == "" {
		h.Element.Label = label(ownerDoc)
	}
	return nil
}

// GetBrowseElement fetches the presentational summary of a single hit by its
// position in the full result list.
func (s *Service) GetBrowseElement(ctx context.Context, q *Query, position int, user *security.User, ip string) (*hit.BrowseElement, error) {
	suffix, err := s.suffixes.AllSuffixes(ctx, user, ip, q.IncludeBlacklist, q.IncludeDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("compose suffixes: %w", err)
	}
	composed := s.composeQuery(q.Raw)
	if q.terms == nil {
		q.terms = query.ExtractSearchTerms(composed, s.cfg.DiscriminatorValue, s.stopwords)
	}

	res, err := s.index.Search(ctx, &index.Spec{
		Query:         composed + suffix,
		FilterQueries: s.engine.FilterQueries(q.Facets, false),
		Sort:          q.Sort,
		Start:         position,
		Rows:          1,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Docs) == 0 {
		return nil, fmt.Errorf("%w: no hit at position %d", domain.ErrNotFound, position)
	}
	return s.builder(q).element(res.Docs[0]), nil
}

// composeQuery turns a raw user query into a fielded query. An unfielded
// query is spread over the boosted fields, falling back to the default field.
func (s *Service) composeQuery(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, ":") {
		return raw
	}
	if len(s.cfg.BoostedFields) == 0 {
		return domain.FieldDefault + ":(" + raw + ")"
	}
	clauses := make([]string, len(s.cfg.BoostedFields))
	for i, f := range s.cfg.BoostedFields {
		clauses[i] = f + ":(" + raw + ")"
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

func (s *Service) builder(q *Query) *hitBuilder {
	return &hitBuilder{
		terms:          q.terms,
		locale:         q.Locale,
		labels:         s.labels,
		fragmentLength: s.cfg.FragmentLength,
	}
}

// mergeCounts converts the main response's facet buckets, overriding range
// fields with the unfiltered bounds response when present.
func mergeCounts(main, bounds *index.Result) map[string][]facets.Count {
	out := map[string][]facets.Count{}
	copyCounts(out, main.Facets)
	if bounds != nil {
		copyCounts(out, bounds.Facets)
	}
	return out
}

func copyCounts(dst map[string][]facets.Count, src map[string][]index.FacetCount) {
	for field, buckets := range src {
		counts := make([]facets.Count, len(buckets))
		for i, b := range buckets {
			counts[i] = facets.Count{Value: b.Value, Count: b.Count}
		}
		dst[field] = counts
	}
}
