package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/domain/highlight"
	"github.com/biblios/discovery/internal/domain/hit"
	"github.com/biblios/discovery/internal/domain/security"
	"github.com/biblios/discovery/internal/repository/index"
	"github.com/biblios/discovery/internal/translate"
	"github.com/biblios/discovery/internal/usecase/facets"
)

type stubIndex struct {
	mu            sync.Mutex
	specs         []*index.Spec
	main          *index.Result
	bounds        *index.Result
	owners        map[string]domain.Document
	firstDocCalls int
	err           error
}

func (s *stubIndex) Search(_ context.Context, spec *index.Spec) (*index.Result, error) {
	s.mu.Lock()
	s.specs = append(s.specs, spec)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if spec.Rows == 0 && s.bounds != nil {
		return s.bounds, nil
	}
	return s.main, nil
}

func (s *stubIndex) FirstDoc(_ context.Context, query string, _ []string) (domain.Document, error) {
	s.mu.Lock()
	s.firstDocCalls++
	s.mu.Unlock()
	for id, doc := range s.owners {
		if strings.Contains(query, "\""+id+"\"") {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, query)
}

type stubSuffixes struct {
	suffix string
	err    error
}

func (s *stubSuffixes) AllSuffixes(context.Context, *security.User, string, bool, bool) (string, error) {
	return s.suffix, s.err
}

func newTestService(idx *stubIndex, cfg Config, facetCfg facets.Config) *Service {
	labels, _ := translate.New(map[string]map[string]string{"en": {}})
	if cfg.PageSize == 0 {
		cfg.PageSize = 10
	}
	if cfg.ChildPageSize == 0 {
		cfg.ChildPageSize = 10
	}
	if cfg.FragmentLength == 0 {
		cfg.FragmentLength = 100
	}
	return New(cfg, idx, &stubSuffixes{suffix: " AND ISWORK:true"}, facets.New(facetCfg, labels), labels)
}

func TestExecuteAggregated(t *testing.T) {
	root := domain.Document{
		domain.FieldPI:           {"PPN1"},
		domain.FieldPITopstruct:  {"PPN1"},
		domain.FieldIDDoc:        {"100"},
		domain.FieldDocType:      {domain.DocTypeDocstruct},
		domain.FieldLabel:        {"Berlin und Umgebung"},
		domain.FieldAccessCondition: {domain.OpenAccessCondition},
	}
	page := func(iddoc, order string) domain.Document {
		return domain.Document{
			domain.FieldPITopstruct: {"PPN1"},
			domain.FieldIDDoc:       {iddoc},
			domain.FieldIDDocOwner:  {"100"},
			domain.FieldDocType:     {domain.DocTypePage},
			domain.FieldOrder:       {order},
			domain.FieldLabel:       {"Page " + order},
		}
	}
	idx := &stubIndex{
		main: &index.Result{
			NumFound: 1,
			Docs:     []domain.Document{root},
			Expanded: map[string][]domain.Document{
				"PPN1": {page("101", "1"), page("102", "2")},
			},
		},
	}
	svc := newTestService(idx, Config{}, facets.Config{})

	q := NewQuery("DEFAULT:berlin")
	q.Aggregated = true
	if err := svc.Execute(context.Background(), q, nil, ""); err != nil {
		t.Fatal(err)
	}

	if len(q.Hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(q.Hits))
	}
	h := q.Hits[0]
	if h.Type != hit.TypeDocstruct {
		t.Errorf("root type = %s, want DOCSTRCT", h.Type)
	}
	if len(h.Children) != 2 {
		t.Fatalf("got %d children, want 2", len(h.Children))
	}
	for _, c := range h.Children {
		if c.Type != hit.TypePage {
			t.Errorf("child type = %s, want PAGE", c.Type)
		}
	}
	if h.HitTypeCounts[hit.TypePage] != 2 {
		t.Errorf("hitTypeCounts[PAGE] = %d, want 2", h.HitTypeCounts[hit.TypePage])
	}
	if q.HitCount() != 1 {
		t.Errorf("hit count = %d, want 1", q.HitCount())
	}
	if !strings.Contains(h.Element.ShortLabel, highlight.MarkerStart) {
		t.Errorf("short label not highlighted: %q", h.Element.ShortLabel)
	}
}

func TestExecuteMemoizesHitCount(t *testing.T) {
	idx := &stubIndex{main: &index.Result{NumFound: 42}}
	svc := newTestService(idx, Config{}, facets.Config{})

	q := NewQuery("DEFAULT:foo")
	if err := svc.Execute(context.Background(), q, nil, ""); err != nil {
		t.Fatal(err)
	}
	idx.main = &index.Result{NumFound: 7}
	q.Page = 1
	if err := svc.Execute(context.Background(), q, nil, ""); err != nil {
		t.Fatal(err)
	}
	if q.HitCount() != 42 {
		t.Errorf("hit count = %d, want memoized 42", q.HitCount())
	}
}

func TestExecutePopulatesFacets(t *testing.T) {
	idx := &stubIndex{main: &index.Result{
		NumFound: 3,
		Facets: map[string][]index.FacetCount{
			"DC": {{Value: "maps", Count: 3}},
		},
	}}
	svc := newTestService(idx, Config{}, facets.Config{Fields: []string{"DC"}})

	q := NewQuery("DEFAULT:foo")
	if err := svc.Execute(context.Background(), q, nil, ""); err != nil {
		t.Fatal(err)
	}
	available := q.Facets.Available("DC")
	if len(available) != 1 || available[0].Value() != "maps" {
		t.Errorf("available DC facets = %v", available)
	}
	if idx.specs[0].FacetFields[0] != "DC" {
		t.Errorf("facet fields not requested: %v", idx.specs[0].FacetFields)
	}
}

func TestExecuteRangeBoundsQuery(t *testing.T) {
	idx := &stubIndex{
		main: &index.Result{NumFound: 1},
		bounds: &index.Result{Facets: map[string][]index.FacetCount{
			"YEAR": {{Value: "1880", Count: 1}, {Value: "1930", Count: 2}},
		}},
	}
	svc := newTestService(idx, Config{}, facets.Config{RangeFields: []string{"YEAR"}})

	q := NewQuery("DEFAULT:foo")
	if err := svc.Execute(context.Background(), q, nil, ""); err != nil {
		t.Fatal(err)
	}
	if len(idx.specs) != 2 {
		t.Fatalf("got %d index queries, want main + bounds", len(idx.specs))
	}
	lo, hi := q.Facets.RangeBounds("YEAR")
	if lo != "1880" || hi != "1930" {
		t.Errorf("range bounds = %q..%q", lo, hi)
	}
}

func TestExecuteNonAggregatedOwnerEnrichment(t *testing.T) {
	page := func(iddoc string) domain.Document {
		return domain.Document{
			domain.FieldIDDoc:      {iddoc},
			domain.FieldIDDocOwner: {"500"},
			domain.FieldDocType:    {domain.DocTypePage},
		}
	}
	idx := &stubIndex{
		main: &index.Result{NumFound: 2, Docs: []domain.Document{page("501"), page("502")}},
		owners: map[string]domain.Document{
			"500": {
				domain.FieldPI:    {"PPN9"},
				domain.FieldLabel: {"Owner label"},
			},
		},
	}
	svc := newTestService(idx, Config{}, facets.Config{})

	q := NewQuery("DEFAULT:foo")
	if err := svc.Execute(context.Background(), q, nil, ""); err != nil {
		t.Fatal(err)
	}
	for _, h := range q.Hits {
		if h.Element.PI != "PPN9" {
			t.Errorf("hit PI = %q, want owner PI", h.Element.PI)
		}
	}
	if idx.firstDocCalls != 1 {
		t.Errorf("owner fetched %d times, want cached single fetch", idx.firstDocCalls)
	}
}

func TestPopulateChildrenIncremental(t *testing.T) {
	svc := newTestService(&stubIndex{}, Config{}, facets.Config{})
	q := NewQuery("DEFAULT:foo")

	root := hit.New(hit.TypeDocstruct, &hit.BrowseElement{PI: "PPN1"})
	root.SetOwnerID("100")
	var docs []domain.Document
	for i := 0; i < 3; i++ {
		docs = append(docs, domain.Document{
			domain.FieldIDDocOwner: {"100"},
			domain.FieldDocType:    {domain.DocTypePage},
		})
	}
	root.BufferChildDocs(docs)

	if err := svc.PopulateChildren(context.Background(), q, root, 2); err != nil {
		t.Fatal(err)
	}
	if root.State() != hit.PartiallyPopulated {
		t.Errorf("state = %v, want PartiallyPopulated", root.State())
	}
	if len(root.Children) != 2 {
		t.Errorf("got %d children after first batch", len(root.Children))
	}

	if err := svc.PopulateChildren(context.Background(), q, root, 2); err != nil {
		t.Fatal(err)
	}
	if root.State() != hit.FullyPopulated {
		t.Errorf("state = %v, want FullyPopulated", root.State())
	}
	if len(root.Children) != 3 {
		t.Errorf("got %d children after drain", len(root.Children))
	}
}

func TestPopulateChildrenIgnoresGroupAndUGC(t *testing.T) {
	svc := newTestService(&stubIndex{}, Config{}, facets.Config{})
	q := NewQuery("DEFAULT:foo")

	root := hit.New(hit.TypeDocstruct, &hit.BrowseElement{})
	root.BufferChildDocs([]domain.Document{
		{domain.FieldDocType: {domain.DocTypeGroup}},
		{domain.FieldDocType: {domain.DocTypeUGC}},
	})
	if err := svc.PopulateChildren(context.Background(), q, root, 10); err != nil {
		t.Fatal(err)
	}
	if len(root.Children) != 0 {
		t.Errorf("group/ugc documents must not produce children, got %d", len(root.Children))
	}
}

func TestExecuteSuffixFailure(t *testing.T) {
	labels, _ := translate.New(nil)
	wantErr := fmt.Errorf("load license types: %w", domain.ErrPersistence)
	svc := New(Config{PageSize: 10}, &stubIndex{}, &stubSuffixes{err: wantErr}, facets.New(facets.Config{}, labels), labels)

	q := NewQuery("DEFAULT:foo")
	err := svc.Execute(context.Background(), q, nil, "")
	if !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("err = %v, want ErrPersistence", err)
	}
}

func TestExecuteIndexFailure(t *testing.T) {
	idx := &stubIndex{err: domain.ErrIndexUnavailable}
	svc := newTestService(idx, Config{}, facets.Config{})

	q := NewQuery("DEFAULT:foo")
	if err := svc.Execute(context.Background(), q, nil, ""); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("err = %v, want ErrIndexUnavailable", err)
	}
}

func TestGetBrowseElement(t *testing.T) {
	idx := &stubIndex{main: &index.Result{
		NumFound: 1,
		Docs: []domain.Document{{
			domain.FieldPI:    {"PPN1"},
			domain.FieldLabel: {"Atlas"},
		}},
	}}
	svc := newTestService(idx, Config{}, facets.Config{})

	q := NewQuery("DEFAULT:atlas")
	el, err := svc.GetBrowseElement(context.Background(), q, 4, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if el.PI != "PPN1" || el.Label != "Atlas" {
		t.Errorf("element = %+v", el)
	}
	if idx.specs[0].Start != 4 || idx.specs[0].Rows != 1 {
		t.Errorf("spec start/rows = %d/%d, want 4/1", idx.specs[0].Start, idx.specs[0].Rows)
	}
}

func TestGetBrowseElementNotFound(t *testing.T) {
	idx := &stubIndex{main: &index.Result{}}
	svc := newTestService(idx, Config{}, facets.Config{})

	q := NewQuery("DEFAULT:atlas")
	if _, err := svc.GetBrowseElement(context.Background(), q, 99, nil, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestComposeQueryBoostedFields(t *testing.T) {
	svc := newTestService(&stubIndex{}, Config{
		BoostedFields: []string{domain.FieldDefault, domain.FieldFulltext},
	}, facets.Config{})

	got := svc.composeQuery("berlin")
	want := "(DEFAULT:(berlin) OR FULLTEXT:(berlin))"
	if got != want {
		t.Errorf("composeQuery = %q, want %q", got, want)
	}
	if got := svc.composeQuery("DEFAULT:berlin"); got != "DEFAULT:berlin" {
		t.Errorf("fielded query must pass through, got %q", got)
	}
}
