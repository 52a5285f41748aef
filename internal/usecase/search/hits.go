package search

import (
	"html"
	"sort"
	"strings"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/domain/highlight"
	"github.com/biblios/discovery/internal/domain/hit"
	"github.com/biblios/discovery/internal/domain/query"
	"github.com/biblios/discovery/internal/translate"
)

// taxonomyFields carry controlled vocabulary values whose display form comes
// from the label registry, not from the stored value.
var taxonomyFields = map[string]bool{
	domain.FieldPersonTaxonomy: true,
	domain.FieldPlaceTaxonomy:  true,
}

// hitBuilder turns index documents into hit nodes for one execution. It
// carries the extracted search terms so every built hit highlights the same
// way.
type hitBuilder struct {
	terms          query.Terms
	locale         string
	labels         *translate.Registry
	fragmentLength int
}

func (b *hitBuilder) hit(doc domain.Document) *hit.Hit {
	t := hit.TypeFromDocType(doc.First(domain.FieldDocType))
	h := hit.New(t, b.element(doc))
	h.SetOwnerID(doc.First(domain.FieldIDDoc))
	b.addOverviewChildren(h, doc)
	b.addFoundMetadata(h, doc)
	b.addFragments(h, doc)
	return h
}

// element builds the presentational summary. The short label is HTML-escaped
// before highlighting so the inserted markers are never escaped themselves.
func (b *hitBuilder) element(doc domain.Document) *hit.BrowseElement {
	lbl := label(doc)
	el := &hit.BrowseElement{
		PI:         pi(doc),
		Label:      lbl,
		ShortLabel: highlight.Phrase(html.EscapeString(lbl), b.labelTerms()),
		Thumbnail:  doc.First(domain.FieldThumbnail),
		MimeType:   doc.First(domain.FieldMimeType),
	}
	if n, ok := doc.Int(domain.FieldOrder); ok {
		el.ImageNumber = n
	}
	for _, ds := range doc.Values(domain.FieldDocstruct) {
		el.Structure = append(el.Structure, hit.StructureStub{
			Label:     b.translate(ds),
			Docstruct: ds,
		})
	}
	return el
}

// labelTerms collects the terms relevant for label highlighting.
func (b *hitBuilder) labelTerms() []string {
	var out []string
	for _, field := range []string{domain.FieldDefault, domain.FieldLabel, domain.FieldTitle} {
		out = append(out, b.terms[field]...)
	}
	return out
}

// addOverviewChildren synthesizes child hits for matches inside the overview
// page texts, one per overview field present in the search terms.
func (b *hitBuilder) addOverviewChildren(h *hit.Hit, doc domain.Document) {
	for _, field := range []string{domain.FieldOverviewDescription, domain.FieldOverviewPublication} {
		terms := b.terms[field]
		if len(terms) == 0 || !doc.Has(field) {
			continue
		}
		child := hit.New(hit.TypeOverviewPage, &hit.BrowseElement{
			PI:         pi(doc),
			Label:      b.translate(field),
			ShortLabel: b.translate(field),
		})
		child.Fragments = highlight.TruncateFulltext(terms, doc.First(field), b.fragmentLength)
		h.AddChild(child)
	}
}

// addFoundMetadata scans the document's metadata fields for values containing
// the catch-all search terms. Untokenized variants are skipped, and only the
// first matching value per translated field label is kept.
func (b *hitBuilder) addFoundMetadata(h *hit.Hit, doc domain.Document) {
	terms := b.terms[domain.FieldDefault]
	if len(terms) == 0 {
		return
	}

	fields := make([]string, 0, len(doc))
	for field := range doc {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	seen := map[string]struct{}{}
	for _, field := range fields {
		if !strings.HasPrefix(field, domain.PrefixMetadata) || strings.HasSuffix(field, domain.SuffixUntokenized) {
			continue
		}
		fieldLabel := b.translate(field)
		if _, dup := seen[fieldLabel]; dup {
			continue
		}
		for _, value := range doc.Values(field) {
			display := value
			if taxonomyFields[field] {
				display = b.translate(value)
			}
			highlighted := highlight.Phrase(html.EscapeString(display), terms)
			if !strings.Contains(highlighted, highlight.MarkerStart) {
				continue
			}
			h.FoundMetadata = append(h.FoundMetadata, hit.MetadataPair{Field: fieldLabel, Value: highlighted})
			seen[fieldLabel] = struct{}{}
			break
		}
	}
}

// addFragments extracts highlighted full-text excerpts when full text was
// searched and the document carries it.
func (b *hitBuilder) addFragments(h *hit.Hit, doc domain.Document) {
	terms := b.terms[domain.FieldFulltext]
	if len(terms) == 0 || !doc.Has(domain.FieldFulltext) {
		return
	}
	h.Fragments = highlight.TruncateFulltext(terms, doc.First(domain.FieldFulltext), b.fragmentLength)
}

func (b *hitBuilder) translate(key string) string {
	if b.labels == nil {
		return key
	}
	return b.labels.Translate(b.locale, key)
}

func pi(doc domain.Document) string {
	if v := doc.First(domain.FieldPI); v != "" {
		return v
	}
	return doc.First(domain.FieldPITopstruct)
}

func label(doc domain.Document) string {
	for _, field := range []string{domain.FieldLabel, domain.FieldTitle} {
		if v := doc.First(field); v != "" {
			return v
		}
	}
	return pi(doc)
}
