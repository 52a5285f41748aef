// Package hit models the typed search hit tree assembled from index
// documents.
package hit

import (
	"github.com/biblios/discovery/internal/domain"
)

// Type classifies a search hit node.
type Type string

// Hit types.
const (
	TypeDocstruct    Type = "DOCSTRCT"
	TypePage         Type = "PAGE"
	TypeMetadata     Type = "METADATA"
	TypeEvent        Type = "EVENT"
	TypeUGC          Type = "UGC"
	TypeGroup        Type = "GROUP"
	TypeOverviewPage Type = "OVERVIEWPAGE"
)

// TypeFromDocType maps an index document type onto a hit type.
func TypeFromDocType(docType string) Type {
	switch docType {
	case domain.DocTypePage:
		return TypePage
	case domain.DocTypeMetadata:
		return TypeMetadata
	case domain.DocTypeEvent:
		return TypeEvent
	case domain.DocTypeUGC:
		return TypeUGC
	case domain.DocTypeGroup:
		return TypeGroup
	default:
		return TypeDocstruct
	}
}

// PopulationState tracks lazy child population.
type PopulationState int

// Population states. A hit moves forward only, driven by PopulateChildren.
const (
	Unexpanded PopulationState = iota
	PartiallyPopulated
	FullyPopulated
)

// StructureStub is one level of the document structure hierarchy shown with
// a hit.
type StructureStub struct {
	Label     string `json:"label"`
	Docstruct string `json:"docstruct"`
}

// MetadataPair is a found-metadata entry carrying a highlighted value.
type MetadataPair struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// BrowseElement is the presentational summary of a hit.
type BrowseElement struct {
	PI           string          `json:"pi"`
	Label        string          `json:"label"`
	ShortLabel   string          `json:"shortLabel"`
	Thumbnail    string          `json:"thumbnail,omitempty"`
	Structure    []StructureStub `json:"structure,omitempty"`
	MimeType     string          `json:"mimeType,omitempty"`
	ImageNumber  int             `json:"imageNumber,omitempty"`
	AccessDenied bool            `json:"accessDenied,omitempty"`
}

// Hit is one node of the search hit tree. Children are populated lazily and
// incrementally from a buffer of unprocessed child documents.
type Hit struct {
	Type          Type           `json:"type"`
	Element       *BrowseElement `json:"element"`
	Children      []*Hit         `json:"children,omitempty"`
	HitTypeCounts map[Type]int   `json:"hitTypeCounts,omitempty"`
	FoundMetadata []MetadataPair `json:"foundMetadata,omitempty"`
	Fragments     []string       `json:"fragments,omitempty"`

	state     PopulationState
	ownerID   string
	childDocs []domain.Document
	ownerDocs map[string]domain.Document
}

// New creates a hit node of the given type.
func New(t Type, element *BrowseElement) *Hit {
	return &Hit{
		Type:          t,
		Element:       element,
		HitTypeCounts: map[Type]int{},
	}
}

// State returns the population state.
func (h *Hit) State() PopulationState { return h.state }

// BufferChildDocs appends unprocessed child documents for later population.
func (h *Hit) BufferChildDocs(docs []domain.Document) {
	h.childDocs = append(h.childDocs, docs...)
}

// BufferedChildCount returns the number of unprocessed child documents.
func (h *Hit) BufferedChildCount() int { return len(h.childDocs) }

// TakeChildDocs removes and returns at most n buffered child documents,
// advancing the population state. When the buffer drains, the owner-document
// cache is released.
func (h *Hit) TakeChildDocs(n int) []domain.Document {
	if n <= 0 || len(h.childDocs) == 0 {
		if len(h.childDocs) == 0 {
			h.finishPopulation()
		}
		return nil
	}
	if n > len(h.childDocs) {
		n = len(h.childDocs)
	}
	taken := h.childDocs[:n]
	h.childDocs = h.childDocs[n:]
	if len(h.childDocs) == 0 {
		h.finishPopulation()
	} else {
		h.state = PartiallyPopulated
	}
	return taken
}

func (h *Hit) finishPopulation() {
	h.state = FullyPopulated
	h.ownerDocs = nil
}

// OwnerDoc returns a cached owner document by its IDDOC.
func (h *Hit) OwnerDoc(iddoc string) (domain.Document, bool) {
	doc, ok := h.ownerDocs[iddoc]
	return doc, ok
}

// CacheOwnerDoc stores an owner document for later child resolution.
func (h *Hit) CacheOwnerDoc(iddoc string, doc domain.Document) {
	if h.ownerDocs == nil {
		h.ownerDocs = map[string]domain.Document{}
	}
	h.ownerDocs[iddoc] = doc
}

// AddChild appends a child node and bumps the per-type count.
func (h *Hit) AddChild(child *Hit) {
	h.Children = append(h.Children, child)
	h.HitTypeCounts[child.Type]++
}

// FindChildByOwner returns the direct child whose element matches the given
// IDDOC owner reference, if any.
func (h *Hit) FindChildByOwner(iddoc string) *Hit {
	for _, c := range h.Children {
		if c.ownerID == iddoc {
			return c
		}
	}
	return nil
}

// SetOwnerID tags the hit with the IDDOC of the index document it was built
// from, so dependent documents can find their owner hit.
func (h *Hit) SetOwnerID(iddoc string) { h.ownerID = iddoc }

// OwnerID returns the IDDOC this hit was built from, empty if untagged.
func (h *Hit) OwnerID() string { return h.ownerID }
