package hit

import (
	"testing"

	"github.com/biblios/discovery/internal/domain"
)

func TestTypeFromDocType(t *testing.T) {
	tests := []struct {
		docType string
		want    Type
	}{
		{"PAGE", TypePage},
		{"METADATA", TypeMetadata},
		{"EVENT", TypeEvent},
		{"UGC", TypeUGC},
		{"GROUP", TypeGroup},
		{"DOCSTRCT", TypeDocstruct},
		{"", TypeDocstruct},
	}
	for _, tt := range tests {
		if got := TypeFromDocType(tt.docType); got != tt.want {
			t.Errorf("TypeFromDocType(%q) = %v, want %v", tt.docType, got, tt.want)
		}
	}
}

func TestTakeChildDocsIncremental(t *testing.T) {
	h := New(TypeDocstruct, &BrowseElement{PI: "PPN123"})
	docs := []domain.Document{
		{"IDDOC": {"1"}},
		{"IDDOC": {"2"}},
		{"IDDOC": {"3"}},
	}
	h.BufferChildDocs(docs)
	h.CacheOwnerDoc("99", domain.Document{"IDDOC": {"99"}})

	if h.State() != Unexpanded {
		t.Fatalf("state = %v, want Unexpanded", h.State())
	}

	first := h.TakeChildDocs(2)
	if len(first) != 2 {
		t.Fatalf("TakeChildDocs(2) returned %d docs", len(first))
	}
	if h.State() != PartiallyPopulated {
		t.Errorf("state = %v, want PartiallyPopulated", h.State())
	}
	if _, ok := h.OwnerDoc("99"); !ok {
		t.Error("owner cache dropped before buffer drained")
	}

	second := h.TakeChildDocs(5)
	if len(second) != 1 {
		t.Fatalf("TakeChildDocs(5) returned %d docs, want 1", len(second))
	}
	if h.State() != FullyPopulated {
		t.Errorf("state = %v, want FullyPopulated", h.State())
	}
	if _, ok := h.OwnerDoc("99"); ok {
		t.Error("owner cache must be released once the buffer is exhausted")
	}
}

func TestAddChildCountsTypes(t *testing.T) {
	root := New(TypeDocstruct, &BrowseElement{})
	root.AddChild(New(TypePage, &BrowseElement{}))
	root.AddChild(New(TypePage, &BrowseElement{}))
	root.AddChild(New(TypeMetadata, &BrowseElement{}))

	if root.HitTypeCounts[TypePage] != 2 {
		t.Errorf("page count = %d, want 2", root.HitTypeCounts[TypePage])
	}
	if root.HitTypeCounts[TypeMetadata] != 1 {
		t.Errorf("metadata count = %d, want 1", root.HitTypeCounts[TypeMetadata])
	}
	if len(root.Children) != 3 {
		t.Errorf("children = %d, want 3", len(root.Children))
	}
}

func TestFindChildByOwner(t *testing.T) {
	root := New(TypeDocstruct, &BrowseElement{})
	child := New(TypeDocstruct, &BrowseElement{})
	child.SetOwnerID("42")
	root.AddChild(child)

	if got := root.FindChildByOwner("42"); got != child {
		t.Error("FindChildByOwner did not return the tagged child")
	}
	if got := root.FindChildByOwner("43"); got != nil {
		t.Error("FindChildByOwner returned a hit for an unknown owner")
	}
}
