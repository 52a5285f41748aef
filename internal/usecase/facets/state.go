package facets

import (
	"github.com/biblios/discovery/internal/domain/facet"
)

// State is the per-session faceting state: available values per field,
// currently selected filters, and UI expand/collapse flags.
type State struct {
	available map[string][]*facet.Item
	current   []*facet.Item
	expanded  map[string]bool
	minValues map[string]string
	maxValues map[string]string
}

// NewState creates empty faceting state.
func NewState() *State {
	return &State{
		available: map[string][]*facet.Item{},
		expanded:  map[string]bool{},
		minValues: map[string]string{},
		maxValues: map[string]string{},
	}
}

// Current returns the selected facet filters.
func (st *State) Current() []*facet.Item { return st.current }

// Available returns the unfiltered available value list for a field.
func (st *State) Available(field string) []*facet.Item { return st.available[field] }

// Expanded reports whether the drill-down for a field is expanded.
func (st *State) Expanded(field string) bool { return st.expanded[field] }

// SetExpanded toggles the drill-down expansion for a field.
func (st *State) SetExpanded(field string, expanded bool) {
	st.expanded[field] = expanded
}

// RangeBounds returns the cached min/max values for a range facet field.
func (st *State) RangeBounds(field string) (string, string) {
	return st.minValues[field], st.maxValues[field]
}

// hasCurrent reports whether a facet with identical field and link is
// already selected.
func (st *State) hasCurrent(item *facet.Item) bool {
	for _, c := range st.current {
		if c.Equal(item) {
			return true
		}
	}
	return false
}
