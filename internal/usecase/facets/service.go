// Package facets translates between the serialized facet selection, the
// in-memory item lists, and the filter-query fragments sent to the index,
// and applies the field-specific sort and limit policies to available value
// lists.
package facets

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/biblios/discovery/internal/domain"
	"github.com/biblios/discovery/internal/domain/facet"
	"github.com/biblios/discovery/internal/translate"
)

// Count is one facet bucket from the index response.
type Count struct {
	Value string
	Count int64
}

// Config holds the drill-down policies.
type Config struct {
	Fields              []string
	HierarchicalFields  []string
	RangeFields         []string
	SortOrder           map[string]string
	PriorityValues      map[string][]string
	InitialElementCount int
	// GroupAnyOperator OR-joins multiple hierarchical selections instead of
	// AND-joining them (advanced search "match any" group operator).
	GroupAnyOperator bool
	DefaultField     string
}

// Engine applies the faceting policies. One engine serves all sessions;
// per-session data lives in State.
type Engine struct {
	cfg    Config
	labels *translate.Registry
}

// New creates a facet engine.
func New(cfg Config, labels *translate.Registry) *Engine {
	if cfg.DefaultField == "" {
		cfg.DefaultField = domain.FieldCollection
	}
	return &Engine{cfg: cfg, labels: labels}
}

// Fields returns the configured facet fields.
func (e *Engine) Fields() []string { return e.cfg.Fields }

// RangeFields returns the configured range facet fields.
func (e *Engine) RangeFields() []string { return e.cfg.RangeFields }

// ParseCurrent replaces the selected filters from their serialized form.
// Malformed tokens are skipped.
func (e *Engine) ParseCurrent(st *State, serialized string) {
	st.current = nil
	for _, item := range facet.ParseList(serialized, e.cfg.DefaultField, e.cfg.HierarchicalFields) {
		if !st.hasCurrent(item) {
			st.current = append(st.current, item)
		}
	}
}

// SerializeCurrent renders the selected filters for a URL.
func (e *Engine) SerializeCurrent(st *State) string {
	return facet.SerializeList(st.current)
}

// Select adds a facet filter by link. Explicit construction, so a malformed
// link is an error.
func (e *Engine) Select(st *State, link string) error {
	field, _, found := strings.Cut(link, ":")
	if !found {
		return fmt.Errorf("select facet: link %q lacks a field prefix", link)
	}
	item, err := facet.NewItem(link, e.isHierarchical(field))
	if err != nil {
		return fmt.Errorf("select facet: %w", err)
	}
	if st.hasCurrent(item) {
		return nil
	}
	st.current = append(st.current, item)
	return nil
}

// Remove drops a selected facet filter by field and link.
func (e *Engine) Remove(st *State, field, link string) {
	kept := st.current[:0]
	for _, c := range st.current {
		if c.Field() == field && c.Link() == link {
			continue
		}
		kept = append(kept, c)
	}
	st.current = kept
}

// FilterQueries builds the filter-query fragments for the current
// selection: one combined fragment for hierarchical selections and one
// AND-conjunction for regular ones. Range facets can be excluded when a
// separate slider UI issues its own bound query.
func (e *Engine) FilterQueries(st *State, excludeRanges bool) []string {
	var hierarchical []string
	var regular []string

	for _, item := range st.current {
		switch {
		case item.Hierarchical():
			hierarchical = append(hierarchical, item.QueryEscapedLink())
		case item.IsRange() && excludeRanges:
			continue
		default:
			regular = append(regular, item.QueryEscapedLink())
		}
	}

	var out []string
	if len(hierarchical) > 0 {
		op := " AND "
		if e.cfg.GroupAnyOperator {
			op = " OR "
		}
		out = append(out, "("+strings.Join(hierarchical, op)+")")
	}
	if len(regular) > 0 {
		out = append(out, strings.Join(regular, " AND "))
	}
	return out
}

// PopulateAvailable replaces the available value lists from the facet counts
// of one query execution. Reversed values never surface; each list is sorted
// per the field policy with priority values pulled to the front.
func (e *Engine) PopulateAvailable(st *State, counts map[string][]Count, locale string) {
	st.available = map[string][]*facet.Item{}
	for field, buckets := range counts {
		items := e.buildItems(field, buckets, locale)
		e.sortItems(field, items)
		e.applyPriority(field, items)
		st.available[field] = items

		if e.isRange(field) {
			e.updateRangeBounds(st, field, buckets)
		}
	}
}

func (e *Engine) buildItems(field string, buckets []Count, locale string) []*facet.Item {
	items := make([]*facet.Item, 0, len(buckets))
	for _, b := range buckets {
		if b.Value == "" || rune(b.Value[0]) == domain.ReversedValuePrefix {
			continue
		}
		label := b.Value
		translated := ""
		if e.labels != nil {
			translated = e.labels.Translate(locale, b.Value)
			if translated == b.Value {
				translated = ""
			}
		}
		item, err := facet.NewItemWithLabel(field+":"+b.Value, label, translated, b.Count, e.isHierarchical(field))
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

// sortItems orders a value list per the configured field policy: numeric,
// alphabetical by label, or hit count descending by default.
func (e *Engine) sortItems(field string, items []*facet.Item) {
	order := e.cfg.SortOrder[field]
	switch order {
	case "numerical", "numerical_asc", "numerical_desc":
		desc := order == "numerical_desc"
		sort.SliceStable(items, func(i, j int) bool {
			less := numericLess(items[i].Value(), items[j].Value())
			if desc {
				return !less && items[i].Value() != items[j].Value()
			}
			return less
		})
	case "alphabetical", "alphabetical_asc", "alphabetical_desc":
		desc := order == "alphabetical_desc"
		sort.SliceStable(items, func(i, j int) bool {
			if desc {
				return items[i].Label() > items[j].Label()
			}
			return items[i].Label() < items[j].Label()
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Count() > items[j].Count()
		})
	}
}

// numericLess compares values as integers, falling back to lexical
// comparison when either side does not parse.
func numericLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// applyPriority moves configured priority values to the front of the sorted
// list, in configured order.
func (e *Engine) applyPriority(field string, items []*facet.Item) {
	priority := e.cfg.PriorityValues[field]
	if len(priority) == 0 {
		return
	}
	rank := map[string]int{}
	for i, v := range priority {
		rank[v] = i
	}
	sort.SliceStable(items, func(i, j int) bool {
		ri, iOK := rank[items[i].Value()]
		rj, jOK := rank[items[j].Value()]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		default:
			return false
		}
	})
}

// LimitedAvailable returns the available list for a field with the already
// selected values removed, truncated to the initial element count unless the
// field is expanded.
func (e *Engine) LimitedAvailable(st *State, field string) []*facet.Item {
	full := st.available[field]
	out := make([]*facet.Item, 0, len(full))
	for _, item := range full {
		if !st.hasCurrent(item) {
			out = append(out, item)
		}
	}
	if !st.Expanded(field) && e.cfg.InitialElementCount > 0 && len(out) > e.cfg.InitialElementCount {
		out = out[:e.cfg.InitialElementCount]
	}
	return out
}

func (e *Engine) updateRangeBounds(st *State, field string, buckets []Count) {
	var minVal, maxVal string
	var haveNumeric bool
	for _, b := range buckets {
		n, err := strconv.Atoi(b.Value)
		if err != nil {
			continue
		}
		if !haveNumeric {
			minVal, maxVal = b.Value, b.Value
			haveNumeric = true
			continue
		}
		if lo, _ := strconv.Atoi(minVal); n < lo {
			minVal = b.Value
		}
		if hi, _ := strconv.Atoi(maxVal); n > hi {
			maxVal = b.Value
		}
	}
	if haveNumeric {
		st.minValues[field] = minVal
		st.maxValues[field] = maxVal
	}
}

func (e *Engine) isHierarchical(field string) bool {
	return contains(e.cfg.HierarchicalFields, field)
}

func (e *Engine) isRange(field string) bool {
	return contains(e.cfg.RangeFields, field)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
