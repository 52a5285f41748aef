// Package facet holds the facet item value type and the serialized facet
// string format exchanged with the UI layer.
package facet

import (
	"fmt"
	"strings"
)

// Separator between serialized facet tokens.
const Separator = ";;"

// Escape sequences for characters that would break the serialized form or a
// URL path segment.
const (
	slashEscape     = "U002F"
	backslashEscape = "U005C"
)

// Item is a single selectable field/value filter. The hierarchical property
// is fixed at construction; the link is reparsed into field/value parts
// whenever it is set.
type Item struct {
	field           string
	value           string
	value2          string
	link            string
	label           string
	translatedLabel string
	count           int64
	hierarchical    bool
}

// NewItem validates and creates a facet item from a field:value link.
// Links without a colon are rejected.
func NewItem(link string, hierarchical bool) (*Item, error) {
	it := &Item{hierarchical: hierarchical}
	if err := it.SetLink(link); err != nil {
		return nil, err
	}
	return it, nil
}

// NewItemWithLabel creates a facet item carrying a display label.
func NewItemWithLabel(link, label, translatedLabel string, count int64, hierarchical bool) (*Item, error) {
	it, err := NewItem(link, hierarchical)
	if err != nil {
		return nil, err
	}
	it.label = label
	it.translatedLabel = translatedLabel
	it.count = count
	return it, nil
}

// SetLink replaces the raw link and reparses field, value, and the optional
// range upper bound.
func (it *Item) SetLink(link string) error {
	field, value, value2, err := parseLink(link)
	if err != nil {
		return err
	}
	it.link = link
	it.field = field
	it.value = value
	it.value2 = value2
	if it.label == "" {
		it.label = value
	}
	return nil
}

// parseLink splits a link on the first colon. A bracketed value containing
// " TO " is a range and yields both bounds.
func parseLink(link string) (field, value, value2 string, err error) {
	field, rest, found := strings.Cut(link, ":")
	if !found || field == "" {
		return "", "", "", fmt.Errorf("facet link %q lacks a field prefix", link)
	}
	if strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]") && strings.Contains(rest, " TO ") {
		inner := rest[1 : len(rest)-1]
		lo, hi, _ := strings.Cut(inner, " TO ")
		return field, lo, hi, nil
	}
	return field, rest, "", nil
}

// Field returns the index field name.
func (it *Item) Field() string { return it.field }

// Value returns the facet value (or the range lower bound).
func (it *Item) Value() string { return it.value }

// Value2 returns the range upper bound, empty for plain values.
func (it *Item) Value2() string { return it.value2 }

// Link returns the raw field:value link.
func (it *Item) Link() string { return it.link }

// Label returns the display label.
func (it *Item) Label() string { return it.label }

// SetLabel sets the display label.
func (it *Item) SetLabel(label string) { it.label = label }

// TranslatedLabel returns the locale-translated label, if any.
func (it *Item) TranslatedLabel() string { return it.translatedLabel }

// SetTranslatedLabel sets the locale-translated label.
func (it *Item) SetTranslatedLabel(label string) { it.translatedLabel = label }

// Count returns the number of records carrying this value.
func (it *Item) Count() int64 { return it.count }

// SetCount sets the record count.
func (it *Item) SetCount(count int64) { it.count = count }

// Hierarchical reports whether a selection also matches descendant values.
func (it *Item) Hierarchical() bool { return it.hierarchical }

// IsRange reports whether the item carries a range upper bound.
func (it *Item) IsRange() bool { return it.value2 != "" }

// Equal reports facet identity, defined by (field, link).
func (it *Item) Equal(other *Item) bool {
	if other == nil {
		return false
	}
	return it.field == other.field && it.link == other.link
}

// QueryEscapedLink returns the index query clause for this item.
// Hierarchical items match the value and all dot-delimited descendants.
func (it *Item) QueryEscapedLink() string {
	value := escapeQueryValue(it.value)
	if it.hierarchical {
		return fmt.Sprintf("(%s:\"%s\" OR %s:%s.*)", it.field, value, it.field, value)
	}
	if it.IsRange() {
		return fmt.Sprintf("%s:[%s TO %s]", it.field, it.value, it.value2)
	}
	return fmt.Sprintf("%s:\"%s\"", it.field, value)
}

// escapeQueryValue escapes characters with query syntax meaning inside a
// quoted clause.
func escapeQueryValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}

// SerializeList renders items into the field1:value1;;field2:value2 wire
// form, escaping slashes so the result survives a URL path segment. An empty
// list serializes to "-".
func SerializeList(items []*Item) string {
	if len(items) == 0 {
		return "-"
	}
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString(escapeValue(it.Link()))
		sb.WriteString(Separator)
	}
	return sb.String()
}

// ParseList parses a serialized facet string. Malformed tokens are skipped;
// tokens without a field prefix fall back to defaultField. A lone "-" means
// no facets.
func ParseList(s, defaultField string, hierarchicalFields []string) []*Item {
	if s == "" || s == "-" {
		return nil
	}
	var items []*Item
	for _, token := range strings.Split(s, Separator) {
		token = unescapeValue(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		if !strings.Contains(token, ":") {
			token = defaultField + ":" + token
		}
		field, _, _ := strings.Cut(token, ":")
		it, err := NewItem(token, containsField(hierarchicalFields, field))
		if err != nil {
			continue
		}
		items = append(items, it)
	}
	return items
}

func containsField(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

func escapeValue(v string) string {
	v = strings.ReplaceAll(v, `\`, backslashEscape)
	return strings.ReplaceAll(v, "/", slashEscape)
}

func unescapeValue(v string) string {
	v = strings.ReplaceAll(v, slashEscape, "/")
	return strings.ReplaceAll(v, backslashEscape, `\`)
}
