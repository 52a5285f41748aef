// Package translate resolves display labels for stored index values per
// request locale.
package translate

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
)

// Registry holds label tables keyed by language tag and picks the best table
// for a requested locale.
type Registry struct {
	matcher language.Matcher
	tags    []language.Tag
	tables  map[language.Tag]map[string]string
}

// New builds a registry from locale → (key → label) tables. The first locale
// in sorted order acts as the fallback language.
func New(tables map[string]map[string]string) (*Registry, error) {
	r := &Registry{tables: map[language.Tag]map[string]string{}}
	locales := make([]string, 0, len(tables))
	for locale := range tables {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	for _, locale := range locales {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("translate: parse locale %q: %w", locale, err)
		}
		r.tags = append(r.tags, tag)
		r.tables[tag] = tables[locale]
	}
	if len(r.tags) == 0 {
		r.tags = []language.Tag{language.English}
		r.tables[language.English] = map[string]string{}
	}
	r.matcher = language.NewMatcher(r.tags)
	return r, nil
}

// Translate returns the label for a key in the closest matching locale. An
// unknown key falls through to the key itself.
func (r *Registry) Translate(locale, key string) string {
	if label, ok := r.table(locale)[key]; ok {
		return label
	}
	return key
}

// Has reports whether the key has a label in the closest matching locale.
func (r *Registry) Has(locale, key string) bool {
	_, ok := r.table(locale)[key]
	return ok
}

func (r *Registry) table(locale string) map[string]string {
	_, idx := language.MatchStrings(r.matcher, locale)
	return r.tables[r.tags[idx]]
}
