// Package query extracts user search terms from composed index query
// strings. The extraction must stay lexically compatible with the query
// strings produced by suffix composition and facet filters.
package query

import (
	"regexp"
	"strings"

	"github.com/biblios/discovery/internal/domain"
)

// Terms maps a field name to the ordered set of terms searched in it.
type Terms map[string][]string

// Add appends a term to a field, keeping the set property.
func (t Terms) Add(field, term string) {
	for _, existing := range t[field] {
		if existing == term {
			return
		}
	}
	t[field] = append(t[field], term)
}

// Contains reports whether the field already holds the term.
func (t Terms) Contains(field, term string) bool {
	for _, existing := range t[field] {
		if existing == term {
			return true
		}
	}
	return false
}

// supersetAliases maps aggregated-search superset fields onto the base
// fields used for highlighting.
var supersetAliases = map[string]string{
	domain.FieldSuperDefault:  domain.FieldDefault,
	domain.FieldSuperFulltext: domain.FieldFulltext,
}

var phrasePattern = regexp.MustCompile(`(?:[A-Za-z0-9_]+:)?"[^"]+"`)

// ExtractSearchTerms returns the literal terms a user searched for, per
// field. Terms inside NOT(...) blocks are never returned. Stopwords and the
// active discriminator value are dropped.
func ExtractSearchTerms(query, discriminatorValue string, stopwords map[string]struct{}) Terms {
	terms := Terms{}
	if query == "" {
		return terms
	}

	query = stripNotBlocks(query)

	// Quoted phrases first: splitting the remainder would break them.
	query = phrasePattern.ReplaceAllStringFunc(query, func(match string) string {
		field := domain.FieldDefault
		rest := match
		if idx := strings.Index(match, `:"`); idx > 0 {
			field = match[:idx]
			rest = match[idx+1:]
		}
		if base, ok := supersetAliases[field]; ok {
			field = base
		}
		phrase := strings.Trim(rest, `"`)
		if phrase != "" && !isStopword(phrase, discriminatorValue, stopwords) {
			terms.Add(field, phrase)
		}
		return " "
	})

	query = strings.ReplaceAll(query, "(", " ")
	query = strings.ReplaceAll(query, ")", " ")
	query = strings.ReplaceAll(query, " AND ", " ")
	query = strings.ReplaceAll(query, " OR ", " ")

	currentField := domain.FieldDefault
	for _, token := range strings.FieldsFunc(query, splitsToken) {
		if field, value, ok := strings.Cut(token, ":"); ok && field != "" {
			if base, aliased := supersetAliases[field]; aliased {
				field = base
			}
			currentField = field
			token = value
		}
		if token == "" || token == "AND" || token == "OR" || token == "NOT" {
			continue
		}
		token = strings.TrimSuffix(token, "*")
		if token == "" || isStopword(token, discriminatorValue, stopwords) {
			continue
		}
		terms.Add(currentField, token)
	}
	return terms
}

func splitsToken(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '-'
}

func isStopword(term, discriminatorValue string, stopwords map[string]struct{}) bool {
	if discriminatorValue != "" && term == discriminatorValue {
		return true
	}
	_, ok := stopwords[strings.ToLower(term)]
	return ok
}

// stripNotBlocks removes every NOT(...) block, balancing nested parentheses.
func stripNotBlocks(query string) string {
	for {
		idx := strings.Index(query, "NOT(")
		if idx < 0 {
			return query
		}
		depth := 0
		end := -1
		for i := idx + len("NOT("); i <= len(query)-1; i++ {
			switch query[i] {
			case '(':
				depth++
			case ')':
				if depth == 0 {
					end = i
				} else {
					depth--
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			// Unbalanced block: drop the rest of the query.
			return query[:idx]
		}
		query = query[:idx] + " " + query[end+1:]
	}
}
