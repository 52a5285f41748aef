package domain

import "strconv"

// Document is an index document: a multi-valued field map as returned by the
// external inverted-index service.
type Document map[string][]string

// First returns the first value of a field, or "".
func (d Document) First(field string) string {
	if vs := d[field]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns all values of a field.
func (d Document) Values(field string) []string { return d[field] }

// Has reports whether the field is present with at least one value.
func (d Document) Has(field string) bool { return len(d[field]) > 0 }

// Int parses the first value of a field as an integer.
func (d Document) Int(field string) (int, bool) {
	v := d.First(field)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
