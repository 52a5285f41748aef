// Package highlight wraps search term matches in placeholder sentinels.
// Working with sentinels instead of markup lets repeated highlighting passes
// run over already-processed text without corrupting it; Finalize swaps the
// sentinels for presentation markup in a single last pass.
package highlight

import (
	"strings"
	"unicode"
)

// Placeholder sentinels. Distinct start/end tokens so nested passes can
// detect already-wrapped matches.
const (
	MarkerStart = "##HLS##"
	MarkerEnd   = "##HLE##"
)

// Phrase applies highlighting for every term contained case-insensitively in
// the phrase. Later terms run against the already-partially-highlighted
// string.
func Phrase(phrase string, terms []string) string {
	for _, term := range terms {
		phrase = PhraseTerm(phrase, term)
	}
	return phrase
}

// PhraseTerm wraps every non-overlapping occurrence of a single term. Both
// phrase and term are normalized (non-alphanumeric runes other than '#'
// become spaces, letters lowercased) so that matches survive punctuation
// differences, while offsets stay aligned with the original text. Matches
// that are already wrapped are left alone.
func PhraseTerm(phrase, term string) string {
	if phrase == "" || term == "" {
		return phrase
	}

	phraseRunes := []rune(phrase)
	normPhrase := normalize(phraseRunes)
	normTerm := normalize([]rune(term))
	if len(normTerm) == 0 || len(normTerm) > len(normPhrase) {
		return phrase
	}

	startRunes := []rune(MarkerStart)
	endRunes := []rune(MarkerEnd)

	// Collect non-overlapping match offsets first, then rebuild once.
	var matches [][2]int
	for i := 0; i+len(normTerm) <= len(normPhrase); {
		if !runesEqual(normPhrase[i:i+len(normTerm)], normTerm) {
			i++
			continue
		}
		end := i + len(normTerm)
		if !wrapped(phraseRunes, i, end, startRunes, endRunes) {
			matches = append(matches, [2]int{i, end})
		}
		i = end
	}
	if len(matches) == 0 {
		return phrase
	}

	var sb strings.Builder
	prev := 0
	for _, m := range matches {
		sb.WriteString(string(phraseRunes[prev:m[0]]))
		sb.WriteString(MarkerStart)
		sb.WriteString(string(phraseRunes[m[0]:m[1]]))
		sb.WriteString(MarkerEnd)
		prev = m[1]
	}
	sb.WriteString(string(phraseRunes[prev:]))
	return sb.String()
}

// Finalize replaces the sentinels with presentation markup.
func Finalize(s, before, after string) string {
	s = strings.ReplaceAll(s, MarkerStart, before)
	return strings.ReplaceAll(s, MarkerEnd, after)
}

// Strip removes all sentinels.
func Strip(s string) string {
	return Finalize(s, "", "")
}

// wrapped reports whether the match at [start,end) is already enclosed in
// sentinels.
func wrapped(phrase []rune, start, end int, markerStart, markerEnd []rune) bool {
	if start < len(markerStart) || end+len(markerEnd) > len(phrase) {
		return false
	}
	return runesEqual(phrase[start-len(markerStart):start], markerStart) &&
		runesEqual(phrase[end:end+len(markerEnd)], markerEnd)
}

// normalize lowercases letters and blanks every rune that is neither
// alphanumeric nor '#', preserving rune count.
func normalize(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			out[i] = unicode.ToLower(r)
		case r == '#':
			out[i] = r
		default:
			out[i] = ' '
		}
	}
	return out
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
