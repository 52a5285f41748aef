package highlight

import (
	"math/rand"
	"strings"
)

// fallbackLength is the number of leading characters returned when no search
// term occurs in the fulltext.
const fallbackLength = 200

// minDistanceFromEdge keeps a match away from the fragment boundary when the
// window position is randomized.
const minDistanceFromEdge = 10

// TruncateFulltext extracts one highlighted fragment of roughly targetLength
// characters per term found in the fulltext. The match is placed at a random
// position inside the window so it does not always sit flush against the
// fragment edge; the window is then trimmed to word boundaries and a
// trailing half-open HTML tag is stripped. When no term is found, the first
// 200 characters are returned unhighlighted.
func TruncateFulltext(terms []string, fulltext string, targetLength int) []string {
	if fulltext == "" {
		return nil
	}
	if targetLength <= 0 {
		targetLength = fallbackLength
	}

	runes := []rune(fulltext)
	lower := strings.ToLower(fulltext)

	var fragments []string
	for _, term := range terms {
		if term == "" {
			continue
		}
		byteIdx := strings.Index(lower, strings.ToLower(term))
		if byteIdx < 0 {
			continue
		}
		matchStart := len([]rune(fulltext[:byteIdx]))
		matchEnd := matchStart + len([]rune(term))

		start, end := window(len(runes), matchStart, matchEnd, targetLength)
		fragment := string(runes[start:end])
		fragment = trimWordBoundaries(fragment, start > 0, end < len(runes))
		fragment = Phrase(fragment, terms)
		fragment = stripDanglingTag(fragment)
		fragments = append(fragments, fragment)
	}

	if len(fragments) == 0 {
		if len(runes) > fallbackLength {
			return []string{string(runes[:fallbackLength])}
		}
		return []string{fulltext}
	}
	return fragments
}

// window places a targetLength window around the match, with the match
// offset randomized inside [minDistanceFromEdge, targetLength-minDistanceFromEdge].
func window(textLen, matchStart, matchEnd, targetLength int) (int, int) {
	offset := minDistanceFromEdge
	if span := targetLength - 2*minDistanceFromEdge; span > 0 {
		offset += rand.Intn(span)
	}

	start := matchStart - offset
	if start < 0 {
		start = 0
	}
	end := start + targetLength
	if end < matchEnd {
		end = matchEnd
	}
	if end > textLen {
		end = textLen
	}
	return start, end
}

// trimWordBoundaries drops word halves cut off by the window edges.
func trimWordBoundaries(s string, cutLeft, cutRight bool) string {
	if cutLeft {
		if idx := strings.IndexAny(s, " \t\n"); idx >= 0 && idx < len(s)/2 {
			s = strings.TrimLeft(s[idx:], " \t\n")
		}
	}
	if cutRight {
		if idx := strings.LastIndexAny(s, " \t\n"); idx > len(s)/2 {
			s = strings.TrimRight(s[:idx], " \t\n")
		}
	}
	return s
}

// stripDanglingTag removes a trailing HTML tag that truncation cut in half.
func stripDanglingTag(s string) string {
	open := strings.LastIndex(s, "<")
	if open >= 0 && !strings.Contains(s[open:], ">") {
		return s[:open]
	}
	return s
}
