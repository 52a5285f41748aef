package highlight

import (
	"strings"
	"testing"
)

func TestPhraseTerm(t *testing.T) {
	tests := []struct {
		name   string
		phrase string
		term   string
		want   string
	}{
		{
			name:   "simple match",
			phrase: "a history of Berlin",
			term:   "berlin",
			want:   "a history of " + MarkerStart + "Berlin" + MarkerEnd,
		},
		{
			name:   "no match",
			phrase: "a history of Hamburg",
			term:   "berlin",
			want:   "a history of Hamburg",
		},
		{
			name:   "punctuation-insensitive match",
			phrase: "Santa Monica.",
			term:   "Santa Monica.",
			want:   MarkerStart + "Santa Monica." + MarkerEnd,
		},
		{
			name:   "all occurrences wrapped",
			phrase: "berlin and berlin",
			term:   "berlin",
			want:   MarkerStart + "berlin" + MarkerEnd + " and " + MarkerStart + "berlin" + MarkerEnd,
		},
		{
			name:   "empty term",
			phrase: "anything",
			term:   "",
			want:   "anything",
		},
		{
			name:   "term longer than phrase",
			phrase: "ab",
			term:   "abcdef",
			want:   "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhraseTerm(tt.phrase, tt.term); got != tt.want {
				t.Errorf("PhraseTerm(%q, %q) = %q, want %q", tt.phrase, tt.term, got, tt.want)
			}
		})
	}
}

func TestPhraseTermIdempotent(t *testing.T) {
	once := PhraseTerm("Santa Monica.", "Santa Monica.")
	twice := PhraseTerm(once, "Santa Monica.")
	if once != twice {
		t.Errorf("second application changed the phrase: %q -> %q", once, twice)
	}
	if strings.Count(twice, MarkerStart) != 1 {
		t.Errorf("expected exactly one start marker, got %q", twice)
	}
}

func TestPhraseMultipleTerms(t *testing.T) {
	got := Phrase("berlin wall", []string{"berlin", "wall"})
	want := MarkerStart + "berlin" + MarkerEnd + " " + MarkerStart + "wall" + MarkerEnd
	if got != want {
		t.Errorf("Phrase() = %q, want %q", got, want)
	}
}

func TestFinalizeAndStrip(t *testing.T) {
	s := MarkerStart + "berlin" + MarkerEnd
	if got := Finalize(s, `<span class="hl">`, "</span>"); got != `<span class="hl">berlin</span>` {
		t.Errorf("Finalize() = %q", got)
	}
	if got := Strip(s); got != "berlin" {
		t.Errorf("Strip() = %q", got)
	}
}

func TestTruncateFulltextFallback(t *testing.T) {
	fulltext := strings.Repeat("word ", 100)
	got := TruncateFulltext(nil, fulltext, 50)
	if len(got) != 1 {
		t.Fatalf("expected one fragment, got %d", len(got))
	}
	if got[0] != fulltext[:200] {
		t.Errorf("fallback fragment = %q (len %d), want first 200 chars", got[0], len(got[0]))
	}
}

func TestTruncateFulltextShortText(t *testing.T) {
	got := TruncateFulltext([]string{"missing"}, "short text", 50)
	if len(got) != 1 || got[0] != "short text" {
		t.Errorf("TruncateFulltext() = %v, want the whole text", got)
	}
}

func TestTruncateFulltextHighlightsMatch(t *testing.T) {
	fulltext := strings.Repeat("lorem ipsum ", 30) + "berlin" + strings.Repeat(" dolor sit", 30)
	got := TruncateFulltext([]string{"berlin"}, fulltext, 80)
	if len(got) != 1 {
		t.Fatalf("expected one fragment, got %d", len(got))
	}
	if !strings.Contains(got[0], MarkerStart+"berlin"+MarkerEnd) {
		t.Errorf("fragment %q does not highlight the match", got[0])
	}
	if len(got[0]) > 80+len(MarkerStart)+len(MarkerEnd) {
		t.Errorf("fragment too long: %d runes", len(got[0]))
	}
}

func TestTruncateFulltextEmpty(t *testing.T) {
	if got := TruncateFulltext([]string{"x"}, "", 50); got != nil {
		t.Errorf("TruncateFulltext on empty text = %v, want nil", got)
	}
}

func TestStripDanglingTag(t *testing.T) {
	if got := stripDanglingTag("text <b>bold</b> and <i cut"); got != "text <b>bold</b> and " {
		t.Errorf("stripDanglingTag() = %q", got)
	}
	if got := stripDanglingTag("text <b>bold</b>"); got != "text <b>bold</b>" {
		t.Errorf("intact markup changed: %q", got)
	}
}
