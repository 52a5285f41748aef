package translate

import "testing"

func TestTranslate(t *testing.T) {
	r, err := New(map[string]map[string]string{
		"en": {"dc_varia": "Varia", "monograph": "Monograph"},
		"de": {"dc_varia": "Varia", "monograph": "Monographie"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := r.Translate("de", "monograph"); got != "Monographie" {
		t.Errorf("Translate(de) = %q", got)
	}
	if got := r.Translate("en-US", "monograph"); got != "Monograph" {
		t.Errorf("Translate(en-US) = %q", got)
	}
	if got := r.Translate("de", "unknown_key"); got != "unknown_key" {
		t.Errorf("unknown key should fall through, got %q", got)
	}
}

func TestTranslateInvalidLocale(t *testing.T) {
	if _, err := New(map[string]map[string]string{"!!": {}}); err == nil {
		t.Error("expected error for invalid locale tag")
	}
}

func TestEmptyRegistry(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Translate("de", "key"); got != "key" {
		t.Errorf("empty registry should fall through, got %q", got)
	}
	if r.Has("de", "key") {
		t.Error("empty registry has no labels")
	}
}
