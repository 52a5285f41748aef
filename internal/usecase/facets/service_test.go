package facets

import (
	"reflect"
	"testing"

	"github.com/biblios/discovery/internal/translate"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	labels, err := translate.New(map[string]map[string]string{
		"en": {"dc_varia": "Varia"},
		"de": {"dc_varia": "Vermischtes"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(cfg, labels)
}

func availableValues(e *Engine, st *State, field string) []string {
	var out []string
	for _, item := range st.Available(field) {
		out = append(out, item.Value())
	}
	return out
}

func TestSelectAndRemove(t *testing.T) {
	e := newTestEngine(t, Config{HierarchicalFields: []string{"DC"}})
	st := NewState()

	if err := e.Select(st, "DC:varia"); err != nil {
		t.Fatal(err)
	}
	if err := e.Select(st, "DC:varia"); err != nil {
		t.Fatal(err)
	}
	if len(st.Current()) != 1 {
		t.Fatalf("duplicate selection not collapsed: %d items", len(st.Current()))
	}
	if !st.Current()[0].Hierarchical() {
		t.Error("DC selection should be hierarchical")
	}

	if err := e.Select(st, "no-colon"); err == nil {
		t.Error("expected error for link without field prefix")
	}

	e.Remove(st, "DC", "DC:varia")
	if len(st.Current()) != 0 {
		t.Error("Remove left the selection in place")
	}
}

func TestParseSerializeCurrent(t *testing.T) {
	e := newTestEngine(t, Config{DefaultField: "DC"})
	st := NewState()

	e.ParseCurrent(st, "DC:varia;;DOCSTRCT:monograph;;;;junk-less-colon")
	if len(st.Current()) != 3 {
		t.Fatalf("got %d items, want 3 (default field substituted for bare token)", len(st.Current()))
	}

	serialized := e.SerializeCurrent(st)
	st2 := NewState()
	e.ParseCurrent(st2, serialized)
	if len(st2.Current()) != 3 {
		t.Errorf("round trip lost items: %d", len(st2.Current()))
	}

	e.ParseCurrent(st, "-")
	if len(st.Current()) != 0 {
		t.Error("\"-\" should clear the selection")
	}
}

func TestFilterQueries(t *testing.T) {
	e := newTestEngine(t, Config{
		HierarchicalFields: []string{"DC"},
		RangeFields:        []string{"YEAR"},
	})
	st := NewState()
	for _, link := range []string{"DC:ocean", "DC:land", "DOCSTRCT:monograph", "YEAR:[1900 TO 1950]"} {
		if err := e.Select(st, link); err != nil {
			t.Fatal(err)
		}
	}

	got := e.FilterQueries(st, false)
	want := []string{
		`((DC:"ocean" OR DC:ocean.*) AND (DC:"land" OR DC:land.*))`,
		`DOCSTRCT:"monograph" AND YEAR:[1900 TO 1950]`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterQueries = %v, want %v", got, want)
	}

	got = e.FilterQueries(st, true)
	want[1] = `DOCSTRCT:"monograph"`
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterQueries(excludeRanges) = %v, want %v", got, want)
	}
}

func TestFilterQueriesAnyOperator(t *testing.T) {
	e := newTestEngine(t, Config{HierarchicalFields: []string{"DC"}, GroupAnyOperator: true})
	st := NewState()
	for _, link := range []string{"DC:ocean", "DC:land"} {
		if err := e.Select(st, link); err != nil {
			t.Fatal(err)
		}
	}

	got := e.FilterQueries(st, false)
	want := []string{`((DC:"ocean" OR DC:ocean.*) OR (DC:"land" OR DC:land.*))`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterQueries = %v, want %v", got, want)
	}
}

func TestPopulateAvailableSkipsReversedValues(t *testing.T) {
	e := newTestEngine(t, Config{Fields: []string{"DC"}})
	st := NewState()

	e.PopulateAvailable(st, map[string][]Count{
		"DC": {
			{Value: "varia", Count: 5},
			{Value: "\u0001airav", Count: 5},
			{Value: "maps", Count: 2},
		},
	}, "en")

	got := availableValues(e, st, "DC")
	if !reflect.DeepEqual(got, []string{"varia", "maps"}) {
		t.Errorf("available = %v, reversed value must never surface", got)
	}
}

func TestPopulateAvailableSortPolicies(t *testing.T) {
	buckets := []Count{
		{Value: "10", Count: 1},
		{Value: "2", Count: 9},
		{Value: "x1", Count: 5},
	}

	tests := []struct {
		order string
		want  []string
	}{
		{order: "numerical_asc", want: []string{"2", "10", "x1"}},
		{order: "numerical_desc", want: []string{"x1", "10", "2"}},
		{order: "alphabetical", want: []string{"10", "2", "x1"}},
		{order: "", want: []string{"2", "x1", "10"}}, // count desc
	}

	for _, tt := range tests {
		t.Run("order="+tt.order, func(t *testing.T) {
			e := newTestEngine(t, Config{SortOrder: map[string]string{"YEAR": tt.order}})
			st := NewState()
			e.PopulateAvailable(st, map[string][]Count{"YEAR": buckets}, "en")
			if got := availableValues(e, st, "YEAR"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("available = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPopulateAvailablePriorityValues(t *testing.T) {
	e := newTestEngine(t, Config{
		PriorityValues: map[string][]string{"DOCSTRCT": {"map", "monograph"}},
	})
	st := NewState()
	e.PopulateAvailable(st, map[string][]Count{
		"DOCSTRCT": {
			{Value: "monograph", Count: 50},
			{Value: "periodical", Count: 30},
			{Value: "map", Count: 1},
		},
	}, "en")

	got := availableValues(e, st, "DOCSTRCT")
	want := []string{"map", "monograph", "periodical"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("available = %v, want %v (priority order first)", got, want)
	}
}

func TestPopulateAvailableTranslatesLabels(t *testing.T) {
	e := newTestEngine(t, Config{})
	st := NewState()
	e.PopulateAvailable(st, map[string][]Count{
		"DC": {{Value: "dc_varia", Count: 3}},
	}, "de")

	item := st.Available("DC")[0]
	if item.TranslatedLabel() != "Vermischtes" {
		t.Errorf("translated label = %q", item.TranslatedLabel())
	}
}

func TestPopulateAvailableRangeBounds(t *testing.T) {
	e := newTestEngine(t, Config{RangeFields: []string{"YEAR"}})
	st := NewState()
	e.PopulateAvailable(st, map[string][]Count{
		"YEAR": {
			{Value: "1950", Count: 1},
			{Value: "1899", Count: 2},
			{Value: "2001", Count: 3},
			{Value: "unknown", Count: 4},
		},
	}, "en")

	lo, hi := st.RangeBounds("YEAR")
	if lo != "1899" || hi != "2001" {
		t.Errorf("range bounds = %q..%q, want 1899..2001", lo, hi)
	}
}

func TestLimitedAvailable(t *testing.T) {
	e := newTestEngine(t, Config{InitialElementCount: 2})
	st := NewState()
	e.PopulateAvailable(st, map[string][]Count{
		"DC": {
			{Value: "a", Count: 9},
			{Value: "b", Count: 8},
			{Value: "c", Count: 7},
			{Value: "d", Count: 6},
		},
	}, "en")

	if got := e.LimitedAvailable(st, "DC"); len(got) != 2 {
		t.Errorf("limited list has %d items, want 2", len(got))
	}

	// Selected values disappear from the available list.
	if err := e.Select(st, "DC:a"); err != nil {
		t.Fatal(err)
	}
	got := e.LimitedAvailable(st, "DC")
	if len(got) != 2 || got[0].Value() != "b" {
		t.Errorf("limited list = %v", availableValues(e, st, "DC"))
	}

	st.SetExpanded("DC", true)
	if got := e.LimitedAvailable(st, "DC"); len(got) != 3 {
		t.Errorf("expanded list has %d items, want 3", len(got))
	}
}
