package match

import (
	"testing"
	"time"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestMatchesOnPeriod_UndatedGoalAcceptsEverything(t *testing.T) {
	goal := Goal{ID: "g1", Title: "Read more"}

	timestamps := []time.Time{
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, ts := range timestamps {
		if !MatchesOnPeriod(Action{LoggedAt: ts}, goal) {
			t.Errorf("undated goal rejected action at %v", ts)
		}
	}
}

func TestMatchesOnPeriod_InclusiveBoundaries(t *testing.T) {
	goal := Goal{
		StartDate:  datePtr(2025, 3, 1),
		TargetDate: datePtr(2025, 3, 31),
	}

	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{"exactly start", *goal.StartDate, true},
		{"exactly target", *goal.TargetDate, true},
		{"inside", time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC), true},
		{"before start", time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC), false},
		{"after target", time.Date(2025, 3, 31, 0, 0, 0, 1, time.UTC), false},
	}
	for _, tt := range tests {
		if got := MatchesOnPeriod(Action{LoggedAt: tt.ts}, goal); got != tt.want {
			t.Errorf("%s: MatchesOnPeriod = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMatchesOnPeriod_OpenEndedDates(t *testing.T) {
	// Only one bound set: the other side is unbounded.
	startOnly := Goal{StartDate: datePtr(2025, 1, 1)}
	if MatchesOnPeriod(Action{LoggedAt: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)}, startOnly) {
		t.Error("action before start matched start-only goal")
	}
	if !MatchesOnPeriod(Action{LoggedAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}, startOnly) {
		t.Error("action after start rejected by start-only goal")
	}

	targetOnly := Goal{TargetDate: datePtr(2025, 1, 1)}
	if MatchesOnPeriod(Action{LoggedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)}, targetOnly) {
		t.Error("action after target matched target-only goal")
	}
}

func TestMatchesOnUnit_NoBasis(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		goal   Goal
	}{
		{"no measurements", Action{}, Goal{TargetUnit: "km"}},
		{"empty measurements", Action{Measurements: map[string]float64{}}, Goal{TargetUnit: "km"}},
		{"no target unit", Action{Measurements: map[string]float64{"km": 5}}, Goal{}},
	}
	for _, tt := range tests {
		matched, key, value := MatchesOnUnit(tt.action, tt.goal)
		if matched || key != "" || value != 0 {
			t.Errorf("%s: got (%v, %q, %v), want (false, \"\", 0)", tt.name, matched, key, value)
		}
	}
}

func TestMatchesOnUnit_SubstringContainment(t *testing.T) {
	action := Action{Measurements: map[string]float64{"distance_km": 5.2, "minutes": 31}}

	matched, key, value := MatchesOnUnit(action, Goal{TargetUnit: "km"})
	if !matched {
		t.Fatal("goal unit km did not match measurement key distance_km")
	}
	if key != "distance_km" || value != 5.2 {
		t.Errorf("got (%q, %v), want (distance_km, 5.2)", key, value)
	}
}

func TestMatchesOnUnit_NormalizesGoalUnit(t *testing.T) {
	action := Action{Measurements: map[string]float64{"distance_km": 8}}

	matched, key, _ := MatchesOnUnit(action, Goal{TargetUnit: "Distance KM"})
	if !matched || key != "distance_km" {
		t.Errorf("normalized unit did not match: matched=%v key=%q", matched, key)
	}
}

func TestMatchesOnUnit_NoCompatibleKey(t *testing.T) {
	action := Action{Measurements: map[string]float64{"pages": 12}}

	if matched, _, _ := MatchesOnUnit(action, Goal{TargetUnit: "km"}); matched {
		t.Error("pages matched goal unit km")
	}
}

func TestMatchesWithActionability_FallbackModes(t *testing.T) {
	action := Action{
		Title:        "Morning run",
		Measurements: map[string]float64{"km": 5.0},
	}

	// Absent, empty, and malformed hint documents all behave exactly like
	// MatchesOnUnit.
	docs := map[string]string{
		"absent":         "",
		"whitespace":     "   ",
		"malformed":      `{"units": ["km",}`,
		"not json":       "whenever I feel like it",
		"empty lists":    `{"units": [], "keywords": []}`,
		"missing fields": `{}`,
		"units only":     `{"units": ["km"]}`,
	}
	for name, doc := range docs {
		matched, contribution := MatchesWithActionability(action, Goal{TargetUnit: "km", Actionability: doc})
		if !matched || contribution != 5.0 {
			t.Errorf("%s: got (%v, %v), want (true, 5.0)", name, matched, contribution)
		}
	}

	// Fallback still fails when the unit doesn't match either.
	noUnit := Goal{TargetUnit: "pages", Actionability: "garbage"}
	if matched, _ := MatchesWithActionability(action, noUnit); matched {
		t.Error("fallback matched incompatible unit")
	}
}

func TestMatchesWithActionability_StrictMode(t *testing.T) {
	goal := Goal{
		TargetUnit:    "minutes",
		Actionability: `{"units": ["minutes"], "keywords": ["yoga", "pilates"]}`,
	}

	tests := []struct {
		name      string
		action    Action
		wantMatch bool
		wantValue float64
	}{
		{
			"unit and keyword",
			Action{Title: "Yoga class", Measurements: map[string]float64{"minutes": 30}},
			true, 30,
		},
		{
			"unit without keyword",
			Action{Title: "Writing session", Measurements: map[string]float64{"minutes": 30}},
			false, 0,
		},
		{
			"keyword without unit",
			Action{Title: "Yoga reading", Measurements: map[string]float64{"pages": 10}},
			false, 0,
		},
		{
			"keyword in description",
			Action{Title: "Evening class", Description: "Hot yoga downtown", Measurements: map[string]float64{"minutes": 45}},
			true, 45,
		},
		{
			"no measurements at all",
			Action{Title: "Yoga class"},
			false, 0,
		},
		{
			"no title or description",
			Action{Measurements: map[string]float64{"minutes": 30}},
			false, 0,
		},
	}
	for _, tt := range tests {
		matched, value := MatchesWithActionability(tt.action, goal)
		if matched != tt.wantMatch || value != tt.wantValue {
			t.Errorf("%s: got (%v, %v), want (%v, %v)", tt.name, matched, value, tt.wantMatch, tt.wantValue)
		}
	}
}

func TestMatchesWithActionability_WildcardsAndCase(t *testing.T) {
	goal := Goal{
		TargetUnit:    "km",
		Actionability: `{"units": ["km"], "keywords": ["run*"]}`,
	}

	action := Action{Title: "Running outside", Measurements: map[string]float64{"km": 4.2}}
	if matched, _ := MatchesWithActionability(action, goal); !matched {
		t.Error("wildcard keyword run* did not match Running outside")
	}

	upper := Goal{TargetUnit: "minutes", Actionability: `{"units": ["minutes"], "keywords": ["yoga"]}`}
	shouting := Action{Title: "YOGA CLASS", Measurements: map[string]float64{"minutes": 60}}
	if matched, _ := MatchesWithActionability(shouting, upper); !matched {
		t.Error("keyword matching is not case-insensitive")
	}
}

func TestMatchesWithActionability_BareWildcardStaysStrict(t *testing.T) {
	goal := Goal{
		TargetUnit:    "km",
		Actionability: `{"units": ["km"], "keywords": ["*"]}`,
	}

	// A bare "*" strips to a keyword matching any title, but the goal stays
	// in strict mode: unit membership is exact, not substring fallback.
	anyTitle := Action{Title: "Whatever happened", Measurements: map[string]float64{"km": 5}}
	if matched, value := MatchesWithActionability(anyTitle, goal); !matched || value != 5 {
		t.Errorf("bare wildcard with hinted unit: got (%v, %v), want (true, 5)", matched, value)
	}

	untitled := Action{Measurements: map[string]float64{"km": 3}}
	if matched, _ := MatchesWithActionability(untitled, goal); !matched {
		t.Error("bare wildcard did not match an action without title text")
	}

	// "distance_km" would match the km goal under unit fallback, but not
	// under the strict hinted unit list.
	substringOnly := Action{Title: "Long walk", Measurements: map[string]float64{"distance_km": 5}}
	if matched, _ := MatchesWithActionability(substringOnly, goal); matched {
		t.Error("bare wildcard dropped the goal into substring unit fallback")
	}
}

func TestCalculateConfidence(t *testing.T) {
	tests := []struct {
		period, actionability bool
		want                  float64
	}{
		{true, true, 0.9},
		{true, false, 0.0},
		{false, true, 0.0},
		{false, false, 0.0},
	}
	for _, tt := range tests {
		if got := CalculateConfidence(tt.period, tt.actionability); got != tt.want {
			t.Errorf("CalculateConfidence(%v, %v) = %v, want %v", tt.period, tt.actionability, got, tt.want)
		}
	}
}
