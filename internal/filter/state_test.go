package filter

import "testing"

func TestToggleCategorySelfInverse(t *testing.T) {
	s := State{}
	on := s.ToggleCategory("Hiking")
	cats, ok := on.Categories()
	if !ok || len(cats) != 1 || cats[0] != "Hiking" {
		t.Fatalf("expected Hiking selected, got %v", cats)
	}
	off := on.ToggleCategory("Hiking")
	if _, ok := off.Categories(); ok {
		t.Fatalf("expected category facet unset after second toggle")
	}
	if !off.Equal(s) {
		t.Fatalf("expected original state")
	}
}

func TestToggleCategoryDoesNotMutate(t *testing.T) {
	base := State{}.ToggleCategory("Hiking").ToggleCategory("Nature")
	_ = base.ToggleCategory("Hiking")
	cats, _ := base.Categories()
	if len(cats) != 2 {
		t.Fatalf("receiver mutated: %v", cats)
	}
}

func TestSetMaxDurationTogglesOff(t *testing.T) {
	s := State{}.SetMaxDuration(120)
	if d, ok := s.MaxDuration(); !ok || d != 120 {
		t.Fatalf("expected 120, got %d", d)
	}
	if again := s.SetMaxDuration(120); !again.Equal(State{}) {
		t.Fatalf("same duration twice should clear the facet")
	}
	if other := s.SetMaxDuration(60); func() int { d, _ := other.MaxDuration(); return d }() != 60 {
		t.Fatalf("expected switch to 60")
	}
}

func TestSetMaxDistanceClamps(t *testing.T) {
	cases := map[int]int{0: 1, -4: 1, 1: 1, 25: 25, 50: 50, 80: 50}
	for in, want := range cases {
		got, _ := State{}.SetMaxDistance(in).MaxDistance()
		if got != want {
			t.Fatalf("SetMaxDistance(%d) = %d, want %d", in, got, want)
		}
	}
	s := State{}.SetMaxDistance(5)
	if !s.SetMaxDistance(5).Equal(s) {
		t.Fatalf("setting the same distance twice should be idempotent")
	}
	if (State{}).DistanceOrDefault() != DefaultDistanceKm {
		t.Fatalf("expected default distance")
	}
	if _, ok := s.ClearMaxDistance().MaxDistance(); ok {
		t.Fatalf("expected distance cleared")
	}
}

func TestSetMinRating(t *testing.T) {
	s, err := State{}.SetMinRating(RatingFour)
	if err != nil {
		t.Fatalf("set rating: %v", err)
	}
	if r, ok := s.MinRating(); !ok || r != RatingFour {
		t.Fatalf("expected 4, got %d", r)
	}
	same, err := s.SetMinRating(RatingFour)
	if err != nil || !same.Equal(s) {
		t.Fatalf("setting the same rating twice should be idempotent")
	}
	cleared, _ := s.SetMinRating(RatingAny)
	if _, ok := cleared.MinRating(); ok {
		t.Fatalf("expected rating unset")
	}
	bad, err := s.SetMinRating(2)
	if err == nil || !bad.Equal(s) {
		t.Fatalf("expected rejection of 2 stars with unchanged state")
	}
}

func TestClear(t *testing.T) {
	s := State{}.ToggleCategory("Cultural").SetMaxDuration(60).SetMaxDistance(20)
	if s.IsEmpty() {
		t.Fatalf("expected non-empty state")
	}
	if !s.Clear().IsEmpty() {
		t.Fatalf("expected empty state after clear")
	}
}

func TestEqualIgnoresCategoryOrder(t *testing.T) {
	a := State{}.ToggleCategory("Hiking").ToggleCategory("Nature")
	b := State{}.ToggleCategory("Nature").ToggleCategory("Hiking")
	if !a.Equal(b) {
		t.Fatalf("expected equal states")
	}
	if a.Equal(a.SetMaxDuration(60)) {
		t.Fatalf("expected different states")
	}
}
