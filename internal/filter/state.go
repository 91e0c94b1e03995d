// Package filter models the discovery criteria a browsing session applies and
// turns them into a query descriptor for the adventures endpoint.
package filter

import (
	"fmt"
	"slices"
)

const (
	MinDistanceKm     = 1
	MaxDistanceKm     = 50
	DefaultDistanceKm = 10
)

// Duration chips offered by the filter panel, in minutes.
var DurationChips = []int{60, 120, 240, 241}

// Categories offered by the filter panel.
var Categories = []string{
	"Hiking",
	"Urban Exploration",
	"Food & Drink",
	"Cultural",
	"Nature",
	"Photography",
	"Historical",
	"Water Activity",
	"Family Friendly",
	"Nightlife",
}

// Rating is a minimum star threshold. RatingAny means no threshold.
type Rating int

const (
	RatingAny   Rating = 0
	RatingThree Rating = 3
	RatingFour  Rating = 4
	RatingFive  Rating = 5
)

// State is an immutable set of discovery criteria. The zero value is the
// empty state. Every setter returns a new State.
type State struct {
	categories  []string
	maxDuration int
	minRating   Rating
	maxDistance int
}

// Categories returns the selected categories, or ok=false when the facet is unset.
func (s State) Categories() ([]string, bool) {
	if len(s.categories) == 0 {
		return nil, false
	}
	return slices.Clone(s.categories), true
}

func (s State) MaxDuration() (int, bool) { return s.maxDuration, s.maxDuration > 0 }

func (s State) MinRating() (Rating, bool) { return s.minRating, s.minRating != RatingAny }

func (s State) MaxDistance() (int, bool) { return s.maxDistance, s.maxDistance > 0 }

// DistanceOrDefault is the search radius in km used when a location is known.
func (s State) DistanceOrDefault() int {
	if d, ok := s.MaxDistance(); ok {
		return d
	}
	return DefaultDistanceKm
}

// ToggleCategory removes category if selected, otherwise appends it. An
// empty selection clears the facet.
func (s State) ToggleCategory(category string) State {
	next := s
	if i := slices.Index(s.categories, category); i >= 0 {
		next.categories = slices.Delete(slices.Clone(s.categories), i, i+1)
	} else {
		next.categories = append(slices.Clone(s.categories), category)
	}
	if len(next.categories) == 0 {
		next.categories = nil
	}
	return next
}

// SetMaxDuration selects a duration chip. Selecting the active chip clears it.
func (s State) SetMaxDuration(minutes int) State {
	next := s
	if minutes <= 0 || minutes == s.maxDuration {
		next.maxDuration = 0
	} else {
		next.maxDuration = minutes
	}
	return next
}

// SetMaxDistance stores km clamped to [MinDistanceKm, MaxDistanceKm].
func (s State) SetMaxDistance(km int) State {
	next := s
	next.maxDistance = min(max(km, MinDistanceKm), MaxDistanceKm)
	return next
}

// ClearMaxDistance unsets the distance facet.
func (s State) ClearMaxDistance() State {
	next := s
	next.maxDistance = 0
	return next
}

// SetMinRating accepts RatingAny, 3, 4 or 5. Other values leave the state
// unchanged and return an error.
func (s State) SetMinRating(stars Rating) (State, error) {
	switch stars {
	case RatingAny, RatingThree, RatingFour, RatingFive:
		next := s
		next.minRating = stars
		return next, nil
	default:
		return s, fmt.Errorf("unsupported rating threshold %d", stars)
	}
}

// Clear returns the empty state.
func (s State) Clear() State { return State{} }

// IsEmpty reports whether no facet is set.
func (s State) IsEmpty() bool { return s.Equal(State{}) }

// Equal compares facets; category order is ignored.
func (s State) Equal(o State) bool {
	if s.maxDuration != o.maxDuration || s.minRating != o.minRating || s.maxDistance != o.maxDistance {
		return false
	}
	if len(s.categories) != len(o.categories) {
		return false
	}
	a, b := slices.Clone(s.categories), slices.Clone(o.categories)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
