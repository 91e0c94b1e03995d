package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"backend-nearvibe/internal/shared/geo"
)

// Near is a proximity predicate.
type Near struct {
	Point        geo.Point
	RadiusMeters float64
}

// Query is the descriptor sent to the discovery service. Nil fields are
// omitted predicates.
type Query struct {
	Categories  []string
	MaxDuration *int
	MinRating   *float64
	Near        *Near
}

// Build composes a Query. Without a location the distance facet is dropped.
func Build(s State, at *geo.Point) Query {
	var q Query
	if cats, ok := s.Categories(); ok {
		q.Categories = cats
	}
	if d, ok := s.MaxDuration(); ok {
		q.MaxDuration = &d
	}
	if r, ok := s.MinRating(); ok {
		v := float64(r)
		q.MinRating = &v
	}
	if at != nil {
		q.Near = &Near{
			Point:        *at,
			RadiusMeters: float64(s.DistanceOrDefault()) * 1000,
		}
	}
	return q
}

// Values encodes the query as adventures endpoint parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Near != nil {
		v.Set("lat", strconv.FormatFloat(q.Near.Point.Lat, 'f', -1, 64))
		v.Set("lng", strconv.FormatFloat(q.Near.Point.Lng, 'f', -1, 64))
		v.Set("maxDistance", strconv.FormatFloat(q.Near.RadiusMeters/1000, 'f', -1, 64))
	}
	if len(q.Categories) > 0 {
		v.Set("categories", strings.Join(q.Categories, ","))
	}
	if q.MaxDuration != nil {
		v.Set("maxDuration", strconv.Itoa(*q.MaxDuration))
	}
	if q.MinRating != nil {
		v.Set("minRating", strconv.FormatFloat(*q.MinRating, 'f', -1, 64))
	}
	return v
}

// Key is a stable string form of the query, used for cache keys.
func (q Query) Key() string {
	return q.Values().Encode()
}

// ParseQuery decodes adventures endpoint parameters. lookup returns "" for
// absent keys. The geo predicate needs lat, lng and maxDistance together.
func ParseQuery(lookup func(key string) string) (Query, error) {
	var q Query

	if raw := lookup("categories"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				q.Categories = append(q.Categories, c)
			}
		}
	}

	if raw := lookup("maxDuration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			return Query{}, fmt.Errorf("maxDuration must be a positive integer")
		}
		q.MaxDuration = &d
	}

	if raw := lookup("minRating"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r < 0 || r > 5 {
			return Query{}, fmt.Errorf("minRating must be between 0 and 5")
		}
		if r > 0 {
			q.MinRating = &r
		}
	}

	lat, lng, dist := lookup("lat"), lookup("lng"), lookup("maxDistance")
	if lat != "" && lng != "" && dist != "" {
		p, err := ParsePoint(lat, lng)
		if err != nil {
			return Query{}, err
		}
		km, err := strconv.ParseFloat(dist, 64)
		if err != nil || km <= 0 {
			return Query{}, fmt.Errorf("maxDistance must be a positive number")
		}
		q.Near = &Near{Point: p, RadiusMeters: km * 1000}
	}
	return q, nil
}

// ParsePoint decodes a lat/lng pair and checks its range.
func ParsePoint(lat, lng string) (geo.Point, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("lat must be a number")
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("lng must be a number")
	}
	p := geo.Point{Lng: ln, Lat: la}
	if !p.Valid() {
		return geo.Point{}, fmt.Errorf("coordinates out of range")
	}
	return p, nil
}
