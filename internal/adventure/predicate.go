package adventure

import (
	"fmt"
	"strings"

	"backend-nearvibe/internal/filter"
)

const adventureColumns = `id, title, description, ST_X(location::geometry), ST_Y(location::geometry), address,
		       duration, category, images, rating, COALESCE(created_by::text, ''), created_at, updated_at`

// wherePredicate renders q as a WHERE clause and its positional arguments.
func wherePredicate(q filter.Query) (string, []any) {
	var clauses []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.Categories) > 0 {
		clauses = append(clauses, "category && "+next(q.Categories)+"::text[]")
	}
	if q.MaxDuration != nil {
		clauses = append(clauses, "duration <= "+next(*q.MaxDuration))
	}
	if q.MinRating != nil {
		clauses = append(clauses, "rating >= "+next(*q.MinRating))
	}
	if q.Near != nil {
		lng := next(q.Near.Point.Lng)
		lat := next(q.Near.Point.Lat)
		radius := next(q.Near.RadiusMeters)
		clauses = append(clauses, fmt.Sprintf("ST_DWithin(location, ST_SetSRID(ST_MakePoint(%s,%s), 4326)::geography, %s)", lng, lat, radius))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
