package adventure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"backend-nearvibe/internal/db"
	"backend-nearvibe/internal/filter"
	"backend-nearvibe/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*size well inside int32 so OFFSET never overflows.
	MaxPage = math.MaxInt32 / MaxPageSize

	// NearbyRadiusMeters bounds the nearby listing.
	NearbyRadiusMeters = 10000
	nearbyLimit        = 50

	// Topic is the stream topic new adventures are announced on.
	Topic            = "adventures"
	EventCreated     = "adventure.created"
	errFetchMessage  = "Failed to fetch adventures"
	errReviewMessage = "Failed to save review"
)

// EventPublisher fans out a payload to topic subscribers.
type EventPublisher interface {
	Broadcast(topic string, payload []byte)
}

type Service struct {
	db     db.TxQuerier
	cache  *Cache
	events EventPublisher
	log    *zap.Logger
}

// NewService wires the discovery service. cache and events may be nil.
func NewService(db db.TxQuerier, cache *Cache, events EventPublisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, cache: cache, events: events, log: log}
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Discover runs q and returns one page, newest first.
func (s *Service) Discover(ctx context.Context, q filter.Query, page, size int) (Page, error) {
	page, size = normalizePage(page, size)
	key, cacheable := s.cache.Key(ctx, q, page, size)
	if cacheable {
		if cached, ok := s.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	where, args := wherePredicate(q)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM adventures `+where, args...).Scan(&total); err != nil {
		s.log.Error("count adventures", zap.Error(err))
		return Page{}, apperr.Upstream(errFetchMessage, err)
	}

	pageArgs := make([]any, 0, len(args)+2)
	pageArgs = append(pageArgs, args...)
	pageArgs = append(pageArgs, size, (page-1)*size)
	sql := fmt.Sprintf(`SELECT %s FROM adventures %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		adventureColumns, where, len(args)+1, len(args)+2)

	adventures, err := s.list(ctx, sql, pageArgs...)
	if err != nil {
		s.log.Error("list adventures", zap.Error(err))
		return Page{}, apperr.Upstream(errFetchMessage, err)
	}

	result := Page{
		Adventures: adventures,
		Pagination: Pagination{
			Total:     total,
			Page:      page,
			Size:      size,
			PageCount: (total + size - 1) / size,
		},
	}
	if cacheable {
		s.cache.Set(ctx, key, result)
	}
	return result, nil
}

// Nearby lists adventures within NearbyRadiusMeters of lat/lng, nearest first.
func (s *Service) Nearby(ctx context.Context, lat, lng float64) ([]Adventure, error) {
	results, err := s.list(ctx, `
		SELECT `+adventureColumns+`
		FROM adventures
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1,$2), 4326)::geography, $3)
		ORDER BY ST_Distance(location, ST_SetSRID(ST_MakePoint($1,$2), 4326)::geography)
		LIMIT $4
	`, lng, lat, float64(NearbyRadiusMeters), nearbyLimit)
	if err != nil {
		s.log.Error("nearby adventures", zap.Error(err))
		return nil, apperr.Upstream(errFetchMessage, err)
	}
	return results, nil
}

func (s *Service) list(ctx context.Context, sql string, args ...any) ([]Adventure, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Adventure{}
	for rows.Next() {
		a, err := scanAdventure(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

func scanAdventure(row pgx.Row) (Adventure, error) {
	var a Adventure
	var lng, lat float64
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &lng, &lat, &a.Location.Address,
		&a.Duration, &a.Category, &a.Images, &a.Rating, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Adventure{}, err
	}
	a.Location.Type = "Point"
	a.Location.Coordinates = [2]float64{lng, lat}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (Adventure, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Adventure{}, apperr.NotFound("adventure not found")
	}
	a, err := scanAdventure(s.db.QueryRow(ctx, `SELECT `+adventureColumns+` FROM adventures WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Adventure{}, apperr.NotFound("adventure not found")
	}
	if err != nil {
		s.log.Error("get adventure", zap.String("id", id), zap.Error(err))
		return Adventure{}, apperr.Upstream("Failed to fetch adventure", err)
	}
	return a, nil
}

func normalizeCategories(in []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Validation("title is required")
	}
	if in.Duration <= 0 {
		return apperr.Validation("duration must be a positive number of minutes")
	}
	if len(normalizeCategories(in.Category)) == 0 {
		return apperr.Validation("at least one category is required")
	}
	if !in.Location.Point().Valid() {
		return apperr.Validation("location coordinates out of range")
	}
	return nil
}

// Create stores a new adventure owned by actingUser and announces it.
func (s *Service) Create(ctx context.Context, actingUser string, in CreateInput) (Adventure, error) {
	if actingUser == "" {
		return Adventure{}, apperr.Auth("Unauthorized")
	}
	if err := in.validate(); err != nil {
		return Adventure{}, err
	}

	images := in.Images
	if images == nil {
		images = []string{}
	}
	a := Adventure{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Location:    pointLocation(in.Location.Point(), in.Location.Address),
		Duration:    in.Duration,
		Category:    normalizeCategories(in.Category),
		Images:      images,
		CreatedBy:   actingUser,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO adventures (id, title, description, location, address, duration, category, images, created_by)
		VALUES ($1,$2,$3, ST_SetSRID(ST_MakePoint($4,$5), 4326)::geography, $6,$7,$8,$9,$10)
		RETURNING created_at, updated_at
	`, a.ID, a.Title, a.Description, a.Location.Coordinates[0], a.Location.Coordinates[1], a.Location.Address,
		a.Duration, a.Category, a.Images, a.CreatedBy)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		s.log.Error("create adventure", zap.Error(err))
		return Adventure{}, apperr.Upstream("Failed to create adventure", err)
	}

	s.cache.Invalidate(ctx)
	s.publish(CreatedEvent{Type: EventCreated, Adventure: a})
	return a, nil
}

func (s *Service) publish(ev CreatedEvent) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("encode adventure event", zap.Error(err))
		return
	}
	s.events.Broadcast(Topic, payload)
}

// AddReview records actingUser's review and refreshes the cached rating in
// the same transaction. A second review by the same author replaces the first.
func (s *Service) AddReview(ctx context.Context, actingUser, adventureID string, in ReviewInput) (Review, error) {
	if actingUser == "" {
		return Review{}, apperr.Auth("Unauthorized")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return Review{}, apperr.Validation("rating must be between 1 and 5")
	}
	if _, err := uuid.Parse(adventureID); err != nil {
		return Review{}, apperr.NotFound("adventure not found")
	}

	review := Review{
		ID:          uuid.NewString(),
		AdventureID: adventureID,
		UserID:      actingUser,
		Rating:      in.Rating,
		Comment:     in.Comment,
	}

	err := db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM adventures WHERE id=$1)`, adventureID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("adventure not found")
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO adventure_reviews (id, adventure_id, user_id, rating, comment)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (adventure_id, user_id) DO UPDATE
			SET rating=EXCLUDED.rating, comment=EXCLUDED.comment, created_at=now()
			RETURNING id, created_at
		`, review.ID, review.AdventureID, review.UserID, review.Rating, review.Comment)
		if err := row.Scan(&review.ID, &review.CreatedAt); err != nil {
			return err
		}

		ratings, err := reviewRatings(ctx, tx, adventureID)
		if err != nil {
			return err
		}
		return storeRating(ctx, tx, adventureID, ratings)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Review{}, err
		}
		s.log.Error("add review", zap.String("adventure", adventureID), zap.Error(err))
		return Review{}, apperr.Upstream(errReviewMessage, err)
	}

	s.cache.Invalidate(ctx)
	return review, nil
}

func reviewRatings(ctx context.Context, q db.Querier, adventureID string) ([]int, error) {
	rows, err := q.Query(ctx, `SELECT rating FROM adventure_reviews WHERE adventure_id=$1`, adventureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []int
	for rows.Next() {
		var r int
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}

func storeRating(ctx context.Context, q db.Querier, adventureID string, ratings []int) error {
	var rating *float64
	if avg, ok := ComputeAverageRating(ratings); ok {
		rating = &avg
	}
	_, err := q.Exec(ctx, `UPDATE adventures SET rating=$2, updated_at=now() WHERE id=$1`, adventureID, rating)
	return err
}

func (s *Service) Reviews(ctx context.Context, adventureID string) ([]Review, error) {
	if _, err := uuid.Parse(adventureID); err != nil {
		return nil, apperr.NotFound("adventure not found")
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, adventure_id, user_id, rating, comment, created_at
		FROM adventure_reviews WHERE adventure_id=$1
		ORDER BY created_at DESC
	`, adventureID)
	if err != nil {
		s.log.Error("list reviews", zap.Error(err))
		return nil, apperr.Upstream("Failed to fetch reviews", err)
	}
	defer rows.Close()

	reviews := []Review{}
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.AdventureID, &r.UserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, apperr.Upstream("Failed to fetch reviews", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		s.log.Error("list reviews", zap.Error(err))
		return nil, apperr.Upstream("Failed to fetch reviews", err)
	}
	return reviews, nil
}

// ReconcileRatings recomputes every cached rating from the reviews table and
// returns how many adventures were touched.
func (s *Service) ReconcileRatings(ctx context.Context) (int, error) {
	touched := 0
	err := db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT adventure_id::text, rating FROM adventure_reviews ORDER BY adventure_id`)
		if err != nil {
			return err
		}
		byAdventure := map[string][]int{}
		var order []string
		for rows.Next() {
			var id string
			var r int
			if err := rows.Scan(&id, &r); err != nil {
				rows.Close()
				return err
			}
			if _, ok := byAdventure[id]; !ok {
				order = append(order, id)
			}
			byAdventure[id] = append(byAdventure[id], r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range order {
			if err := storeRating(ctx, tx, id, byAdventure[id]); err != nil {
				return err
			}
			touched++
		}

		tag, err := tx.Exec(ctx, `
			UPDATE adventures SET rating=NULL, updated_at=now()
			WHERE rating IS NOT NULL
			  AND NOT EXISTS (SELECT 1 FROM adventure_reviews r WHERE r.adventure_id = adventures.id)
		`)
		if err != nil {
			return err
		}
		touched += int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reconcile ratings: %w", err)
	}
	if touched > 0 {
		s.cache.Invalidate(ctx)
	}
	return touched, nil
}
