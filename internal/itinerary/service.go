package itinerary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend-nearvibe/internal/db"
	"backend-nearvibe/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	errFetchMessage  = "Failed to fetch itineraries"
	errSaveMessage   = "Failed to save itinerary"
	errDeleteMessage = "Failed to delete itinerary"
)

type Service struct {
	db  db.TxQuerier
	log *zap.Logger
}

func NewService(db db.TxQuerier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log}
}

const itineraryColumns = `id, title, description, user_id::text, date, is_public, created_at, updated_at`

func scanItinerary(row pgx.Row) (Itinerary, error) {
	var it Itinerary
	err := row.Scan(&it.ID, &it.Title, &it.Description, &it.UserID, &it.Date, &it.IsPublic, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// List returns every public itinerary when public is set, otherwise the
// acting user's own, newest first.
func (s *Service) List(ctx context.Context, actingUser string, public bool) ([]Itinerary, error) {
	var rows pgx.Rows
	var err error
	if public {
		rows, err = s.db.Query(ctx, `SELECT `+itineraryColumns+` FROM itineraries WHERE is_public ORDER BY created_at DESC`)
	} else {
		if actingUser == "" {
			return nil, apperr.Auth("Unauthorized")
		}
		rows, err = s.db.Query(ctx, `SELECT `+itineraryColumns+` FROM itineraries WHERE user_id=$1 ORDER BY created_at DESC`, actingUser)
	}
	if err != nil {
		s.log.Error("list itineraries", zap.Error(err))
		return nil, apperr.Upstream(errFetchMessage, err)
	}

	itineraries := []Itinerary{}
	var ids []string
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			rows.Close()
			return nil, apperr.Upstream(errFetchMessage, err)
		}
		ids = append(ids, it.ID)
		itineraries = append(itineraries, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		s.log.Error("list itineraries", zap.Error(err))
		return nil, apperr.Upstream(errFetchMessage, err)
	}

	items, err := s.loadItems(ctx, ids)
	if err != nil {
		s.log.Error("load itinerary items", zap.Error(err))
		return nil, apperr.Upstream(errFetchMessage, err)
	}
	for i := range itineraries {
		itineraries[i].Items = itemsOrEmpty(items[itineraries[i].ID])
	}
	return itineraries, nil
}

// Get returns a public itinerary to anyone and a private one to its owner.
func (s *Service) Get(ctx context.Context, actingUser, id string) (Itinerary, error) {
	it, err := s.find(ctx, id)
	if err != nil {
		return Itinerary{}, err
	}
	if !it.IsPublic && it.UserID != actingUser {
		return Itinerary{}, apperr.Auth("Unauthorized")
	}

	items, err := s.loadItems(ctx, []string{it.ID})
	if err != nil {
		s.log.Error("load itinerary items", zap.String("id", id), zap.Error(err))
		return Itinerary{}, apperr.Upstream("Failed to fetch itinerary", err)
	}
	it.Items = itemsOrEmpty(items[it.ID])
	return it, nil
}

func (s *Service) find(ctx context.Context, id string) (Itinerary, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Itinerary{}, apperr.NotFound("Itinerary not found")
	}
	it, err := scanItinerary(s.db.QueryRow(ctx, `SELECT `+itineraryColumns+` FROM itineraries WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Itinerary{}, apperr.NotFound("Itinerary not found")
	}
	if err != nil {
		s.log.Error("get itinerary", zap.String("id", id), zap.Error(err))
		return Itinerary{}, apperr.Upstream("Failed to fetch itinerary", err)
	}
	return it, nil
}

// owned loads id and checks actingUser owns it.
func (s *Service) owned(ctx context.Context, actingUser, id string) (Itinerary, error) {
	if actingUser == "" {
		return Itinerary{}, apperr.Auth("Unauthorized")
	}
	it, err := s.find(ctx, id)
	if err != nil {
		return Itinerary{}, err
	}
	if it.UserID != actingUser {
		return Itinerary{}, apperr.Ownership("Not the owner of this itinerary")
	}
	return it, nil
}

func (s *Service) loadItems(ctx context.Context, itineraryIDs []string) (map[string][]Item, error) {
	if len(itineraryIDs) == 0 {
		return map[string][]Item{}, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT i.itinerary_id::text, i.adventure_id::text, i.start_time, i.notes, i.title,
		       a.title, a.images, a.category, ST_X(a.location::geometry), ST_Y(a.location::geometry), a.address, a.duration
		FROM itinerary_items i
		JOIN adventures a ON a.id = i.adventure_id
		WHERE i.itinerary_id = ANY($1)
		ORDER BY i.itinerary_id, i.position
	`, itineraryIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := map[string][]Item{}
	for rows.Next() {
		var itineraryID string
		var item Item
		var sum AdventureSummary
		var lng, lat float64
		if err := rows.Scan(&itineraryID, &item.AdventureID, &item.StartTime, &item.Notes, &item.Title,
			&sum.Title, &sum.Images, &sum.Category, &lng, &lat, &sum.Location.Address, &sum.Duration); err != nil {
			return nil, err
		}
		sum.ID = item.AdventureID
		sum.Location.Type = "Point"
		sum.Location.Coordinates = [2]float64{lng, lat}
		item.Adventure = &sum
		items[itineraryID] = append(items[itineraryID], item)
	}
	return items, rows.Err()
}

func itemsOrEmpty(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}

func validateItems(items []ItemInput) error {
	seen := map[string]struct{}{}
	for i, item := range items {
		if _, err := uuid.Parse(item.AdventureID); err != nil {
			return apperr.Validation(fmt.Sprintf("items[%d].adventureId is invalid", i))
		}
		if item.StartTime.IsZero() {
			return apperr.Validation(fmt.Sprintf("items[%d].startTime is required", i))
		}
		if _, dup := seen[item.AdventureID]; dup {
			return apperr.Validation("an adventure can appear only once in an itinerary")
		}
		seen[item.AdventureID] = struct{}{}
	}
	return nil
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Validation("title is required")
	}
	if in.Date.IsZero() {
		return apperr.Validation("date is required")
	}
	return validateItems(in.Items)
}

func (in UpdateInput) validate() error {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return apperr.Validation("title cannot be empty")
	}
	if in.Date != nil && in.Date.IsZero() {
		return apperr.Validation("date cannot be empty")
	}
	if in.Items != nil {
		return validateItems(*in.Items)
	}
	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, itineraryID string, items []ItemInput) error {
	for pos, item := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO itinerary_items (itinerary_id, position, adventure_id, start_time, notes, title)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, itineraryID, pos, item.AdventureID, item.StartTime, item.Notes, item.Title); err != nil {
			return err
		}
	}
	return nil
}

// saveError maps a write failure. A foreign key violation means an item
// points at an adventure that does not exist.
func (s *Service) saveError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return apperr.Validation("itinerary references an unknown adventure")
	}
	s.log.Error("save itinerary", zap.Error(err))
	return apperr.Upstream(errSaveMessage, err)
}

func (s *Service) Create(ctx context.Context, actingUser string, in CreateInput) (Itinerary, error) {
	if actingUser == "" {
		return Itinerary{}, apperr.Auth("Unauthorized")
	}
	if err := in.validate(); err != nil {
		return Itinerary{}, err
	}

	it := Itinerary{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		UserID:      actingUser,
		Date:        in.Date,
		IsPublic:    in.IsPublic,
	}
	err := db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO itineraries (id, title, description, user_id, date, is_public)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING created_at, updated_at
		`, it.ID, it.Title, it.Description, it.UserID, it.Date, it.IsPublic)
		if err := row.Scan(&it.CreatedAt, &it.UpdatedAt); err != nil {
			return err
		}
		return insertItems(ctx, tx, it.ID, in.Items)
	})
	if err != nil {
		return Itinerary{}, s.saveError(err)
	}

	it.Items = make([]Item, 0, len(in.Items))
	for _, item := range in.Items {
		it.Items = append(it.Items, Item{AdventureID: item.AdventureID, StartTime: item.StartTime, Notes: item.Notes, Title: item.Title})
	}
	return it, nil
}

// Update applies in to an itinerary owned by actingUser.
func (s *Service) Update(ctx context.Context, actingUser, id string, in UpdateInput) (Itinerary, error) {
	if _, err := s.owned(ctx, actingUser, id); err != nil {
		return Itinerary{}, err
	}
	if err := in.validate(); err != nil {
		return Itinerary{}, err
	}

	var title *string
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		title = &t
	}
	err := db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE itineraries
			SET title=COALESCE($2, title), description=COALESCE($3, description),
			    date=COALESCE($4, date), is_public=COALESCE($5, is_public), updated_at=now()
			WHERE id=$1
		`, id, title, in.Description, in.Date, in.IsPublic); err != nil {
			return err
		}
		if in.Items == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM itinerary_items WHERE itinerary_id=$1`, id); err != nil {
			return err
		}
		return insertItems(ctx, tx, id, *in.Items)
	})
	if err != nil {
		return Itinerary{}, s.saveError(err)
	}
	return s.Get(ctx, actingUser, id)
}

func (s *Service) Delete(ctx context.Context, actingUser, id string) error {
	if _, err := s.owned(ctx, actingUser, id); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM itineraries WHERE id=$1`, id); err != nil {
		s.log.Error("delete itinerary", zap.String("id", id), zap.Error(err))
		return apperr.Upstream(errDeleteMessage, err)
	}
	return nil
}
