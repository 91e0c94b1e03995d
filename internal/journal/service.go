package journal

import (
	"context"
	"errors"
	"strings"

	"backend-nearvibe/internal/db"
	"backend-nearvibe/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type Service struct {
	db  db.Querier
	log *zap.Logger
}

func NewService(db db.Querier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log}
}

func (s *Service) Create(ctx context.Context, actingUser string, in CreateInput) (Log, error) {
	if actingUser == "" {
		return Log{}, apperr.Auth("Unauthorized")
	}
	if _, err := uuid.Parse(in.AdventureID); err != nil {
		return Log{}, apperr.Validation("adventureId is required")
	}

	photos := make([]string, 0, len(in.Photos))
	for _, p := range in.Photos {
		if p = strings.TrimSpace(p); p != "" {
			photos = append(photos, p)
		}
	}
	entry := Log{
		ID:          uuid.NewString(),
		UserID:      actingUser,
		AdventureID: in.AdventureID,
		Notes:       in.Notes,
		Photos:      photos,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO adventure_logs (id, user_id, adventure_id, notes, photos)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, entry.ID, entry.UserID, entry.AdventureID, entry.Notes, entry.Photos)
	if err := row.Scan(&entry.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Log{}, apperr.NotFound("adventure not found")
		}
		s.log.Error("create log", zap.Error(err))
		return Log{}, apperr.Upstream("Failed to save log", err)
	}
	return entry, nil
}

// ForUser lists userID's logs, newest first.
func (s *Service) ForUser(ctx context.Context, userID string) ([]Log, error) {
	if userID == "" {
		return nil, apperr.Validation("userId is required")
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id::text, adventure_id::text, notes, photos, created_at
		FROM adventure_logs WHERE user_id::text=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		s.log.Error("list logs", zap.Error(err))
		return nil, apperr.Upstream("Failed to fetch logs", err)
	}
	defer rows.Close()

	logs := []Log{}
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.UserID, &l.AdventureID, &l.Notes, &l.Photos, &l.CreatedAt); err != nil {
			return nil, apperr.Upstream("Failed to fetch logs", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}
