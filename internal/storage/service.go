package storage

import (
	"context"
	"path"
	"strings"
	"time"

	"backend-nearvibe/internal/db"
	"backend-nearvibe/internal/shared/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

type UploadRequest struct {
	FileName string `json:"fileName"`
	Kind     string `json:"kind"`
}

// Upload is a presigned PUT target plus the URL the object will be served at.
type Upload struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	UploadURL   string    `json:"uploadUrl"`
	PublicURL   string    `json:"publicUrl"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type Options struct {
	Bucket    string
	PublicURL string
	URLTTL    time.Duration
}

type Service struct {
	db    db.Querier
	store ObjectStore
	opts  Options
	log   *zap.Logger
}

// NewService builds the upload service. A nil store disables uploads.
func NewService(db db.Querier, store ObjectStore, opts Options, log *zap.Logger) *Service {
	if opts.URLTTL <= 0 {
		opts.URLTTL = 15 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, store: store, opts: opts, log: log}
}

func (s *Service) Enabled() bool { return s.store != nil }

func (s *Service) SaveObject(ctx context.Context, userID, key, url, kind string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, object_key, url, kind)
		VALUES ($1,$2,$3,$4,$5)
	`, id, userID, key, url, kind)
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateUpload presigns a PUT for an image owned by actingUser and records it.
func (s *Service) CreateUpload(ctx context.Context, actingUser string, req UploadRequest) (Upload, error) {
	if actingUser == "" {
		return Upload{}, apperr.Auth("Unauthorized")
	}
	ext := strings.ToLower(path.Ext(req.FileName))
	contentType, ok := imageExtensions[ext]
	if !ok {
		return Upload{}, apperr.Validation("fileName must be a jpg, png, webp or gif image")
	}
	kind := req.Kind
	if kind == "" {
		kind = "adventure"
	}

	key := path.Join(kind, actingUser, uuid.NewString()+ext)
	presigned, err := s.store.PresignedPutObject(ctx, s.opts.Bucket, key, s.opts.URLTTL)
	if err != nil {
		s.log.Error("presign upload", zap.String("key", key), zap.Error(err))
		return Upload{}, apperr.Upstream("Failed to prepare upload", err)
	}

	public := s.publicURL(key, presigned.Scheme+"://"+presigned.Host)
	id, err := s.SaveObject(ctx, actingUser, key, public, kind)
	if err != nil {
		s.log.Error("record upload", zap.String("key", key), zap.Error(err))
		return Upload{}, apperr.Upstream("Failed to prepare upload", err)
	}

	return Upload{
		ID:          id,
		Key:         key,
		UploadURL:   presigned.String(),
		PublicURL:   public,
		ContentType: contentType,
		ExpiresAt:   time.Now().Add(s.opts.URLTTL),
	}, nil
}

func (s *Service) publicURL(key, endpoint string) string {
	base := strings.TrimRight(s.opts.PublicURL, "/")
	if base == "" {
		base = endpoint
	}
	return base + "/" + s.opts.Bucket + "/" + key
}
