package db

import (
	"context"
	"fmt"
)

// schema is applied statement by statement at startup. Every statement is
// idempotent. adventures.location must carry a GiST index for ST_DWithin.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		image         TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token      TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS adventures (
		id          UUID PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location    GEOGRAPHY(Point, 4326) NOT NULL,
		address     TEXT NOT NULL DEFAULT '',
		duration    INTEGER NOT NULL CHECK (duration > 0),
		category    TEXT[] NOT NULL,
		images      TEXT[] NOT NULL DEFAULT '{}',
		rating      DOUBLE PRECISION,
		created_by  UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS adventures_location_gix ON adventures USING GIST (location)`,
	`CREATE INDEX IF NOT EXISTS adventures_category_gin ON adventures USING GIN (category)`,
	`CREATE INDEX IF NOT EXISTS adventures_created_at_idx ON adventures (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS adventure_reviews (
		id           UUID PRIMARY KEY,
		adventure_id UUID NOT NULL REFERENCES adventures(id) ON DELETE CASCADE,
		user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		rating       INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment      TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (adventure_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS itineraries (
		id          UUID PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		date        TIMESTAMPTZ NOT NULL,
		is_public   BOOLEAN NOT NULL DEFAULT false,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS itinerary_items (
		itinerary_id UUID NOT NULL REFERENCES itineraries(id) ON DELETE CASCADE,
		position     INTEGER NOT NULL,
		adventure_id UUID NOT NULL REFERENCES adventures(id) ON DELETE CASCADE,
		start_time   TIMESTAMPTZ NOT NULL,
		notes        TEXT NOT NULL DEFAULT '',
		title        TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (itinerary_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS adventure_logs (
		id           UUID PRIMARY KEY,
		user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		adventure_id UUID NOT NULL REFERENCES adventures(id) ON DELETE CASCADE,
		notes        TEXT NOT NULL DEFAULT '',
		photos       TEXT[] NOT NULL DEFAULT '{}',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS storage_objects (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		object_key TEXT NOT NULL,
		url        TEXT NOT NULL,
		kind       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates tables and indexes that do not exist yet.
func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
