package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS garments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		image_url TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		tags TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		garment_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (session_id, garment_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tryon_history (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_image_url TEXT NOT NULL,
		garment_id TEXT,
		result_image_url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS tryon_history_session_idx ON tryon_history (session_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS recommendations (
		id TEXT PRIMARY KEY,
		garment_id TEXT NOT NULL REFERENCES garments (id) ON DELETE CASCADE,
		recommended_garment_id TEXT NOT NULL REFERENCES garments (id) ON DELETE CASCADE,
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (garment_id, recommended_garment_id)
	)`,
}

// EnsureSchema creates the tables the stores rely on. Every statement is
// idempotent, so it runs on each start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
