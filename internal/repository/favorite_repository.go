package repository

import (
	"context"
	"database/sql"

	"github.com/basel-ax/fitroom/internal/domain"
)

// PostgresFavoriteRepository implements domain.FavoriteStore for PostgreSQL
type PostgresFavoriteRepository struct {
	db *sql.DB
}

var _ domain.FavoriteStore = (*PostgresFavoriteRepository)(nil)

// NewPostgresFavoriteRepository creates a new PostgreSQL favorites repository
func NewPostgresFavoriteRepository(db *sql.DB) *PostgresFavoriteRepository {
	return &PostgresFavoriteRepository{db: db}
}

// Add marks a garment as favorite; adding twice is a no-op
func (r *PostgresFavoriteRepository) Add(ctx context.Context, fav domain.Favorite) error {
	query := `
		INSERT INTO favorites (id, session_id, garment_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, garment_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, fav.ID, fav.SessionID, fav.GarmentID, fav.CreatedAt)
	return err
}

// Remove deletes a favorite marker
func (r *PostgresFavoriteRepository) Remove(ctx context.Context, sessionID, garmentID string) error {
	query := `
		DELETE FROM favorites
		WHERE session_id = $1 AND garment_id = $2
	`

	_, err := r.db.ExecContext(ctx, query, sessionID, garmentID)
	return err
}

// ListBySession returns a session's favorites, newest first
func (r *PostgresFavoriteRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Favorite, error) {
	query := `
		SELECT f.id, f.session_id, f.garment_id, f.created_at,
			g.id, g.name, g.category, g.image_url, g.description, g.tags, g.created_at
		FROM favorites f
		LEFT JOIN garments g ON g.id = f.garment_id
		WHERE f.session_id = $1
		ORDER BY f.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	favs := []domain.Favorite{}
	for rows.Next() {
		var f domain.Favorite
		var g joinedGarment
		if err := rows.Scan(append([]any{&f.ID, &f.SessionID, &f.GarmentID, &f.CreatedAt}, g.dest()...)...); err != nil {
			return nil, err
		}
		f.Garment = g.garment()
		favs = append(favs, f)
	}
	return favs, rows.Err()
}
