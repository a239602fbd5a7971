package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/basel-ax/fitroom/internal/domain"
)

// PostgresHistoryRepository implements domain.HistoryStore for PostgreSQL
type PostgresHistoryRepository struct {
	db *sql.DB
}

var _ domain.HistoryStore = (*PostgresHistoryRepository)(nil)

// NewPostgresHistoryRepository creates a new PostgreSQL history repository
func NewPostgresHistoryRepository(db *sql.DB) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

// Record inserts a try-on result
func (r *PostgresHistoryRepository) Record(ctx context.Context, entry domain.HistoryEntry) error {
	query := `
		INSERT INTO tryon_history (id, session_id, user_image_url, garment_id, result_image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.SessionID,
		entry.UserImageURL,
		nullString(entry.GarmentID),
		entry.ResultImageURL,
		entry.CreatedAt,
	)
	return err
}

// ListBySession returns a session's try-ons, newest first
func (r *PostgresHistoryRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error) {
	query := `
		SELECT h.id, h.session_id, h.user_image_url, h.garment_id, h.result_image_url, h.created_at,
			g.id, g.name, g.category, g.image_url, g.description, g.tags, g.created_at
		FROM tryon_history h
		LEFT JOIN garments g ON g.id = h.garment_id
		WHERE h.session_id = $1
		ORDER BY h.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.HistoryEntry{}
	for rows.Next() {
		var e domain.HistoryEntry
		var garmentID sql.NullString
		var g joinedGarment
		dest := append([]any{&e.ID, &e.SessionID, &e.UserImageURL, &garmentID, &e.ResultImageURL, &e.CreatedAt}, g.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		e.GarmentID = garmentID.String
		e.Garment = g.garment()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneOlderThan deletes entries created before cutoff
func (r *PostgresHistoryRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM tryon_history
		WHERE created_at < $1
	`

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
