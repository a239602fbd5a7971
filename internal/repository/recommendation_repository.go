package repository

import (
	"context"
	"database/sql"

	"github.com/basel-ax/fitroom/internal/domain"
)

// PostgresRecommendationRepository implements domain.RecommendationStore for PostgreSQL
type PostgresRecommendationRepository struct {
	db *sql.DB
}

var _ domain.RecommendationStore = (*PostgresRecommendationRepository)(nil)

// NewPostgresRecommendationRepository creates a new PostgreSQL recommendations repository
func NewPostgresRecommendationRepository(db *sql.DB) *PostgresRecommendationRepository {
	return &PostgresRecommendationRepository{db: db}
}

// ListForGarment returns the garments recommended alongside garmentID,
// best score first
func (r *PostgresRecommendationRepository) ListForGarment(ctx context.Context, garmentID string) ([]domain.Recommendation, error) {
	query := `
		SELECT r.id, r.garment_id, r.recommended_garment_id, r.score, r.created_at,
			g.id, g.name, g.category, g.image_url, g.description, g.tags, g.created_at
		FROM recommendations r
		LEFT JOIN garments g ON g.id = r.recommended_garment_id
		WHERE r.garment_id = $1
		ORDER BY r.score DESC, r.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, garmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []domain.Recommendation{}
	for rows.Next() {
		var rec domain.Recommendation
		var g joinedGarment
		dest := append([]any{&rec.ID, &rec.GarmentID, &rec.RecommendedGarmentID, &rec.Score, &rec.CreatedAt}, g.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec.RecommendedGarment = g.garment()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Upsert stores a recommendation; an existing pair only has its score updated
func (r *PostgresRecommendationRepository) Upsert(ctx context.Context, rec domain.Recommendation) error {
	query := `
		INSERT INTO recommendations (id, garment_id, recommended_garment_id, score, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (garment_id, recommended_garment_id) DO UPDATE
		SET score = EXCLUDED.score
	`

	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.GarmentID, rec.RecommendedGarmentID, rec.Score, rec.CreatedAt)
	return err
}
