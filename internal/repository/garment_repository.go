package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/basel-ax/fitroom/internal/domain"
)

// PostgresGarmentRepository implements domain.GarmentStore for PostgreSQL
type PostgresGarmentRepository struct {
	db *sql.DB
}

var _ domain.GarmentStore = (*PostgresGarmentRepository)(nil)

// NewPostgresGarmentRepository creates a new PostgreSQL catalog repository
func NewPostgresGarmentRepository(db *sql.DB) *PostgresGarmentRepository {
	return &PostgresGarmentRepository{db: db}
}

// List returns catalog entries, newest first, optionally of one category
func (r *PostgresGarmentRepository) List(ctx context.Context, category string) ([]domain.Garment, error) {
	query := `
		SELECT id, name, category, image_url, description, tags, created_at
		FROM garments
		WHERE ($1 = '' OR category = $1)
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	garments := []domain.Garment{}
	for rows.Next() {
		var g domain.Garment
		if err := rows.Scan(&g.ID, &g.Name, &g.Category, &g.ImageURL, &g.Description, pq.Array(&g.Tags), &g.CreatedAt); err != nil {
			return nil, err
		}
		garments = append(garments, g)
	}
	return garments, rows.Err()
}

// Categories returns the distinct categories in alphabetical order
func (r *PostgresGarmentRepository) Categories(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT category
		FROM garments
		ORDER BY category ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Upsert inserts a garment or updates the existing row with the same id
func (r *PostgresGarmentRepository) Upsert(ctx context.Context, g domain.Garment) error {
	query := `
		INSERT INTO garments (id, name, category, image_url, description, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			category = EXCLUDED.category,
			image_url = EXCLUDED.image_url,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags
	`

	_, err := r.db.ExecContext(ctx, query, g.ID, g.Name, g.Category, g.ImageURL, g.Description, pq.Array(g.Tags), g.CreatedAt)
	return err
}

// joinedGarment receives the garment columns of a LEFT JOIN; they are all
// NULL when the referenced garment is not in the catalog.
type joinedGarment struct {
	id, name, category, imageURL, description sql.NullString
	tags                                      pq.StringArray
	createdAt                                 sql.NullTime
}

func (j *joinedGarment) dest() []any {
	return []any{&j.id, &j.name, &j.category, &j.imageURL, &j.description, &j.tags, &j.createdAt}
}

func (j *joinedGarment) garment() *domain.Garment {
	if !j.id.Valid {
		return nil
	}
	tags := []string(j.tags)
	if tags == nil {
		tags = []string{}
	}
	return &domain.Garment{
		ID:          j.id.String,
		Name:        j.name.String,
		Category:    j.category.String,
		ImageURL:    j.imageURL.String,
		Description: j.description.String,
		Tags:        tags,
		CreatedAt:   j.createdAt.Time,
	}
}
