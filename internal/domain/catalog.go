package domain

import (
	"context"
	"time"
)

// Garment is a catalog entry
type Garment struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Category    string    `json:"category" yaml:"category"`
	ImageURL    string    `json:"image_url" yaml:"image_url"`
	Description string    `json:"description" yaml:"description"`
	Tags        []string  `json:"tags" yaml:"tags"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// HistoryEntry records one successful try-on for a session
type HistoryEntry struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	UserImageURL   string    `json:"user_image_url"`
	GarmentID      string    `json:"garment_id,omitempty"`
	ResultImageURL string    `json:"result_image_url"`
	CreatedAt      time.Time `json:"created_at"`

	// Garment is the catalog entry behind GarmentID, when it still exists.
	Garment *Garment `json:"garment,omitempty"`
}

// Favorite marks a garment for a session
type Favorite struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	GarmentID string    `json:"garment_id"`
	CreatedAt time.Time `json:"created_at"`

	Garment *Garment `json:"garment,omitempty"`
}

// Recommendation pairs a garment with another one that goes well with it.
// Higher scores rank first.
type Recommendation struct {
	ID                   string    `json:"id" yaml:"-"`
	GarmentID            string    `json:"garment_id" yaml:"garment_id"`
	RecommendedGarmentID string    `json:"recommended_garment_id" yaml:"recommended_garment_id"`
	Score                float64   `json:"score" yaml:"score"`
	CreatedAt            time.Time `json:"created_at" yaml:"-"`

	RecommendedGarment *Garment `json:"recommended_garment,omitempty" yaml:"-"`
}

// HistoryStore persists try-on results
type HistoryStore interface {
	Record(ctx context.Context, entry HistoryEntry) error
	ListBySession(ctx context.Context, sessionID string) ([]HistoryEntry, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// FavoriteStore persists favorite markers keyed by session
type FavoriteStore interface {
	Add(ctx context.Context, fav Favorite) error
	Remove(ctx context.Context, sessionID, garmentID string) error
	ListBySession(ctx context.Context, sessionID string) ([]Favorite, error)
}

// GarmentStore serves the catalog
type GarmentStore interface {
	List(ctx context.Context, category string) ([]Garment, error)
	Categories(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, g Garment) error
}

// RecommendationStore serves garment recommendations
type RecommendationStore interface {
	ListForGarment(ctx context.Context, garmentID string) ([]Recommendation, error)
	Upsert(ctx context.Context, rec Recommendation) error
}
