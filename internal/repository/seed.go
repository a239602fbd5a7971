package repository

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/basel-ax/fitroom/internal/domain"
)

// Catalog is the content of a YAML seed file:
//
//	garments:
//	  - id: tee-white
//	    name: White tee
//	    category: tops
//	    image_url: https://...
//	recommendations:
//	  - garment_id: tee-white
//	    recommended_garment_id: jeans-blue
//	    score: 0.9
type Catalog struct {
	Garments        []domain.Garment        `yaml:"garments"`
	Recommendations []domain.Recommendation `yaml:"recommendations"`
}

// LoadCatalog parses and validates a seed file. An empty file yields an
// empty catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if err == io.EOF {
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}

	for i, g := range c.Garments {
		if g.ID == "" || g.Name == "" || g.Category == "" || g.ImageURL == "" {
			return nil, fmt.Errorf("garment #%d: id, name, category and image_url are required", i+1)
		}
	}
	for i, rec := range c.Recommendations {
		if rec.GarmentID == "" || rec.RecommendedGarmentID == "" {
			return nil, fmt.Errorf("recommendation #%d: garment_id and recommended_garment_id are required", i+1)
		}
		if rec.GarmentID == rec.RecommendedGarmentID {
			return nil, fmt.Errorf("recommendation #%d: garment %s cannot recommend itself", i+1, rec.GarmentID)
		}
		if rec.Score < 0 {
			return nil, fmt.Errorf("recommendation #%d: score must not be negative", i+1)
		}
	}
	return &c, nil
}

// SeedGarments upserts every garment into the store and returns how many
// were written.
func SeedGarments(ctx context.Context, store domain.GarmentStore, garments []domain.Garment) (int, error) {
	now := time.Now().UTC()
	for i, g := range garments {
		if g.CreatedAt.IsZero() {
			g.CreatedAt = now
		}
		if g.Tags == nil {
			g.Tags = []string{}
		}
		if err := store.Upsert(ctx, g); err != nil {
			return i, fmt.Errorf("failed to upsert garment %s: %w", g.ID, err)
		}
	}
	return len(garments), nil
}

// SeedRecommendations upserts recommendations. The garments they name must
// already be in the catalog when the store enforces references.
func SeedRecommendations(ctx context.Context, store domain.RecommendationStore, recs []domain.Recommendation) (int, error) {
	now := time.Now().UTC()
	for i, rec := range recs {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if err := store.Upsert(ctx, rec); err != nil {
			return i, fmt.Errorf("failed to upsert recommendation %s -> %s: %w", rec.GarmentID, rec.RecommendedGarmentID, err)
		}
	}
	return len(recs), nil
}
