package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/basel-ax/fitroom/internal/domain"
)

// MemoryHistoryRepository keeps history in process memory
type MemoryHistoryRepository struct {
	entries []domain.HistoryEntry
	catalog *MemoryGarmentRepository
	mu      sync.RWMutex
}

var _ domain.HistoryStore = (*MemoryHistoryRepository)(nil)

func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{}
}

// WithCatalog makes listed entries carry their garment, like the SQL join.
func (r *MemoryHistoryRepository) WithCatalog(c *MemoryGarmentRepository) *MemoryHistoryRepository {
	r.catalog = c
	return r
}

func (r *MemoryHistoryRepository) Record(ctx context.Context, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryHistoryRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.HistoryEntry{}
	for _, e := range r.entries {
		if e.SessionID == sessionID {
			e.Garment = r.catalog.lookup(e.GarmentID)
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryHistoryRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	var pruned int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return pruned, nil
}

// MemoryFavoriteRepository keeps favorites in process memory
type MemoryFavoriteRepository struct {
	favorites map[string]map[string]domain.Favorite // session -> garment -> favorite
	catalog   *MemoryGarmentRepository
	mu        sync.RWMutex
}

var _ domain.FavoriteStore = (*MemoryFavoriteRepository)(nil)

func NewMemoryFavoriteRepository() *MemoryFavoriteRepository {
	return &MemoryFavoriteRepository{
		favorites: make(map[string]map[string]domain.Favorite),
	}
}

// WithCatalog makes listed favorites carry their garment.
func (r *MemoryFavoriteRepository) WithCatalog(c *MemoryGarmentRepository) *MemoryFavoriteRepository {
	r.catalog = c
	return r
}

func (r *MemoryFavoriteRepository) Add(ctx context.Context, fav domain.Favorite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bySession, ok := r.favorites[fav.SessionID]
	if !ok {
		bySession = make(map[string]domain.Favorite)
		r.favorites[fav.SessionID] = bySession
	}
	if _, exists := bySession[fav.GarmentID]; !exists {
		bySession[fav.GarmentID] = fav
	}
	return nil
}

func (r *MemoryFavoriteRepository) Remove(ctx context.Context, sessionID, garmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.favorites[sessionID], garmentID)
	return nil
}

func (r *MemoryFavoriteRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Favorite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Favorite{}
	for _, f := range r.favorites[sessionID] {
		f.Garment = r.catalog.lookup(f.GarmentID)
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MemoryGarmentRepository keeps the catalog in process memory
type MemoryGarmentRepository struct {
	garments map[string]domain.Garment
	mu       sync.RWMutex
}

var _ domain.GarmentStore = (*MemoryGarmentRepository)(nil)

func NewMemoryGarmentRepository() *MemoryGarmentRepository {
	return &MemoryGarmentRepository{
		garments: make(map[string]domain.Garment),
	}
}

func (r *MemoryGarmentRepository) List(ctx context.Context, category string) ([]domain.Garment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Garment{}
	for _, g := range r.garments {
		if category == "" || g.Category == category {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryGarmentRepository) Categories(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]struct{}{}
	out := []string{}
	for _, g := range r.garments {
		if _, ok := seen[g.Category]; ok {
			continue
		}
		seen[g.Category] = struct{}{}
		out = append(out, g.Category)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryGarmentRepository) Upsert(ctx context.Context, g domain.Garment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.garments[g.ID]; ok {
		g.CreatedAt = existing.CreatedAt
	}
	r.garments[g.ID] = g
	return nil
}

// lookup returns a copy of the garment, or nil when it is unknown. Safe on a
// nil repository.
func (r *MemoryGarmentRepository) lookup(id string) *domain.Garment {
	if r == nil || id == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.garments[id]
	if !ok {
		return nil
	}
	return &g
}

// MemoryRecommendationRepository keeps recommendations in process memory
type MemoryRecommendationRepository struct {
	recs    map[string]map[string]domain.Recommendation // garment -> recommended garment -> rec
	catalog *MemoryGarmentRepository
	mu      sync.RWMutex
}

var _ domain.RecommendationStore = (*MemoryRecommendationRepository)(nil)

// NewMemoryRecommendationRepository resolves recommended garments from
// catalog, which may be nil.
func NewMemoryRecommendationRepository(catalog *MemoryGarmentRepository) *MemoryRecommendationRepository {
	return &MemoryRecommendationRepository{
		recs:    make(map[string]map[string]domain.Recommendation),
		catalog: catalog,
	}
}

func (r *MemoryRecommendationRepository) ListForGarment(ctx context.Context, garmentID string) ([]domain.Recommendation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Recommendation{}
	for _, rec := range r.recs[garmentID] {
		rec.RecommendedGarment = r.catalog.lookup(rec.RecommendedGarmentID)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].RecommendedGarmentID < out[j].RecommendedGarmentID
	})
	return out, nil
}

func (r *MemoryRecommendationRepository) Upsert(ctx context.Context, rec domain.Recommendation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byGarment, ok := r.recs[rec.GarmentID]
	if !ok {
		byGarment = make(map[string]domain.Recommendation)
		r.recs[rec.GarmentID] = byGarment
	}
	if existing, ok := byGarment[rec.RecommendedGarmentID]; ok {
		existing.Score = rec.Score
		rec = existing
	}
	rec.RecommendedGarment = nil
	byGarment[rec.RecommendedGarmentID] = rec
	return nil
}
