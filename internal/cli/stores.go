package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/basel-ax/fitroom/internal/config"
	"github.com/basel-ax/fitroom/internal/domain"
	"github.com/basel-ax/fitroom/internal/repository"
)

type stores struct {
	db        *sql.DB
	history   domain.HistoryStore
	favorites domain.FavoriteStore
	garments  domain.GarmentStore

	recommendations domain.RecommendationStore
}

// openStores connects to Postgres when DB_HOST is set and falls back to
// process-local stores otherwise.
func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if !cfg.DB.Enabled() {
		log.Warn("store.memory", "reason", "DB_HOST not set, history, favorites and catalog are not persisted")
		catalog := repository.NewMemoryGarmentRepository()
		return &stores{
			history:   repository.NewMemoryHistoryRepository().WithCatalog(catalog),
			favorites: repository.NewMemoryFavoriteRepository().WithCatalog(catalog),
			garments:  catalog,

			recommendations: repository.NewMemoryRecommendationRepository(catalog),
		}, nil
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	log.Info("store.postgres", "host", cfg.DB.Host, "database", cfg.DB.Database)

	return &stores{
		db:        db,
		history:   repository.NewPostgresHistoryRepository(db),
		favorites: repository.NewPostgresFavoriteRepository(db),
		garments:  repository.NewPostgresGarmentRepository(db),

		recommendations: repository.NewPostgresRecommendationRepository(db),
	}, nil
}

func (s *stores) persistent() bool {
	return s.db != nil
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
