package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/basel-ax/fitroom/internal/domain"
	"github.com/basel-ax/fitroom/internal/logger"
)

// HistoryPruner deletes try-on history older than the retention window
type HistoryPruner struct {
	store     domain.HistoryStore
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewHistoryPruner creates a pruner; a nil logger discards output.
func NewHistoryPruner(store domain.HistoryStore, retention time.Duration, l *slog.Logger) *HistoryPruner {
	if l == nil {
		l = logger.Discard()
	}
	return &HistoryPruner{
		store:     store,
		retention: retention,
		logger:    l,
		now:       time.Now,
	}
}

// PruneOnce removes every entry created before now minus the retention window
func (p *HistoryPruner) PruneOnce(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", p.retention)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().UTC().Add(-p.retention)
	n, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	p.logger.Info("history.pruned", "deleted", n, "cutoff", cutoff)
	return n, nil
}

// Schedule registers PruneOnce on a cron spec with a seconds field and
// starts the scheduler. The returned cron is stopped when ctx is done.
func (p *HistoryPruner) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc(spec, func() {
		p.logger.Debug("history.prune_started")
		if _, err := p.PruneOnce(ctx); err != nil {
			p.logger.Error("history.prune_failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}

	c.Start()
	p.logger.Info("history.prune_scheduled", "schedule", spec, "retention", p.retention)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		p.logger.Info("history.prune_stopped")
	}()

	return c, nil
}
