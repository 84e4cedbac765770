package engine

import (
	"context"
	"sync"

	"sentinella/internal/logger"
	"sentinella/internal/store"
	"sentinella/pkg/metrics"
	"sentinella/pkg/models"
)

// RuleCache holds the in-memory snapshot of enabled filters. It is refreshed
// read-through at the start of every evaluation pass; when the store is
// unreachable the previous snapshot keeps serving so message intake never
// stops.
type RuleCache struct {
	repo     store.FilterRepository
	mu       sync.RWMutex
	snapshot []models.Filter
	loaded   bool
	logger   logger.Logger
}

func NewRuleCache(repo store.FilterRepository, log logger.Logger) *RuleCache {
	return &RuleCache{
		repo:   repo,
		logger: log,
	}
}

// Refresh reloads enabled filters from the store. On failure the previous
// snapshot is kept and the error is returned so the caller can log the
// degraded condition.
func (c *RuleCache) Refresh(ctx context.Context) error {
	filters, err := c.repo.FindEnabled(ctx)
	if err != nil {
		metrics.CacheRefreshFailuresTotal.Inc()
		return err
	}

	c.mu.Lock()
	c.snapshot = filters
	c.loaded = true
	c.mu.Unlock()

	metrics.SetActiveFilters(len(filters))
	return nil
}

// Current returns the last successfully loaded snapshot. Callers get a copy;
// concurrent Refresh never mutates a returned slice.
func (c *RuleCache) Current() []models.Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	filters := make([]models.Filter, len(c.snapshot))
	copy(filters, c.snapshot)
	return filters
}

// Loaded reports whether at least one refresh has succeeded since startup.
func (c *RuleCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}
