package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// ThreatCache keeps the most recently built threat dashboard so the API
// can keep serving a recent view through assessment-store outages. It
// implements the dashboard service's SnapshotCache.
type ThreatCache struct {
	cache  Cache
	logger *zap.Logger
	ttl    time.Duration
}

// NewThreatCache creates a threat snapshot cache. ttl <= 0 selects the
// default snapshot TTL.
func NewThreatCache(cache Cache, ttl time.Duration, logger *zap.Logger) *ThreatCache {
	if ttl <= 0 {
		ttl = ThreatSnapshotTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThreatCache{
		cache:  cache,
		logger: logger,
		ttl:    ttl,
	}
}

// Snapshot returns the cached dashboard, or nil when none is cached.
func (c *ThreatCache) Snapshot(ctx context.Context) (*risk.ThreatDashboard, error) {
	var snapshot risk.ThreatDashboard
	if err := c.cache.GetJSON(ctx, ThreatSnapshotKey, &snapshot); err != nil {
		var notFound ErrCacheKeyNotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// StoreSnapshot replaces the cached dashboard. The TTL bounds how stale
// a served snapshot can get during an outage.
func (c *ThreatCache) StoreSnapshot(ctx context.Context, snapshot *risk.ThreatDashboard) error {
	if err := c.cache.SetJSON(ctx, ThreatSnapshotKey, snapshot, c.ttl); err != nil {
		return err
	}
	c.logger.Debug("threat snapshot cached",
		zap.Time("generated_at", snapshot.GeneratedAt),
		zap.Duration("ttl", c.ttl))
	return nil
}
