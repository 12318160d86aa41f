package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// AssessmentCache keeps the latest persisted assessment per session.
// Sessions are re-assessed on every purchase attempt, so lookups for a
// hot session repeat within seconds; the short TTL bounds how long a
// superseded result can be served.
type AssessmentCache struct {
	cache  Cache
	logger *zap.Logger
	ttl    time.Duration
}

// NewAssessmentCache creates a per-session assessment cache. ttl <= 0
// selects the default lookup TTL.
func NewAssessmentCache(cache Cache, ttl time.Duration, logger *zap.Logger) *AssessmentCache {
	if ttl <= 0 {
		ttl = LatestAssessmentTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentCache{
		cache:  cache,
		logger: logger,
		ttl:    ttl,
	}
}

// Latest returns the cached assessment for a session, or nil when none
// is cached.
func (c *AssessmentCache) Latest(ctx context.Context, sessionID string) (*risk.Assessment, error) {
	var assessment risk.Assessment
	if err := c.cache.GetJSON(ctx, LatestAssessmentPrefix+sessionID, &assessment); err != nil {
		var notFound ErrCacheKeyNotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assessment, nil
}

// StoreLatest caches an assessment under its session id.
func (c *AssessmentCache) StoreLatest(ctx context.Context, assessment *risk.Assessment) error {
	if err := c.cache.SetJSON(ctx, LatestAssessmentPrefix+assessment.SessionID, assessment, c.ttl); err != nil {
		return err
	}
	c.logger.Debug("latest assessment cached",
		zap.String("session_id", assessment.SessionID),
		zap.Duration("ttl", c.ttl))
	return nil
}
