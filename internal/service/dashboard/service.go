package dashboard

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/errors"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// Config tunes the dashboard window and its cache.
type Config struct {
	// Window is how far back the threat view reaches.
	Window time.Duration
	// BucketSize is the timeline resolution.
	BucketSize time.Duration
	// MaxAssessments caps the store read backing one dashboard build.
	MaxAssessments int
	// StoreTimeout bounds the assessment store read.
	StoreTimeout time.Duration
}

// DefaultConfig returns the production dashboard tuning.
func DefaultConfig() *Config {
	return &Config{
		Window:         time.Hour,
		BucketSize:     5 * time.Minute,
		MaxAssessments: 1000,
		StoreTimeout:   5 * time.Second,
	}
}

// service implements the Service interface
type service struct {
	reader      AssessmentReader
	cache       SnapshotCache
	assessments AssessmentCache
	metrics     MetricsRecorder
	cfg         *Config
	logger      *zap.Logger
}

// Option tunes optional service wiring.
type Option func(*service)

// WithAssessmentCache serves per-session lookups through a cache.
func WithAssessmentCache(c AssessmentCache) Option {
	return func(s *service) {
		s.assessments = c
	}
}

// WithMetrics wires an instrumentation sink.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// NewService creates the threat dashboard service. The cache may be
// nil, in which case outages surface as errors instead of stale views.
func NewService(reader AssessmentReader, cache SnapshotCache, cfg *Config, logger *zap.Logger, opts ...Option) Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &service{
		reader: reader,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Threats(ctx context.Context) (*risk.ThreatDashboard, error) {
	now := risk.Now()

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	assessments, err := s.reader.RecentAssessments(readCtx, now.Add(-s.cfg.Window), s.cfg.MaxAssessments)
	if err != nil {
		s.logger.Error("dashboard store read failed", zap.Error(err))
		if s.cache != nil {
			if snapshot, cacheErr := s.cache.Snapshot(ctx); cacheErr == nil && snapshot != nil {
				s.logger.Warn("serving stale threat snapshot",
					zap.Time("generated_at", snapshot.GeneratedAt))
				s.recordCacheResult(ctx, "stale")
				return snapshot, nil
			}
		}
		return nil, errors.NewUnavailableError("assessment", "threat data unavailable").WithCause(err)
	}

	dashboard := buildDashboard(assessments, now, s.cfg.Window, s.cfg.BucketSize)
	if s.cache != nil {
		if err := s.cache.StoreSnapshot(ctx, dashboard); err != nil {
			s.logger.Warn("threat snapshot cache write failed", zap.Error(err))
		}
	}
	return dashboard, nil
}

func (s *service) LatestAssessment(ctx context.Context, sessionID string) (*risk.Assessment, error) {
	if sessionID == "" {
		return nil, errors.NewValidationError("INVALID_SESSION_ID", "session id is required")
	}

	if s.assessments != nil {
		cached, err := s.assessments.Latest(ctx, sessionID)
		if err != nil {
			s.logger.Warn("assessment cache read failed",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
		if cached != nil {
			s.recordCacheResult(ctx, "hit")
			return cached, nil
		}
		s.recordCacheResult(ctx, "miss")
	}

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	assessment, err := s.reader.LatestBySession(readCtx, sessionID)
	if err != nil {
		return nil, err
	}
	if assessment == nil {
		return nil, errors.ErrAssessmentNotFound
	}

	if s.assessments != nil {
		if err := s.assessments.StoreLatest(ctx, assessment); err != nil {
			s.logger.Warn("assessment cache write failed",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}
	return assessment, nil
}

func (s *service) recordCacheResult(ctx context.Context, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDashboardCache(ctx, result)
}

// buildDashboard aggregates assessments into the threat view. Pure:
// same inputs, same dashboard.
func buildDashboard(assessments []*risk.Assessment, now time.Time, window, bucketSize time.Duration) *risk.ThreatDashboard {
	dashboard := &risk.ThreatDashboard{
		CurrentThreatLevel: risk.LevelLow,
		CountsByLevel: map[string]int{
			risk.LevelLow.String():      0,
			risk.LevelMedium.String():   0,
			risk.LevelHigh.String():     0,
			risk.LevelCritical.String(): 0,
		},
		ActiveThreats:  risk.ActiveThreats{ByType: []risk.IndicatorCount{}},
		ThreatTimeline: []risk.TimelineBucket{},
		GeneratedAt:    now,
	}
	if len(assessments) == 0 {
		return dashboard
	}

	indicatorCounts := make(map[string]int)
	flaggedIPs := make(map[string]struct{})
	for _, a := range assessments {
		dashboard.CountsByLevel[a.RiskLevel.String()]++
		if a.RiskLevel > dashboard.CurrentThreatLevel {
			dashboard.CurrentThreatLevel = a.RiskLevel
		}
		if !a.Flagged() {
			continue
		}
		dashboard.ActiveThreats.TotalFlagged++
		if a.IPAddress != "" {
			flaggedIPs[a.IPAddress] = struct{}{}
		}
		for _, ind := range a.Indicators {
			indicatorCounts[ind.Name]++
		}
	}
	dashboard.BlockedIPs = len(flaggedIPs)

	for name, count := range indicatorCounts {
		dashboard.ActiveThreats.ByType = append(dashboard.ActiveThreats.ByType, risk.IndicatorCount{
			Type:  name,
			Count: count,
		})
	}
	sort.Slice(dashboard.ActiveThreats.ByType, func(i, j int) bool {
		a, b := dashboard.ActiveThreats.ByType[i], dashboard.ActiveThreats.ByType[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Type < b.Type
	})

	dashboard.ThreatTimeline = buildTimeline(assessments, now, window, bucketSize)
	return dashboard
}

// buildTimeline slices the window into fixed buckets, oldest first, and
// counts total and high-risk assessments per bucket.
func buildTimeline(assessments []*risk.Assessment, now time.Time, window, bucketSize time.Duration) []risk.TimelineBucket {
	bucketCount := int(window / bucketSize)
	if bucketCount <= 0 {
		bucketCount = 1
	}
	start := now.Add(-window).Truncate(bucketSize)

	timeline := make([]risk.TimelineBucket, bucketCount)
	for i := range timeline {
		timeline[i].Timestamp = start.Add(time.Duration(i) * bucketSize)
	}
	for _, a := range assessments {
		idx := int(a.AssessedAt.Sub(start) / bucketSize)
		if idx < 0 {
			idx = 0
		}
		if idx >= bucketCount {
			idx = bucketCount - 1
		}
		timeline[idx].TotalEvents++
		if a.Flagged() {
			timeline[idx].HighRiskEvents++
		}
	}
	return timeline
}
