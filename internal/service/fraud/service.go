package fraud

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/errors"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// service implements the fraud assessment engine
type service struct {
	behaviorStore   BehaviorStore
	assessmentStore AssessmentStore
	detectors       []Detector
	cfg             *DetectionConfig
	logger          *zap.Logger
	publisher       AssessmentPublisher
	metrics         MetricsRecorder
}

// Option tunes optional service wiring.
type Option func(*service)

// WithPublisher routes flagged assessments to a live feed.
func WithPublisher(p AssessmentPublisher) Option {
	return func(s *service) {
		s.publisher = p
	}
}

// WithMetrics wires an instrumentation sink.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// NewService creates the fraud assessment engine. A nil cfg selects the
// production tuning; a nil logger is replaced with a no-op one. The
// assessment store may be nil, in which case results are computed but
// not persisted.
func NewService(
	behaviorStore BehaviorStore,
	assessmentStore AssessmentStore,
	cfg *DetectionConfig,
	logger *zap.Logger,
	opts ...Option,
) Service {
	if cfg == nil {
		cfg = DefaultDetectionConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &service{
		behaviorStore:   behaviorStore,
		assessmentStore: assessmentStore,
		cfg:             cfg,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Detector order fixes the order indicators appear in results.
	s.detectors = []Detector{
		newRapidFireDetector(cfg.RapidFire),
		newQuantityDetector(cfg.Quantity),
		newTargetingDetector(cfg.Targeting),
		newBotPatternDetector(cfg.BotPattern),
		newIPActivityDetector(cfg.IPActivity, behaviorStore),
		newUserHistoryDetector(cfg.UserHistory, behaviorStore, logger),
	}
	return s
}

// AssessSession scores one session. A session with no recorded actions
// floors at LOW/ALLOW. When the action history cannot be read the
// result is a degraded LOW/MONITOR assessment, not an error: callers
// gate purchases on this and an outage must not block every sale.
func (s *service) AssessSession(ctx context.Context, sessionID, userID string) (*risk.Assessment, error) {
	if sessionID == "" {
		return nil, errors.NewValidationError("INVALID_SESSION_ID", "session id is required")
	}

	start := time.Now()

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	actions, err := s.behaviorStore.SessionActions(readCtx, sessionID)
	if err != nil {
		s.logger.Error("session history read failed, assessment degraded",
			zap.String("session_id", sessionID),
			zap.Error(err))
		s.recordStoreError(ctx, "behavior")
		assessment := risk.NewDegradedAssessment(sessionID, userID, "session history unavailable")
		s.recordAssessment(ctx, assessment, time.Since(start))
		return assessment, nil
	}

	if len(actions) == 0 {
		assessment := risk.NewNoDataAssessment(sessionID, userID)
		s.recordAssessment(ctx, assessment, time.Since(start))
		return assessment, nil
	}

	snap := newSessionSnapshot(sessionID, userID, actions)
	indicators := s.runDetectors(ctx, snap)

	assessment := risk.NewAssessment(sessionID, userID, indicators, s.cfg.Thresholds)
	assessment.IPAddress = snap.FirstIP()

	s.persistAsync(assessment)
	if s.publisher != nil && assessment.Flagged() {
		s.publisher.PublishAssessment(assessment)
	}
	s.recordAssessment(ctx, assessment, time.Since(start))
	if s.metrics != nil {
		for _, ind := range assessment.Indicators {
			s.metrics.RecordIndicator(ctx, ind.Name)
		}
	}

	s.logger.Debug("session assessed",
		zap.String("session_id", sessionID),
		zap.Float64("risk_score", assessment.TotalRiskScore),
		zap.String("risk_level", assessment.RiskLevel.String()),
		zap.Int("indicators", len(assessment.Indicators)))
	return assessment, nil
}

// runDetectors fans the snapshot out to every detector and collects
// indicators back in registration order, so repeated assessments of the
// same history produce identical results. A failing detector is logged
// and skipped; it never sinks the assessment.
func (s *service) runDetectors(ctx context.Context, snap *SessionSnapshot) []risk.Indicator {
	type detectorResult struct {
		index      int
		indicators []risk.Indicator
		err        error
	}

	detectCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	resultChan := make(chan detectorResult, len(s.detectors))
	for i, d := range s.detectors {
		go func(i int, d Detector) {
			indicators, err := d.Evaluate(detectCtx, snap)
			resultChan <- detectorResult{index: i, indicators: indicators, err: err}
		}(i, d)
	}

	byDetector := make([][]risk.Indicator, len(s.detectors))
	for i := 0; i < len(s.detectors); i++ {
		result := <-resultChan
		if result.err != nil {
			s.logger.Warn("detector skipped",
				zap.String("detector", s.detectors[result.index].Name()),
				zap.String("session_id", snap.SessionID),
				zap.Error(result.err))
			s.recordStoreError(ctx, s.detectors[result.index].Name())
			continue
		}
		byDetector[result.index] = result.indicators
	}

	indicators := make([]risk.Indicator, 0, len(s.detectors))
	for _, batch := range byDetector {
		indicators = append(indicators, batch...)
	}
	return indicators
}

// persistAsync writes the assessment off the request path. The write
// carries its own deadline on a detached context so request
// cancellation cannot drop the record.
func (s *service) persistAsync(assessment *risk.Assessment) {
	if s.assessmentStore == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
		defer cancel()
		if err := s.assessmentStore.Insert(ctx, assessment); err != nil {
			s.logger.Error("assessment persist failed",
				zap.String("assessment_id", assessment.ID.String()),
				zap.String("session_id", assessment.SessionID),
				zap.Error(err))
			s.recordStoreError(context.Background(), "assessment")
		}
	}()
}

func (s *service) recordAssessment(ctx context.Context, a *risk.Assessment, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordAssessment(ctx, a.RiskLevel.String(), a.TotalRiskScore, elapsed)
}

func (s *service) recordStoreError(ctx context.Context, store string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordStoreError(ctx, store)
}
