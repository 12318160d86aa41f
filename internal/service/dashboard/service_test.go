package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/errors"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// Mock implementations

type MockAssessmentReader struct {
	mock.Mock
}

func (m *MockAssessmentReader) RecentAssessments(ctx context.Context, since time.Time, limit int) ([]*risk.Assessment, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*risk.Assessment), args.Error(1)
}

func (m *MockAssessmentReader) LatestBySession(ctx context.Context, sessionID string) (*risk.Assessment, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.Assessment), args.Error(1)
}

type MockSnapshotCache struct {
	mock.Mock
}

func (m *MockSnapshotCache) Snapshot(ctx context.Context) (*risk.ThreatDashboard, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.ThreatDashboard), args.Error(1)
}

func (m *MockSnapshotCache) StoreSnapshot(ctx context.Context, dashboard *risk.ThreatDashboard) error {
	args := m.Called(ctx, dashboard)
	return args.Error(0)
}

type MockAssessmentCache struct {
	mock.Mock
}

func (m *MockAssessmentCache) Latest(ctx context.Context, sessionID string) (*risk.Assessment, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.Assessment), args.Error(1)
}

func (m *MockAssessmentCache) StoreLatest(ctx context.Context, assessment *risk.Assessment) error {
	args := m.Called(ctx, assessment)
	return args.Error(0)
}

type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) RecordDashboardCache(ctx context.Context, result string) {
	m.Called(ctx, result)
}

func assessmentAt(at time.Time, level risk.Level, ip string, indicators ...string) *risk.Assessment {
	a := &risk.Assessment{
		ID:         uuid.New(),
		SessionID:  "sess-" + uuid.NewString()[:8],
		RiskLevel:  level,
		IPAddress:  ip,
		AssessedAt: at,
	}
	for _, name := range indicators {
		a.Indicators = append(a.Indicators, risk.Indicator{Name: name, Score: 30})
	}
	return a
}

// Tests

func TestService_Threats_EmptyWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	risk.SetClock(&risk.MockClock{CurrentTime: now})
	defer risk.ResetClock()

	reader := new(MockAssessmentReader)
	reader.On("RecentAssessments", mock.Anything, now.Add(-time.Hour), 1000).
		Return([]*risk.Assessment{}, nil)

	svc := NewService(reader, nil, nil, nil)
	dashboard, err := svc.Threats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, risk.LevelLow, dashboard.CurrentThreatLevel)
	assert.Equal(t, map[string]int{"LOW": 0, "MEDIUM": 0, "HIGH": 0, "CRITICAL": 0}, dashboard.CountsByLevel)
	assert.Equal(t, 0, dashboard.ActiveThreats.TotalFlagged)
	assert.NotNil(t, dashboard.ActiveThreats.ByType)
	assert.Empty(t, dashboard.ActiveThreats.ByType)
	assert.Equal(t, 0, dashboard.BlockedIPs)
	assert.NotNil(t, dashboard.ThreatTimeline)
	assert.Empty(t, dashboard.ThreatTimeline)
	assert.Equal(t, now, dashboard.GeneratedAt)
}

func TestService_Threats_Aggregation(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	risk.SetClock(&risk.MockClock{CurrentTime: now})
	defer risk.ResetClock()

	assessments := []*risk.Assessment{
		assessmentAt(now.Add(-5*time.Minute), risk.LevelCritical, "203.0.113.7",
			risk.IndicatorRapidFireClicks, risk.IndicatorSuperhumanSpeed),
		assessmentAt(now.Add(-10*time.Minute), risk.LevelHigh, "203.0.113.7",
			risk.IndicatorRapidFireClicks),
		assessmentAt(now.Add(-20*time.Minute), risk.LevelHigh, "198.51.100.4",
			risk.IndicatorHighQuantitySingle),
		assessmentAt(now.Add(-30*time.Minute), risk.LevelMedium, "192.0.2.1",
			risk.IndicatorHighQuantityCumulative),
		assessmentAt(now.Add(-40*time.Minute), risk.LevelLow, ""),
		assessmentAt(now.Add(-50*time.Minute), risk.LevelLow, ""),
	}

	reader := new(MockAssessmentReader)
	reader.On("RecentAssessments", mock.Anything, mock.Anything, mock.Anything).
		Return(assessments, nil)

	svc := NewService(reader, nil, nil, nil)
	dashboard, err := svc.Threats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, risk.LevelCritical, dashboard.CurrentThreatLevel)
	assert.Equal(t, map[string]int{"LOW": 2, "MEDIUM": 1, "HIGH": 2, "CRITICAL": 1}, dashboard.CountsByLevel)

	assert.Equal(t, 3, dashboard.ActiveThreats.TotalFlagged)
	// rapid_fire fired twice across flagged sessions; the rest once.
	require.NotEmpty(t, dashboard.ActiveThreats.ByType)
	assert.Equal(t, risk.IndicatorRapidFireClicks, dashboard.ActiveThreats.ByType[0].Type)
	assert.Equal(t, 2, dashboard.ActiveThreats.ByType[0].Count)

	// Two distinct IPs among the three flagged sessions.
	assert.Equal(t, 2, dashboard.BlockedIPs)

	// MEDIUM and LOW sessions count toward volume but not threats.
	require.Len(t, dashboard.ThreatTimeline, 12)
	var total, highRisk int
	for _, bucket := range dashboard.ThreatTimeline {
		total += bucket.TotalEvents
		highRisk += bucket.HighRiskEvents
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, 3, highRisk)

	// Buckets ascend in fixed steps.
	for i := 1; i < len(dashboard.ThreatTimeline); i++ {
		step := dashboard.ThreatTimeline[i].Timestamp.Sub(dashboard.ThreatTimeline[i-1].Timestamp)
		assert.Equal(t, 5*time.Minute, step)
	}
}

func TestService_Threats_ServesStaleSnapshotOnOutage(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	risk.SetClock(&risk.MockClock{CurrentTime: now})
	defer risk.ResetClock()

	reader := new(MockAssessmentReader)
	reader.On("RecentAssessments", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.NewUnavailableError("assessment", "connection refused"))

	stale := &risk.ThreatDashboard{
		CurrentThreatLevel: risk.LevelHigh,
		GeneratedAt:        now.Add(-2 * time.Minute),
	}
	cache := new(MockSnapshotCache)
	cache.On("Snapshot", mock.Anything).Return(stale, nil)

	metrics := new(MockMetricsRecorder)
	metrics.On("RecordDashboardCache", mock.Anything, "stale").Once()

	svc := NewService(reader, cache, nil, nil, WithMetrics(metrics))
	dashboard, err := svc.Threats(context.Background())
	require.NoError(t, err)
	assert.Same(t, stale, dashboard)
	metrics.AssertExpectations(t)
}

func TestService_Threats_OutageWithoutSnapshotErrors(t *testing.T) {
	reader := new(MockAssessmentReader)
	reader.On("RecentAssessments", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.NewUnavailableError("assessment", "connection refused"))

	cache := new(MockSnapshotCache)
	cache.On("Snapshot", mock.Anything).Return(nil, errors.NewNotFoundError("snapshot"))

	svc := NewService(reader, cache, nil, nil)
	_, err := svc.Threats(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnavailable))
}

func TestService_Threats_CachesFreshBuilds(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	risk.SetClock(&risk.MockClock{CurrentTime: now})
	defer risk.ResetClock()

	reader := new(MockAssessmentReader)
	reader.On("RecentAssessments", mock.Anything, mock.Anything, mock.Anything).
		Return([]*risk.Assessment{}, nil)

	cache := new(MockSnapshotCache)
	cache.On("StoreSnapshot", mock.Anything, mock.MatchedBy(func(d *risk.ThreatDashboard) bool {
		return d.GeneratedAt.Equal(now)
	})).Return(nil).Once()

	svc := NewService(reader, cache, nil, nil)
	_, err := svc.Threats(context.Background())
	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestService_LatestAssessment(t *testing.T) {
	stored := assessmentAt(time.Now(), risk.LevelMedium, "192.0.2.1", risk.IndicatorHighQuantityCumulative)
	stored.SessionID = "sess-known"

	tests := []struct {
		name          string
		sessionID     string
		setupMocks    func(*MockAssessmentReader)
		expectedError error
		validate      func(*testing.T, *risk.Assessment)
	}{
		{
			name:      "found",
			sessionID: "sess-known",
			setupMocks: func(r *MockAssessmentReader) {
				r.On("LatestBySession", mock.Anything, "sess-known").Return(stored, nil)
			},
			validate: func(t *testing.T, a *risk.Assessment) {
				assert.Equal(t, stored.ID, a.ID)
			},
		},
		{
			name:      "not found",
			sessionID: "sess-ghost",
			setupMocks: func(r *MockAssessmentReader) {
				r.On("LatestBySession", mock.Anything, "sess-ghost").Return(nil, nil)
			},
			expectedError: errors.ErrAssessmentNotFound,
		},
		{
			name:          "empty session id",
			sessionID:     "",
			setupMocks:    func(r *MockAssessmentReader) {},
			expectedError: errors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := new(MockAssessmentReader)
			tt.setupMocks(reader)

			svc := NewService(reader, nil, nil, nil)
			assessment, err := svc.LatestAssessment(context.Background(), tt.sessionID)

			if tt.expectedError != nil {
				require.Error(t, err)
				if tt.expectedError == errors.ErrAssessmentNotFound {
					assert.ErrorIs(t, err, errors.ErrAssessmentNotFound)
				} else {
					assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				}
				return
			}
			require.NoError(t, err)
			tt.validate(t, assessment)
		})
	}
}

func TestService_LatestAssessment_CacheHit(t *testing.T) {
	cached := assessmentAt(time.Now(), risk.LevelHigh, "203.0.113.7", risk.IndicatorRapidFireClicks)
	cached.SessionID = "sess-hot"

	assessments := new(MockAssessmentCache)
	assessments.On("Latest", mock.Anything, "sess-hot").Return(cached, nil)

	metrics := new(MockMetricsRecorder)
	metrics.On("RecordDashboardCache", mock.Anything, "hit").Once()

	reader := new(MockAssessmentReader)

	svc := NewService(reader, nil, nil, nil, WithAssessmentCache(assessments), WithMetrics(metrics))
	got, err := svc.LatestAssessment(context.Background(), "sess-hot")
	require.NoError(t, err)
	assert.Same(t, cached, got)

	reader.AssertNotCalled(t, "LatestBySession", mock.Anything, mock.Anything)
	assessments.AssertNotCalled(t, "StoreLatest", mock.Anything, mock.Anything)
	metrics.AssertExpectations(t)
}

func TestService_LatestAssessment_CacheMissBackfills(t *testing.T) {
	stored := assessmentAt(time.Now(), risk.LevelMedium, "192.0.2.1", risk.IndicatorHighQuantityCumulative)
	stored.SessionID = "sess-cold"

	assessments := new(MockAssessmentCache)
	assessments.On("Latest", mock.Anything, "sess-cold").Return(nil, nil)
	assessments.On("StoreLatest", mock.Anything, stored).Return(nil).Once()

	metrics := new(MockMetricsRecorder)
	metrics.On("RecordDashboardCache", mock.Anything, "miss").Once()

	reader := new(MockAssessmentReader)
	reader.On("LatestBySession", mock.Anything, "sess-cold").Return(stored, nil)

	svc := NewService(reader, nil, nil, nil, WithAssessmentCache(assessments), WithMetrics(metrics))
	got, err := svc.LatestAssessment(context.Background(), "sess-cold")
	require.NoError(t, err)
	assert.Same(t, stored, got)

	assessments.AssertExpectations(t)
	metrics.AssertExpectations(t)
}

func TestService_LatestAssessment_CacheOutageFallsThrough(t *testing.T) {
	stored := assessmentAt(time.Now(), risk.LevelLow, "")
	stored.SessionID = "sess-degraded"

	assessments := new(MockAssessmentCache)
	assessments.On("Latest", mock.Anything, "sess-degraded").
		Return(nil, errors.NewUnavailableError("redis", "connection refused"))
	assessments.On("StoreLatest", mock.Anything, stored).
		Return(errors.NewUnavailableError("redis", "connection refused"))

	reader := new(MockAssessmentReader)
	reader.On("LatestBySession", mock.Anything, "sess-degraded").Return(stored, nil)

	svc := NewService(reader, nil, nil, nil, WithAssessmentCache(assessments))
	got, err := svc.LatestAssessment(context.Background(), "sess-degraded")
	require.NoError(t, err)
	assert.Same(t, stored, got)
}
