package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/behavior"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/errors"
	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

// Mock implementations

type MockBehaviorStore struct {
	mock.Mock
}

func (m *MockBehaviorStore) SessionActions(ctx context.Context, sessionID string) ([]behavior.Action, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]behavior.Action), args.Error(1)
}

func (m *MockBehaviorStore) IPActivity(ctx context.Context, ip string, window time.Duration) (*behavior.IPActivity, error) {
	args := m.Called(ctx, ip, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*behavior.IPActivity), args.Error(1)
}

func (m *MockBehaviorStore) UserActivitySummary(ctx context.Context, userID string, from, to time.Time) (*behavior.UserActivitySummary, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*behavior.UserActivitySummary), args.Error(1)
}

func (m *MockBehaviorStore) EventActivityByIP(ctx context.Context, eventID string, since time.Time) ([]behavior.EventIPActivity, error) {
	args := m.Called(ctx, eventID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]behavior.EventIPActivity), args.Error(1)
}

func (m *MockBehaviorStore) EventActivityByAgent(ctx context.Context, eventID string, since time.Time) ([]behavior.EventAgentActivity, error) {
	args := m.Called(ctx, eventID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]behavior.EventAgentActivity), args.Error(1)
}

type MockAssessmentStore struct {
	mock.Mock
}

func (m *MockAssessmentStore) Insert(ctx context.Context, assessment *risk.Assessment) error {
	args := m.Called(ctx, assessment)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishAssessment(assessment *risk.Assessment) {
	m.Called(assessment)
}

// quietIP keeps the IP activity check below its trigger.
func quietIP(bs *MockBehaviorStore) {
	bs.On("IPActivity", mock.Anything, mock.Anything, mock.Anything).
		Return(&behavior.IPActivity{IPAddress: "203.0.113.7", SessionCount: 2, UserCount: 1}, nil).Maybe()
}

// Tests

func TestService_AssessSession(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		sessionID     string
		userID        string
		setupMocks    func(*MockBehaviorStore, *MockAssessmentStore)
		expectedError bool
		validate      func(*testing.T, *risk.Assessment)
	}{
		{
			name:      "no recorded actions floors at allow",
			sessionID: "sess-empty",
			setupMocks: func(bs *MockBehaviorStore, as *MockAssessmentStore) {
				bs.On("SessionActions", mock.Anything, "sess-empty").Return([]behavior.Action{}, nil)
			},
			validate: func(t *testing.T, a *risk.Assessment) {
				assert.Equal(t, 0.0, a.TotalRiskScore)
				assert.Equal(t, risk.LevelLow, a.RiskLevel)
				assert.Equal(t, risk.ActionAllow, a.RecommendedAction)
				assert.NotNil(t, a.Indicators)
				assert.Empty(t, a.Indicators)
				assert.False(t, a.Degraded)
			},
		},
		{
			name:      "rapid fire plus superhuman speed lands high",
			sessionID: "sess-bot",
			setupMocks: func(bs *MockBehaviorStore, as *MockAssessmentStore) {
				bs.On("SessionActions", mock.Anything, "sess-bot").
					Return(actionsWithGaps(base, 1.9, 1.9, 0.1, 0.1, 0.1, 0.1), nil)
				quietIP(bs)
				as.On("Insert", mock.Anything, mock.Anything).Return(nil).Maybe()
			},
			validate: func(t *testing.T, a *risk.Assessment) {
				assert.Equal(t, 80.0, a.TotalRiskScore)
				assert.Equal(t, risk.LevelHigh, a.RiskLevel)
				assert.Equal(t, risk.ActionRequireVerification, a.RecommendedAction)
				require.Len(t, a.Indicators, 2)
				assert.Equal(t, risk.IndicatorRapidFireClicks, a.Indicators[0].Name)
				assert.Equal(t, risk.IndicatorSuperhumanSpeed, a.Indicators[1].Name)
				assert.Equal(t, "203.0.113.7", a.IPAddress)
				assert.True(t, a.Flagged())
			},
		},
		{
			name:      "single oversized grab scores low",
			sessionID: "sess-grab",
			setupMocks: func(bs *MockBehaviorStore, as *MockAssessmentStore) {
				bs.On("SessionActions", mock.Anything, "sess-grab").Return([]behavior.Action{{
					SessionID: "sess-grab",
					Type:      behavior.ActionTypeAddToCart,
					Timestamp: base,
					EventID:   "evt-1",
					Quantity:  11,
					IPAddress: "203.0.113.9",
				}}, nil)
				quietIP(bs)
				as.On("Insert", mock.Anything, mock.Anything).Return(nil).Maybe()
			},
			validate: func(t *testing.T, a *risk.Assessment) {
				assert.Equal(t, 47.0, a.TotalRiskScore)
				assert.Equal(t, risk.LevelLow, a.RiskLevel)
				assert.Equal(t, risk.ActionMonitor, a.RecommendedAction)
				assert.False(t, a.Flagged())
			},
		},
		{
			name:      "metronomic bot blocks immediately",
			sessionID: "sess-metronome",
			setupMocks: func(bs *MockBehaviorStore, as *MockAssessmentStore) {
				bs.On("SessionActions", mock.Anything, "sess-metronome").
					Return(actionsWithGaps(base, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1), nil)
				quietIP(bs)
				as.On("Insert", mock.Anything, mock.Anything).Return(nil).Maybe()
			},
			validate: func(t *testing.T, a *risk.Assessment) {
				// rapid 30 + superhuman 50 + consistent timing 35
				assert.Equal(t, 115.0, a.TotalRiskScore)
				assert.Equal(t, risk.LevelCritical, a.RiskLevel)
				assert.Equal(t, risk.ActionBlockImmediately, a.RecommendedAction)
			},
		},
		{
			name:      "history read failure degrades instead of erroring",
			sessionID: "sess-outage",
			setupMocks: func(bs *MockBehaviorStore, as *MockAssessmentStore) {
				bs.On("SessionActions", mock.Anything, "sess-outage").
					Return(nil, errors.NewUnavailableError("behavior", "connection refused"))
			},
			validate: func(t *testing.T, a *risk.Assessment) {
				assert.True(t, a.Degraded)
				assert.Equal(t, risk.LevelLow, a.RiskLevel)
				assert.Equal(t, risk.ActionMonitor, a.RecommendedAction)
				assert.Equal(t, 0.0, a.TotalRiskScore)
				assert.NotEmpty(t, a.DegradeReason)
			},
		},
		{
			name:      "ip lookup failure skips only that indicator",
			sessionID: "sess-partial",
			setupMocks: func(bs *MockBehaviorStore, as *MockAssessmentStore) {
				bs.On("SessionActions", mock.Anything, "sess-partial").
					Return(actionsWithGaps(base, 1.9, 1.9, 0.1, 0.1, 0.1, 0.1), nil)
				bs.On("IPActivity", mock.Anything, "203.0.113.7", mock.Anything).
					Return(nil, errors.NewUnavailableError("behavior", "timeout"))
				as.On("Insert", mock.Anything, mock.Anything).Return(nil).Maybe()
			},
			validate: func(t *testing.T, a *risk.Assessment) {
				assert.Equal(t, 80.0, a.TotalRiskScore)
				assert.Equal(t, risk.LevelHigh, a.RiskLevel)
				assert.False(t, a.Degraded)
				require.Len(t, a.Indicators, 2)
			},
		},
		{
			name:          "empty session id is rejected",
			sessionID:     "",
			setupMocks:    func(bs *MockBehaviorStore, as *MockAssessmentStore) {},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			behaviorStore := new(MockBehaviorStore)
			assessmentStore := new(MockAssessmentStore)
			tt.setupMocks(behaviorStore, assessmentStore)

			svc := NewService(behaviorStore, assessmentStore, nil, nil)
			assessment, err := svc.AssessSession(ctx, tt.sessionID, tt.userID)

			if tt.expectedError {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, assessment)
			assert.Equal(t, tt.sessionID, assessment.SessionID)
			assert.NotEqual(t, "", assessment.ID.String())
			tt.validate(t, assessment)
		})
	}
}

func TestService_AssessSession_PersistsOffThePath(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	behaviorStore := new(MockBehaviorStore)
	assessmentStore := new(MockAssessmentStore)

	behaviorStore.On("SessionActions", mock.Anything, "sess-1").
		Return(actionsWithGaps(base, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0), nil)
	quietIP(behaviorStore)

	persisted := make(chan *risk.Assessment, 1)
	assessmentStore.On("Insert", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			persisted <- args.Get(1).(*risk.Assessment)
		}).
		Return(nil)

	svc := NewService(behaviorStore, assessmentStore, nil, nil)
	assessment, err := svc.AssessSession(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)

	select {
	case stored := <-persisted:
		assert.Equal(t, assessment.ID, stored.ID)
		assert.Equal(t, assessment.TotalRiskScore, stored.TotalRiskScore)
	case <-time.After(2 * time.Second):
		t.Fatal("assessment was never persisted")
	}
}

func TestService_AssessSession_FloorSkipsPersistence(t *testing.T) {
	behaviorStore := new(MockBehaviorStore)
	assessmentStore := new(MockAssessmentStore)
	behaviorStore.On("SessionActions", mock.Anything, "sess-empty").Return([]behavior.Action{}, nil)

	svc := NewService(behaviorStore, assessmentStore, nil, nil)
	_, err := svc.AssessSession(context.Background(), "sess-empty", "")
	require.NoError(t, err)

	// Give a stray goroutine a moment to surface before asserting.
	time.Sleep(50 * time.Millisecond)
	assessmentStore.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestService_AssessSession_PublishesFlagged(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	behaviorStore := new(MockBehaviorStore)
	publisher := new(MockPublisher)

	behaviorStore.On("SessionActions", mock.Anything, "sess-bot").
		Return(actionsWithGaps(base, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1), nil)
	quietIP(behaviorStore)
	publisher.On("PublishAssessment", mock.Anything).Once()

	svc := NewService(behaviorStore, nil, nil, nil, WithPublisher(publisher))
	assessment, err := svc.AssessSession(context.Background(), "sess-bot", "")
	require.NoError(t, err)
	require.True(t, assessment.Flagged())
	publisher.AssertExpectations(t)
}

func TestService_AssessSession_QuietSessionNotPublished(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	behaviorStore := new(MockBehaviorStore)
	publisher := new(MockPublisher)

	behaviorStore.On("SessionActions", mock.Anything, "sess-calm").
		Return(actionsWithGaps(base, 30, 45, 60), nil)
	quietIP(behaviorStore)

	svc := NewService(behaviorStore, nil, nil, nil, WithPublisher(publisher))
	assessment, err := svc.AssessSession(context.Background(), "sess-calm", "")
	require.NoError(t, err)
	assert.False(t, assessment.Flagged())
	publisher.AssertNotCalled(t, "PublishAssessment", mock.Anything)
}

func TestService_AssessSession_Deterministic(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	behaviorStore := new(MockBehaviorStore)

	history := actionsWithGaps(base, 1.9, 1.9, 0.1, 0.1, 0.1, 0.1)
	behaviorStore.On("SessionActions", mock.Anything, "sess-1").Return(history, nil)
	quietIP(behaviorStore)

	svc := NewService(behaviorStore, nil, nil, nil)
	first, err := svc.AssessSession(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)
	second, err := svc.AssessSession(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, first.TotalRiskScore, second.TotalRiskScore)
	assert.Equal(t, first.RiskLevel, second.RiskLevel)
	assert.Equal(t, first.Indicators, second.Indicators)
}

func TestService_DetectScalpingNetworks(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		eventID       string
		window        time.Duration
		setupMocks    func(*MockBehaviorStore)
		expectedError bool
		validate      func(*testing.T, *risk.ScalpingReport)
	}{
		{
			name:    "clean event reports low with no networks",
			eventID: "evt-1",
			setupMocks: func(bs *MockBehaviorStore) {
				bs.On("EventActivityByIP", mock.Anything, "evt-1", mock.Anything).
					Return([]behavior.EventIPActivity{}, nil)
				bs.On("EventActivityByAgent", mock.Anything, "evt-1", mock.Anything).
					Return([]behavior.EventAgentActivity{}, nil)
			},
			validate: func(t *testing.T, r *risk.ScalpingReport) {
				assert.Equal(t, risk.LevelLow, r.RiskLevel)
				assert.Equal(t, 0, r.TotalNetworks)
				assert.NotNil(t, r.Networks)
				assert.Empty(t, r.Networks)
				assert.Equal(t, 0.0, r.MaxNetworkRisk)
				assert.False(t, r.Degraded)
			},
		},
		{
			name:    "shared ip just over the limits",
			eventID: "evt-1",
			setupMocks: func(bs *MockBehaviorStore) {
				bs.On("EventActivityByIP", mock.Anything, "evt-1", mock.Anything).
					Return([]behavior.EventIPActivity{{
						IPAddress:     "198.51.100.4",
						UniqueUsers:   4,
						TotalQuantity: 25,
						UserAgents:    []string{"bot/1.0"},
					}}, nil)
				bs.On("EventActivityByAgent", mock.Anything, "evt-1", mock.Anything).
					Return([]behavior.EventAgentActivity{}, nil)
			},
			validate: func(t *testing.T, r *risk.ScalpingReport) {
				require.Len(t, r.Networks, 1)
				n := r.Networks[0]
				assert.Equal(t, risk.NetworkTypeIPBased, n.Type)
				assert.Equal(t, "198.51.100.4", n.Identifier)
				assert.Equal(t, 10.0, n.RiskScore) // 4*25/10
				assert.Equal(t, 4, n.Evidence["unique_users"])
				assert.Equal(t, 25, n.Evidence["total_quantity"])
				assert.Equal(t, risk.LevelLow, r.RiskLevel)
				assert.Equal(t, 10.0, r.MaxNetworkRisk)
			},
		},
		{
			name:    "three users never forms a network",
			eventID: "evt-1",
			setupMocks: func(bs *MockBehaviorStore) {
				bs.On("EventActivityByIP", mock.Anything, "evt-1", mock.Anything).
					Return([]behavior.EventIPActivity{{
						IPAddress:     "198.51.100.4",
						UniqueUsers:   3,
						TotalQuantity: 500,
					}}, nil)
				bs.On("EventActivityByAgent", mock.Anything, "evt-1", mock.Anything).
					Return([]behavior.EventAgentActivity{}, nil)
			},
			validate: func(t *testing.T, r *risk.ScalpingReport) {
				assert.Empty(t, r.Networks)
				assert.Equal(t, risk.LevelLow, r.RiskLevel)
			},
		},
		{
			name:    "distributed agent network goes critical",
			eventID: "evt-hot",
			setupMocks: func(bs *MockBehaviorStore) {
				bs.On("EventActivityByIP", mock.Anything, "evt-hot", mock.Anything).
					Return([]behavior.EventIPActivity{}, nil)
				bs.On("EventActivityByAgent", mock.Anything, "evt-hot", mock.Anything).
					Return([]behavior.EventAgentActivity{{
						UserAgent:      "Mozilla/5.0 (headless)",
						UniqueIPs:      10,
						TotalPurchases: 40,
					}}, nil)
			},
			validate: func(t *testing.T, r *risk.ScalpingReport) {
				require.Len(t, r.Networks, 1)
				n := r.Networks[0]
				assert.Equal(t, risk.NetworkTypeUserAgentBased, n.Type)
				assert.Equal(t, 80.0, n.RiskScore) // 10*40/5
				assert.Equal(t, risk.LevelCritical, r.RiskLevel)
			},
		},
		{
			name:    "network scores cap at one hundred",
			eventID: "evt-hot",
			setupMocks: func(bs *MockBehaviorStore) {
				bs.On("EventActivityByIP", mock.Anything, "evt-hot", mock.Anything).
					Return([]behavior.EventIPActivity{{
						IPAddress:     "198.51.100.4",
						UniqueUsers:   40,
						TotalQuantity: 400,
					}}, nil)
				bs.On("EventActivityByAgent", mock.Anything, "evt-hot", mock.Anything).
					Return([]behavior.EventAgentActivity{}, nil)
			},
			validate: func(t *testing.T, r *risk.ScalpingReport) {
				require.Len(t, r.Networks, 1)
				assert.Equal(t, 100.0, r.Networks[0].RiskScore)
				assert.Equal(t, 100.0, r.MaxNetworkRisk)
			},
		},
		{
			name:    "store failure degrades the report",
			eventID: "evt-1",
			setupMocks: func(bs *MockBehaviorStore) {
				bs.On("EventActivityByIP", mock.Anything, "evt-1", mock.Anything).
					Return(nil, errors.NewUnavailableError("behavior", "connection refused"))
			},
			validate: func(t *testing.T, r *risk.ScalpingReport) {
				assert.True(t, r.Degraded)
				assert.Equal(t, risk.LevelUnknown, r.RiskLevel)
				assert.Empty(t, r.Networks)
			},
		},
		{
			name:          "empty event id is rejected",
			eventID:       "",
			setupMocks:    func(bs *MockBehaviorStore) {},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			risk.SetClock(&risk.MockClock{CurrentTime: now})
			defer risk.ResetClock()

			behaviorStore := new(MockBehaviorStore)
			tt.setupMocks(behaviorStore)

			svc := NewService(behaviorStore, nil, nil, nil)
			report, err := svc.DetectScalpingNetworks(ctx, tt.eventID, tt.window)

			if tt.expectedError {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, report)
			assert.Equal(t, tt.eventID, report.EventID)
			tt.validate(t, report)
		})
	}
}

func TestService_DetectScalpingNetworks_DefaultWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	risk.SetClock(&risk.MockClock{CurrentTime: now})
	defer risk.ResetClock()

	behaviorStore := new(MockBehaviorStore)
	wantSince := now.Add(-time.Hour)
	behaviorStore.On("EventActivityByIP", mock.Anything, "evt-1", wantSince).
		Return([]behavior.EventIPActivity{}, nil)
	behaviorStore.On("EventActivityByAgent", mock.Anything, "evt-1", wantSince).
		Return([]behavior.EventAgentActivity{}, nil)

	svc := NewService(behaviorStore, nil, nil, nil)
	_, err := svc.DetectScalpingNetworks(context.Background(), "evt-1", 0)
	require.NoError(t, err)
	behaviorStore.AssertExpectations(t)
}
