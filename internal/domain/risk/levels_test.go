package risk_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
)

func TestLevelForScore(t *testing.T) {
	thresholds := risk.DefaultThresholds()

	tests := []struct {
		name  string
		score float64
		want  risk.Level
	}{
		{name: "zero score is low", score: 0, want: risk.LevelLow},
		{name: "just under medium stays low", score: 49.99, want: risk.LevelLow},
		{name: "exactly medium threshold is medium", score: 50.0, want: risk.LevelMedium},
		{name: "between medium and high", score: 74.99, want: risk.LevelMedium},
		{name: "exactly high threshold is high", score: 75.0, want: risk.LevelHigh},
		{name: "eighty is high not critical", score: 80.0, want: risk.LevelHigh},
		{name: "exactly critical threshold is critical", score: 90.0, want: risk.LevelCritical},
		{name: "unbounded above", score: 512.5, want: risk.LevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, risk.LevelForScore(tt.score, thresholds))
		})
	}
}

func TestActionForLevel(t *testing.T) {
	tests := []struct {
		name  string
		level risk.Level
		want  risk.RecommendedAction
	}{
		{name: "critical blocks", level: risk.LevelCritical, want: risk.ActionBlockImmediately},
		{name: "high requires verification", level: risk.LevelHigh, want: risk.ActionRequireVerification},
		{name: "medium adds friction", level: risk.LevelMedium, want: risk.ActionAddFriction},
		{name: "low monitors", level: risk.LevelLow, want: risk.ActionMonitor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, risk.ActionForLevel(tt.level))
		})
	}
}

func TestLevelForNetworkRisk_StrictBounds(t *testing.T) {
	thresholds := risk.DefaultScalpingThresholds()

	tests := []struct {
		name string
		max  float64
		want risk.Level
	}{
		{name: "zero is low", max: 0, want: risk.LevelLow},
		{name: "exactly 25 stays low", max: 25.0, want: risk.LevelLow},
		{name: "just over 25 is medium", max: 25.01, want: risk.LevelMedium},
		{name: "exactly 50 stays medium", max: 50.0, want: risk.LevelMedium},
		{name: "exactly 75 stays high", max: 75.0, want: risk.LevelHigh},
		{name: "over 75 is critical", max: 75.5, want: risk.LevelCritical},
		{name: "cap value is critical", max: 100.0, want: risk.LevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, risk.LevelForNetworkRisk(tt.max, thresholds))
		})
	}
}

func TestLevel_JSON(t *testing.T) {
	data, err := json.Marshal(risk.LevelCritical)
	require.NoError(t, err)
	assert.Equal(t, `"CRITICAL"`, string(data))

	var level risk.Level
	require.NoError(t, json.Unmarshal([]byte(`"MEDIUM"`), &level))
	assert.Equal(t, risk.LevelMedium, level)

	require.NoError(t, json.Unmarshal([]byte(`"bogus"`), &level))
	assert.Equal(t, risk.LevelUnknown, level)
}

func TestRecommendedAction_JSON(t *testing.T) {
	data, err := json.Marshal(risk.ActionBlockImmediately)
	require.NoError(t, err)
	assert.Equal(t, `"BLOCK_IMMEDIATELY"`, string(data))

	var action risk.RecommendedAction
	require.NoError(t, json.Unmarshal([]byte(`"ALLOW"`), &action))
	assert.Equal(t, risk.ActionAllow, action)
}
