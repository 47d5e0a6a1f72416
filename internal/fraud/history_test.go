package fraud_test

import (
	"testing"

	"github.com/septivank/meter-verification-engine/internal/fraud"
	"github.com/stretchr/testify/assert"
)

func TestAnalyze_EmptyHistory(t *testing.T) {
	analyzer := fraud.NewHistoryAnalyzer(0)

	result := analyzer.Analyze(1200, nil)

	assert.Zero(t, result.Score)
	assert.Empty(t, result.Flags)
}

func TestAnalyze_Decrease(t *testing.T) {
	analyzer := fraud.NewHistoryAnalyzer(0)

	result := analyzer.Analyze(940, []float64{1000})
	assert.Equal(t, 0.4, result.Score)
	assert.Equal(t, []string{fraud.FlagReadingDecreased}, result.Flags)
	assert.Equal(t, -60.0, result.Details["delta"])

	result = analyzer.Analyze(980, []float64{1000})
	assert.Equal(t, 0.2, result.Score)
	assert.Equal(t, []string{fraud.FlagSlightDecrease}, result.Flags)
}

func TestAnalyze_AbnormalIncrease(t *testing.T) {
	analyzer := fraud.NewHistoryAnalyzer(0)

	tests := []struct {
		name    string
		history []float64
		reading float64
		score   float64
	}{
		// deltas 100,100,100: no spread
		{"zero stddev", []float64{1000, 1100, 1200, 1300}, 1600, 0.2},
		// deltas 100,120,80: mean 100, stddev 20
		{"z above 3", []float64{1000, 1100, 1220, 1300}, 1520, 0.3},
		// deltas 50,150,100: mean 100, stddev 50
		{"z above 2", []float64{1000, 1050, 1200, 1300}, 1520, 0.2},
		// deltas 10,190,100: mean 100, stddev 90
		{"z below 2", []float64{1000, 1010, 1200, 1300}, 1510, 0.1},
		{"single delta", []float64{1000, 1100}, 1400, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := analyzer.Analyze(tt.reading, tt.history)
			assert.Equal(t, tt.score, result.Score)
			assert.Equal(t, []string{fraud.FlagAbnormalIncrease}, result.Flags)
		})
	}
}

func TestAnalyze_LowIncrease(t *testing.T) {
	analyzer := fraud.NewHistoryAnalyzer(0)

	result := analyzer.Analyze(1210, []float64{1000, 1100, 1200})

	assert.Equal(t, 0.15, result.Score)
	assert.Equal(t, []string{fraud.FlagAbnormallyLow}, result.Flags)
}

func TestAnalyze_NormalIncrease(t *testing.T) {
	analyzer := fraud.NewHistoryAnalyzer(0)

	result := analyzer.Analyze(1290, []float64{1000, 1100, 1200})

	assert.Zero(t, result.Score)
	assert.Empty(t, result.Flags)
}

func TestAnalyze_ExcessiveConsumption(t *testing.T) {
	analyzer := fraud.NewHistoryAnalyzer(0)

	result := analyzer.Analyze(5100, []float64{1000})
	assert.Equal(t, 0.25, result.Score)
	assert.Equal(t, []string{fraud.FlagExcessiveConsumption}, result.Flags)

	// a higher statistical score survives the excessive-consumption floor
	result = analyzer.Analyze(6000, []float64{1000, 1100, 1220, 1300})
	assert.Equal(t, 0.3, result.Score)
	assert.Equal(t, []string{fraud.FlagAbnormalIncrease, fraud.FlagExcessiveConsumption}, result.Flags)
}

func TestAnalyze_CustomCeiling(t *testing.T) {
	analyzer := fraud.NewHistoryAnalyzer(100)

	result := analyzer.Analyze(1250, []float64{1000})

	assert.Equal(t, []string{fraud.FlagExcessiveConsumption}, result.Flags)
}
