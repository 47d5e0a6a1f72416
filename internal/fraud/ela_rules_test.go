package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// gridDiff lays out one value per cell of an 8x8 image, same value on every channel
func gridDiff(cell func(i int) float64) []float64 {
	diff := make([]float64, 0, elaGridSize*elaGridSize*3)
	for i := 0; i < elaGridSize*elaGridSize; i++ {
		v := cell(i)
		diff = append(diff, v, v, v)
	}
	return diff
}

func constant(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

func firstCells(n int, high, low float64) func(int) float64 {
	return func(i int) float64 {
		if i < n {
			return high
		}
		return low
	}
}

func TestScoreErrorLevels(t *testing.T) {
	tests := []struct {
		name       string
		cell       func(int) float64
		score      float64
		flags      []string
		suspicious float64
	}{
		{"clean", constant(0), 0, []string{}, 0},
		{"low uniform error", constant(10), 0, []string{}, 0},
		{"uniform floor", constant(25.5), 0.25, []string{FlagUniformManipulation}, 0},
		{"ramp above uniform floor", constant(51), 0.3 + (0.05/0.15)*0.2, []string{FlagPossibleManipulation, FlagUniformManipulation}, 0},
		{"ramp capped", constant(102), 0.5, []string{FlagPossibleManipulation, FlagUniformManipulation}, 0},
		{
			name: "possible without uniformity",
			cell: func(i int) float64 {
				if i%2 == 0 {
					return 40
				}
				return 60
			},
			score: 0.3614,
			flags: []string{FlagPossibleManipulation},
		},
		{"localized above cell share", firstCells(7, 100, 0), 0.2, []string{FlagLocalizedManipulation}, 7},
		{"localized at cell share", firstCells(6, 100, 0), 0, []string{}, 6},
		{"possible and localized", firstCells(7, 255, 30), 0.3855, []string{FlagPossibleManipulation, FlagLocalizedManipulation}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scoreErrorLevels(gridDiff(tt.cell), elaGridSize, elaGridSize)

			assert.InDelta(t, tt.score, result.Score, 1e-4)
			assert.Equal(t, tt.flags, result.Flags)
			assert.Equal(t, tt.suspicious, result.Details["suspicious_cells"])
		})
	}
}

func TestScoreErrorLevels_Details(t *testing.T) {
	result := scoreErrorLevels(gridDiff(constant(51)), elaGridSize, elaGridSize)

	assert.InDelta(t, 0.2, result.Details["ela_score"], 1e-9)
	assert.Zero(t, result.Details["diff_stddev"])
}
