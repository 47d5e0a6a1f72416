package fraud_test

import (
	"testing"

	"github.com/septivank/meter-verification-engine/internal/fraud"
	"github.com/stretchr/testify/assert"
)

func TestCheckRange(t *testing.T) {
	tests := []struct {
		name    string
		reading float64
		score   float64
		flags   []string
	}{
		{"negative", -5, 0.5, []string{fraud.FlagNegativeReading}},
		{"zero keeps last assignment", 0, 0.4, []string{fraud.FlagBelowMinimum, fraud.FlagZeroReading}},
		{"below minimum", 50, 0.3, []string{fraud.FlagBelowMinimum}},
		{"plausible", 4500, 0, []string{}},
		{"lower bound inclusive", fraud.MinReading, 0, []string{}},
		{"upper bound inclusive", fraud.MaxReading, 0, []string{}},
		{"above maximum", 150000, 0.4, []string{fraud.FlagAboveMaximum}},
		{"extremely high", 2_000_000, 0.5, []string{fraud.FlagAboveMaximum, fraud.FlagExtremelyHigh}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := fraud.CheckRange(tt.reading)
			assert.Equal(t, tt.score, result.Score)
			assert.Equal(t, tt.flags, result.Flags)
		})
	}
}
