package fraud

import (
	"math"
)

// Historical consistency flags
const (
	FlagReadingDecreased     = "READING_DECREASED"
	FlagSlightDecrease       = "SLIGHT_DECREASE"
	FlagAbnormalIncrease     = "ABNORMAL_INCREASE"
	FlagAbnormallyLow        = "ABNORMALLY_LOW"
	FlagExcessiveConsumption = "EXCESSIVE_CONSUMPTION"
)

const (
	// DefaultTypicalConsumption is the ceiling of a normal billing period, in kWh
	DefaultTypicalConsumption = 2000.0

	decreaseTolerance = 50.0
)

// HistoryAnalyzer compares a reading against the meter's own reading history
type HistoryAnalyzer struct {
	typicalConsumption float64
}

// NewHistoryAnalyzer creates an analyzer; a non-positive ceiling falls back to DefaultTypicalConsumption
func NewHistoryAnalyzer(typicalConsumption float64) *HistoryAnalyzer {
	if typicalConsumption <= 0 {
		typicalConsumption = DefaultTypicalConsumption
	}
	return &HistoryAnalyzer{typicalConsumption: typicalConsumption}
}

// Analyze scores reading against history, which is ordered oldest to newest
func (a *HistoryAnalyzer) Analyze(reading float64, history []float64) CheckResult {
	result := newCheckResult()
	if len(history) == 0 {
		return result
	}

	delta := reading - history[len(history)-1]
	result.detail("delta", delta)

	switch {
	case delta < -decreaseTolerance:
		result.set(FlagReadingDecreased, 0.4)
	case delta < 0:
		result.set(FlagSlightDecrease, 0.2)
	}

	if len(history) >= 2 {
		deltas := positiveDeltas(history)
		if len(deltas) > 0 {
			mean, stddev := meanStdDev(deltas)
			result.detail("mean_delta", mean)
			result.detail("stddev_delta", stddev)

			switch {
			case delta > 2*mean:
				result.set(FlagAbnormalIncrease, increaseScore(delta, mean, stddev))
			case delta > 0 && delta < 0.3*mean:
				result.set(FlagAbnormallyLow, 0.15)
			}
		}
	}

	if delta > 2*a.typicalConsumption {
		result.raise(FlagExcessiveConsumption, 0.25)
	}

	return result
}

func increaseScore(delta, mean, stddev float64) float64 {
	if stddev == 0 {
		return 0.2
	}
	z := (delta - mean) / stddev
	switch {
	case z > 3:
		return 0.3
	case z > 2:
		return 0.2
	default:
		return 0.1
	}
}

func positiveDeltas(history []float64) []float64 {
	deltas := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		if d := history[i] - history[i-1]; d > 0 {
			deltas = append(deltas, d)
		}
	}
	return deltas
}

// meanStdDev returns the mean and the sample standard deviation; a single value has zero spread
func meanStdDev(values []float64) (float64, float64) {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	if len(values) < 2 {
		return mean, 0
	}

	sq := 0.0
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}
