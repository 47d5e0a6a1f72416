package fraud

// Plausibility bounds for a single reading, in kWh
const (
	MinReading           = 100.0
	MaxReading           = 100_000.0
	ExtremeReadingCutoff = 1_000_000.0
)

// Range flags
const (
	FlagNegativeReading = "NEGATIVE_READING"
	FlagBelowMinimum    = "BELOW_MINIMUM"
	FlagAboveMaximum    = "ABOVE_MAXIMUM"
	FlagZeroReading     = "ZERO_READING"
	FlagExtremelyHigh   = "EXTREMELY_HIGH"
)

// CheckRange tests a reading against absolute plausibility bounds.
//
// Matching rules assign the score rather than add to it, so the last matching
// rule decides the score while every matching rule contributes its flag.
// Thresholds downstream were tuned against this, keep it.
func CheckRange(reading float64) CheckResult {
	result := newCheckResult()

	switch {
	case reading < 0:
		result.set(FlagNegativeReading, 0.5)
	case reading < MinReading:
		result.set(FlagBelowMinimum, 0.3)
	case reading > MaxReading:
		result.set(FlagAboveMaximum, 0.4)
	}

	if reading == 0 {
		result.set(FlagZeroReading, 0.4)
	}
	if reading > ExtremeReadingCutoff {
		result.set(FlagExtremelyHigh, 0.5)
	}

	return result
}
