package fraud

import "math"

// CheckResult is the output of a single fraud check
type CheckResult struct {
	Score   float64            `json:"score"`
	Flags   []string           `json:"flags"`
	Details map[string]float64 `json:"details,omitempty"`
}

func newCheckResult() CheckResult {
	return CheckResult{Flags: []string{}}
}

// set flags and overwrites the score
func (r *CheckResult) set(flag string, score float64) {
	r.Flags = append(r.Flags, flag)
	r.Score = score
}

// raise flags and keeps the larger of the two scores
func (r *CheckResult) raise(flag string, floor float64) {
	r.Flags = append(r.Flags, flag)
	r.Score = math.Max(r.Score, floor)
}

func (r *CheckResult) detail(key string, value float64) {
	if r.Details == nil {
		r.Details = make(map[string]float64)
	}
	r.Details[key] = value
}
