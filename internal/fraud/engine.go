package fraud

import (
	"math"
	"time"

	"github.com/septivank/meter-verification-engine/internal/validator"
)

// Recommendation is the engine's advice on what to do with a reading
type Recommendation string

const (
	RecommendProceed Recommendation = "PROCEED"
	RecommendReview  Recommendation = "REVIEW"
	RecommendBlock   Recommendation = "BLOCK"
)

// Check names used in Assessment.Checks
const (
	CheckNameRange        = "range"
	CheckNameHistorical   = "historical"
	CheckNameMetadata     = "metadata"
	CheckNameManipulation = "manipulation"
)

// FlagMissingMetadata marks a submission without any capture metadata
const FlagMissingMetadata = "MISSING_METADATA"

const (
	weightRange        = 0.30
	weightHistorical   = 0.25
	weightMetadata     = 0.15
	weightManipulation = 0.30

	missingMetadataScore = 0.3

	blockThreshold  = 0.70
	reviewThreshold = 0.40
)

// Input is everything the engine scores. Now pins the metadata age checks.
type Input struct {
	Reading  float64
	History  []float64
	Metadata *validator.CaptureMetadata
	Image    []byte
	Now      time.Time
}

// Assessment is the immutable result of scoring one reading
type Assessment struct {
	Score          float64                `json:"score"`
	Flags          []string               `json:"flags"`
	Recommendation Recommendation         `json:"recommendation"`
	Checks         map[string]CheckResult `json:"checks,omitempty"`
}

// Options configures the engine
type Options struct {
	Enabled            bool
	TypicalConsumption float64
	MaxImageAge        time.Duration
	MaxImagePixels     int
}

// Engine combines the range, history, metadata and image checks into one bounded score.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	enabled  bool
	history  *HistoryAnalyzer
	metadata *validator.Validator
	ela      *ELADetector
}

// NewEngine creates a scoring engine
func NewEngine(opts Options) *Engine {
	return &Engine{
		enabled:  opts.Enabled,
		history:  NewHistoryAnalyzer(opts.TypicalConsumption),
		metadata: validator.NewValidator(opts.MaxImageAge),
		ela:      NewELADetector(opts.MaxImagePixels),
	}
}

// Enabled reports whether scoring is switched on
func (e *Engine) Enabled() bool {
	return e.enabled
}

// Score assesses one reading
func (e *Engine) Score(in Input) Assessment {
	if !e.enabled {
		return Assessment{Score: 0, Flags: []string{}, Recommendation: RecommendProceed}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rangeResult := CheckRange(in.Reading)
	historyResult := e.history.Analyze(in.Reading, in.History)

	var metadataResult CheckResult
	if in.Metadata != nil {
		v := e.metadata.ValidateCapture(*in.Metadata, now)
		metadataResult = CheckResult{Score: v.Score, Flags: v.Flags}
	} else {
		metadataResult = CheckResult{Score: missingMetadataScore, Flags: []string{FlagMissingMetadata}}
	}

	manipulationResult := newCheckResult()
	if len(in.Image) > 0 {
		manipulationResult = e.ela.Analyze(in.Image)
	}

	total := rangeResult.Score*weightRange +
		historyResult.Score*weightHistorical +
		metadataResult.Score*weightMetadata +
		manipulationResult.Score*weightManipulation
	score := roundScore(total)

	return Assessment{
		Score:          score,
		Flags:          mergeFlags(rangeResult.Flags, historyResult.Flags, metadataResult.Flags, manipulationResult.Flags),
		Recommendation: Recommend(score),
		Checks: map[string]CheckResult{
			CheckNameRange:        rangeResult,
			CheckNameHistorical:   historyResult,
			CheckNameMetadata:     metadataResult,
			CheckNameManipulation: manipulationResult,
		},
	}
}

// roundScore caps at 1 and rounds to cents, ties away from zero
func roundScore(total float64) float64 {
	return math.Round(math.Min(total, 1.0)*100) / 100
}

// Recommend maps a fraud score to a recommendation
func Recommend(score float64) Recommendation {
	switch {
	case score >= blockThreshold:
		return RecommendBlock
	case score >= reviewThreshold:
		return RecommendReview
	default:
		return RecommendProceed
	}
}

// HasFlag reports whether the assessment carries flag
func (a Assessment) HasFlag(flag string) bool {
	for _, f := range a.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

func mergeFlags(groups ...[]string) []string {
	seen := make(map[string]struct{})
	merged := []string{}
	for _, group := range groups {
		for _, flag := range group {
			if _, ok := seen[flag]; ok {
				continue
			}
			seen[flag] = struct{}{}
			merged = append(merged, flag)
		}
	}
	return merged
}
