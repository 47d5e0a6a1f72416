package service

import (
	"errors"

	"github.com/septivank/meter-verification-engine/internal/db"
	"github.com/septivank/meter-verification-engine/internal/fraud"
)

// Stage is a step of the verification pipeline
type Stage string

const (
	StageValidatingOwnership Stage = "validating_ownership"
	StageSelectingOCR        Stage = "selecting_ocr"
	StageLoadingHistory      Stage = "loading_history"
	StageScoring             Stage = "scoring"
	StageClassifying         Stage = "classifying"
	StageStoringImage        Stage = "storing_image"
	StageLoggingConsensus    Stage = "logging_consensus"
	StagePersisting          Stage = "persisting"
	StageDone                Stage = "done"
)

// OutcomeKind separates client-visible failures from tolerated degradation
type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeDegraded    OutcomeKind = "degraded"
	OutcomeClientError OutcomeKind = "client_error"
	OutcomeFatal       OutcomeKind = "fatal"
)

// Client errors carry their reason to the caller
var (
	ErrMeterNotFound     = errors.New("meter not found or not owned by caller")
	ErrEmptyImage        = errors.New("image payload is empty")
	ErrOCRFailed         = errors.New("reading could not be extracted from image")
	ErrConcurrentReading = errors.New("another reading for this meter was verified at the same time, resubmit")
)

// Fatal errors are generic on purpose; causes are only logged
var (
	ErrVerificationFailed = errors.New("verification failed")
	ErrPersistenceFailed  = errors.New("verification could not be saved")
)

// Degradation records a best-effort step that fell back instead of failing
type Degradation struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// Outcome is the typed result of one verification run
type Outcome struct {
	Kind         OutcomeKind
	Stage        Stage
	Record       *db.VerificationRecord
	Assessment   *fraud.Assessment
	Degradations []Degradation
	Err          error
}

// Succeeded reports whether a record was persisted
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeDegraded
}

// Reason is the caller-facing failure message
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func clientError(stage Stage, err error) Outcome {
	return Outcome{Kind: OutcomeClientError, Stage: stage, Err: err}
}

func fatalError(stage Stage, err error) Outcome {
	return Outcome{Kind: OutcomeFatal, Stage: stage, Err: err}
}
