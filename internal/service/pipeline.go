package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-verification-engine/internal/consensus"
	"github.com/septivank/meter-verification-engine/internal/db"
	"github.com/septivank/meter-verification-engine/internal/fraud"
	"github.com/septivank/meter-verification-engine/internal/lock"
	"github.com/septivank/meter-verification-engine/internal/logging"
	"github.com/septivank/meter-verification-engine/internal/metrics"
	"github.com/septivank/meter-verification-engine/internal/ocr"
	"github.com/septivank/meter-verification-engine/internal/repository"
	"github.com/septivank/meter-verification-engine/internal/storage"
	"github.com/septivank/meter-verification-engine/internal/validator"
	"go.uber.org/zap"
)

const consensusMessageType = "meter_reading_verification"

// OwnershipStore resolves meters owned by a caller
type OwnershipStore interface {
	MeterForOwner(ctx context.Context, meterID, ownerID uuid.UUID) (*db.Meter, error)
}

// HistoryStore reads prior accepted readings of a meter
type HistoryStore interface {
	MostRecentReading(ctx context.Context, meterID, ownerID uuid.UUID) (*float64, error)
	RecentReadings(ctx context.Context, meterID, ownerID uuid.UUID, limit int) ([]float64, error)
}

// RecordStore persists verification records
type RecordStore interface {
	SaveVerification(ctx context.Context, record *db.VerificationRecord, expectedSeq int64) error
}

// ReadingSelector picks the reading to verify
type ReadingSelector interface {
	Select(ctx context.Context, image []byte, clientReading, clientConfidence *float64) (ocr.Selection, error)
}

// Scorer produces a fraud assessment
type Scorer interface {
	Score(in fraud.Input) fraud.Assessment
}

// MeterLocker serializes verifications per meter
type MeterLocker interface {
	Acquire(ctx context.Context, meterID string) (func(context.Context) error, error)
}

// Request is one verification attempt
type Request struct {
	RequestID        string
	MeterID          uuid.UUID
	OwnerID          uuid.UUID
	Image            []byte
	ImageName        string
	ClientReading    *float64
	ClientConfidence *float64
	Metadata         *validator.CaptureMetadata
}

// PipelineOptions tunes the pipeline
type PipelineOptions struct {
	HistoryLimit     int
	StorageTimeout   time.Duration
	ConsensusTimeout time.Duration
}

// PipelineDeps are the collaborators the pipeline sequences
type PipelineDeps struct {
	Meters    OwnershipStore
	History   HistoryStore
	Records   RecordStore
	Selector  ReadingSelector
	Scorer    Scorer
	Uploader  storage.Uploader
	Consensus consensus.Submitter
	Topics    consensus.TopicResolver
	Locker    MeterLocker
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Clock     func() time.Time
	Options   PipelineOptions
}

// Pipeline runs ownership, OCR, scoring, storage, consensus logging and persistence for one reading
type Pipeline struct {
	meters    OwnershipStore
	history   HistoryStore
	records   RecordStore
	selector  ReadingSelector
	scorer    Scorer
	uploader  storage.Uploader
	consensus consensus.Submitter
	topics    consensus.TopicResolver
	locker    MeterLocker
	metrics   *metrics.Metrics
	logger    *zap.Logger
	clock     func() time.Time
	opts      PipelineOptions
}

// NewPipeline creates a new verification pipeline
func NewPipeline(deps PipelineDeps) *Pipeline {
	opts := deps.Options
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 15 * time.Second
	}
	if opts.ConsensusTimeout <= 0 {
		opts.ConsensusTimeout = 10 * time.Second
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		meters:    deps.Meters,
		history:   deps.History,
		records:   deps.Records,
		selector:  deps.Selector,
		scorer:    deps.Scorer,
		uploader:  deps.Uploader,
		consensus: deps.Consensus,
		topics:    deps.Topics,
		locker:    deps.Locker,
		metrics:   deps.Metrics,
		logger:    logger,
		clock:     clock,
		opts:      opts,
	}
}

// run carries the state of one verification through the stages
type run struct {
	req          Request
	logger       *zap.Logger
	meter        *db.Meter
	selection    ocr.Selection
	previous     *float64
	history      []float64
	assessment   fraud.Assessment
	status       Status
	upload       storage.Upload
	topic        *string
	stream       *string
	sequence     *int64
	degradations []Degradation
}

func (r *run) degrade(stage Stage, reason string) {
	r.degradations = append(r.degradations, Degradation{Stage: stage, Reason: reason})
}

// Verify runs the pipeline. Only ownership, OCR and persistence failures end it early;
// storage and consensus logging fall back and the request still succeeds.
func (p *Pipeline) Verify(ctx context.Context, req Request) Outcome {
	r := &run{
		req: req,
		logger: logging.WithMeter(
			logging.WithRequestID(p.logger, req.RequestID),
			req.MeterID.String(), req.OwnerID.String(),
		),
	}

	outcome := p.verify(ctx, r)
	p.recordOutcome(outcome)
	return outcome
}

func (p *Pipeline) verify(ctx context.Context, r *run) Outcome {
	meter, err := p.meters.MeterForOwner(ctx, r.req.MeterID, r.req.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		r.logger.Info("meter ownership check failed")
		return clientError(StageValidatingOwnership, ErrMeterNotFound)
	}
	if err != nil {
		r.logger.Error("failed to load meter", zap.Error(err))
		return fatalError(StageValidatingOwnership, ErrVerificationFailed)
	}
	r.meter = meter

	release, err := p.acquireLock(ctx, r)
	if err != nil {
		return clientError(StageValidatingOwnership, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("failed to release meter lock", zap.Error(err))
		}
	}()

	selection, err := p.selector.Select(ctx, r.req.Image, r.req.ClientReading, r.req.ClientConfidence)
	if err != nil {
		r.logger.Info("reading selection failed", zap.Error(err))
		if errors.Is(err, ocr.ErrEmptyImage) {
			return clientError(StageSelectingOCR, ErrEmptyImage)
		}
		return clientError(StageSelectingOCR, ErrOCRFailed)
	}
	r.selection = selection
	p.metrics.RecordOCRSource(selection.Engine)

	p.loadHistory(ctx, r)

	r.assessment = p.scorer.Score(fraud.Input{
		Reading:  selection.Reading,
		History:  r.history,
		Metadata: r.req.Metadata,
		Image:    r.req.Image,
		Now:      p.clock(),
	})
	if r.assessment.HasFlag(fraud.FlagELAAnalysisFailed) {
		r.degrade(StageScoring, "image analysis failed, manipulation check skipped")
	}
	p.metrics.ObserveFraudScore(r.assessment.Score)

	r.status = ClassifyStatus(r.assessment.Score, selection.Confidence)

	record := p.newRecord(r)

	p.storeImage(ctx, r)
	record.ImageRef = r.upload.RemoteRef
	if r.upload.GatewayURL != "" {
		record.ImageURL = &r.upload.GatewayURL
	}

	p.logConsensus(ctx, r, record)
	record.ConsensusTopic = r.topic
	record.ConsensusStream = r.stream
	record.ConsensusSequence = r.sequence

	if err := p.records.SaveVerification(ctx, record, r.meter.ReadingSeq); err != nil {
		if errors.Is(err, repository.ErrStaleReadingSequence) {
			r.logger.Info("meter history changed during verification", zap.Error(err))
			return clientError(StagePersisting, ErrConcurrentReading)
		}
		r.logger.Error("failed to persist verification", zap.Error(err))
		return fatalError(StagePersisting, ErrPersistenceFailed)
	}

	kind := OutcomeSuccess
	if len(r.degradations) > 0 {
		kind = OutcomeDegraded
	}

	r.logger.Info("reading verified",
		zap.String("verification_id", record.ID.String()),
		zap.String("status", record.Status),
		zap.Float64("fraud_score", record.FraudScore),
		zap.Strings("flags", record.FraudFlags),
		zap.String("ocr_engine", record.OCREngine),
		zap.Bool("image_stored", !storage.IsPlaceholder(record.ImageRef)),
		zap.Int("degradations", len(r.degradations)),
	)

	assessment := r.assessment
	return Outcome{
		Kind:         kind,
		Stage:        StageDone,
		Record:       record,
		Assessment:   &assessment,
		Degradations: r.degradations,
	}
}

func (p *Pipeline) acquireLock(ctx context.Context, r *run) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if p.locker == nil {
		return noop, nil
	}

	release, err := p.locker.Acquire(ctx, r.meter.ID.String())
	if errors.Is(err, lock.ErrLocked) {
		r.logger.Info("meter is locked by another verification")
		return nil, ErrConcurrentReading
	}
	if err != nil {
		// the sequence check at persistence still guards the history read
		r.logger.Warn("meter lock unavailable, continuing without it", zap.Error(err))
		r.degrade(StageValidatingOwnership, "meter lock unavailable")
		return noop, nil
	}
	return release, nil
}

func (p *Pipeline) loadHistory(ctx context.Context, r *run) {
	previous, err := p.history.MostRecentReading(ctx, r.req.MeterID, r.req.OwnerID)
	if err != nil {
		r.logger.Warn("failed to get previous reading", zap.Error(err))
		r.degrade(StageLoadingHistory, "previous reading unavailable")
		return
	}

	history, err := p.history.RecentReadings(ctx, r.req.MeterID, r.req.OwnerID, p.opts.HistoryLimit)
	if err != nil {
		r.logger.Warn("failed to get reading history for scoring", zap.Error(err))
		r.degrade(StageLoadingHistory, "reading history unavailable")
		history = nil
	}

	r.previous = previous
	r.history = history
}

func (p *Pipeline) newRecord(r *run) *db.VerificationRecord {
	record := &db.VerificationRecord{
		ID:              uuid.New(),
		MeterID:         r.req.MeterID,
		OwnerID:         r.req.OwnerID,
		Reading:         r.selection.Reading,
		PreviousReading: r.previous,
		OCREngine:       r.selection.Engine,
		Confidence:      r.selection.Confidence,
		FraudScore:      r.assessment.Score,
		FraudFlags:      r.assessment.Flags,
		Recommendation:  string(r.assessment.Recommendation),
		Status:          string(r.status),
		CreatedAt:       p.clock(),
	}

	// consumption only exists when there is a previous reading
	if r.previous != nil {
		consumption := r.selection.Reading - *r.previous
		record.Consumption = &consumption
	}

	if checks, err := json.Marshal(r.assessment.Checks); err == nil {
		record.FraudChecks = checks
	}

	return record
}

func (p *Pipeline) storeImage(ctx context.Context, r *run) {
	if p.uploader == nil {
		r.upload = storage.Placeholder()
		r.degrade(StageStoringImage, "image storage not configured")
		return
	}

	uploadCtx, cancel := context.WithTimeout(ctx, p.opts.StorageTimeout)
	defer cancel()

	upload, err := p.uploader.UploadImage(uploadCtx, r.req.Image, storage.ObjectName(r.req.MeterID.String(), r.req.ImageName))
	if err != nil {
		r.upload = storage.Placeholder()
		r.logger.Warn("image upload failed, using placeholder reference",
			zap.Error(err),
			zap.String("placeholder", r.upload.RemoteRef),
		)
		r.degrade(StageStoringImage, "image upload failed")
		return
	}
	r.upload = upload
}

type consensusMessage struct {
	Type           string    `json:"type"`
	VerificationID string    `json:"verification_id"`
	MeterID        string    `json:"meter_id"`
	Reading        float64   `json:"reading"`
	Consumption    *float64  `json:"consumption,omitempty"`
	FraudScore     float64   `json:"fraud_score"`
	Status         string    `json:"status"`
	ImageRef       string    `json:"image_ref"`
	Timestamp      time.Time `json:"timestamp"`
}

func (p *Pipeline) logConsensus(ctx context.Context, r *run, record *db.VerificationRecord) {
	if p.consensus == nil || p.topics == nil {
		r.degrade(StageLoggingConsensus, "consensus log not configured")
		return
	}

	topic, ok := p.topics.TopicForRegion(r.meter.RegionCode)
	if !ok || consensus.IsPlaceholderTopic(topic) {
		r.logger.Warn("no consensus topic for region, skipping log entry",
			zap.String("region", r.meter.RegionCode),
			zap.String("topic", topic),
		)
		r.degrade(StageLoggingConsensus, "consensus topic unresolved")
		return
	}

	message, err := json.Marshal(consensusMessage{
		Type:           consensusMessageType,
		VerificationID: record.ID.String(),
		MeterID:        record.MeterID.String(),
		Reading:        record.Reading,
		Consumption:    record.Consumption,
		FraudScore:     record.FraudScore,
		Status:         record.Status,
		ImageRef:       r.upload.RemoteRef,
		Timestamp:      record.CreatedAt,
	})
	if err != nil {
		r.degrade(StageLoggingConsensus, fmt.Sprintf("consensus message encoding failed: %v", err))
		return
	}

	submitCtx, cancel := context.WithTimeout(ctx, p.opts.ConsensusTimeout)
	defer cancel()

	receipt, err := p.consensus.SubmitMessage(submitCtx, topic, message)
	if err != nil {
		r.logger.Warn("consensus log submission failed, omitting log entry",
			zap.Error(err),
			zap.String("topic", topic),
		)
		r.degrade(StageLoggingConsensus, "consensus log submission failed")
		return
	}

	r.topic = &topic
	r.stream = &receipt.StreamID
	r.sequence = &receipt.SequenceNumber
}

func (p *Pipeline) recordOutcome(outcome Outcome) {
	status := ""
	if outcome.Record != nil {
		status = outcome.Record.Status
	}
	p.metrics.RecordOutcome(string(outcome.Kind), status)
	for _, d := range outcome.Degradations {
		p.metrics.RecordDegradation(string(d.Stage))
	}
}
