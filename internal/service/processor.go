package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-verification-engine/internal/logging"
	"github.com/septivank/meter-verification-engine/internal/mq"
	"github.com/septivank/meter-verification-engine/internal/validator"
	"go.uber.org/zap"
)

// VerificationMessage is the incoming verification request from RabbitMQ.
// Image is base64 in JSON.
type VerificationMessage struct {
	RequestID        string                     `json:"request_id"`
	MeterID          string                     `json:"meter_id"`
	OwnerID          string                     `json:"owner_id"`
	Image            []byte                     `json:"image"`
	ImageName        string                     `json:"image_name"`
	ContentType      string                     `json:"content_type,omitempty"`
	ClientReading    *float64                   `json:"client_reading,omitempty"`
	ClientConfidence *float64                   `json:"client_confidence,omitempty"`
	CapturedAt       string                     `json:"captured_at,omitempty"`
	Metadata         *validator.CaptureMetadata `json:"metadata,omitempty"`
}

// Verifier runs one verification
type Verifier interface {
	Verify(ctx context.Context, req Request) Outcome
}

// EventPublisher publishes settled verifications
type EventPublisher interface {
	PublishVerificationEvent(ctx context.Context, event mq.VerificationEvent, routingKey string) error
}

// RoutingKeys names where settled verifications are published
type RoutingKeys struct {
	Completed string
	Rejected  string
}

// ProcessorService turns queue messages into pipeline runs and result events
type ProcessorService struct {
	verifier  Verifier
	publisher EventPublisher
	keys      RoutingKeys
	logger    *zap.Logger
	clock     func() time.Time
}

// NewProcessorService creates a new processor service
func NewProcessorService(verifier Verifier, publisher EventPublisher, keys RoutingKeys, logger *zap.Logger) *ProcessorService {
	return &ProcessorService{
		verifier:  verifier,
		publisher: publisher,
		keys:      keys,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// ProcessMessage processes one verification request. Client errors are settled with a
// rejection event; only malformed messages and fatal failures are returned for dead-lettering.
func (s *ProcessorService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg VerificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if msg.RequestID == "" {
		msg.RequestID = uuid.NewString()
	}

	reqLogger := logging.WithRequestID(s.logger, msg.RequestID)
	reqLogger.Info("processing verification request",
		zap.String("meter_id", msg.MeterID),
		zap.Int("image_size", len(msg.Image)),
		zap.Bool("client_reading", msg.ClientReading != nil),
	)

	meterID, meterErr := uuid.Parse(msg.MeterID)
	ownerID, ownerErr := uuid.Parse(msg.OwnerID)
	if meterErr != nil || ownerErr != nil {
		reqLogger.Info("rejecting request with malformed identifiers")
		s.publish(ctx, reqLogger, s.rejectedEvent(msg, clientError(StageValidatingOwnership, ErrMeterNotFound)), s.keys.Rejected)
		return nil
	}

	outcome := s.verifier.Verify(ctx, Request{
		RequestID:        msg.RequestID,
		MeterID:          meterID,
		OwnerID:          ownerID,
		Image:            msg.Image,
		ImageName:        msg.ImageName,
		ClientReading:    msg.ClientReading,
		ClientConfidence: msg.ClientConfidence,
		Metadata:         captureMetadata(msg),
	})

	switch outcome.Kind {
	case OutcomeSuccess, OutcomeDegraded:
		s.publish(ctx, reqLogger, s.completedEvent(msg, outcome), s.keys.Completed)
		return nil
	case OutcomeClientError:
		s.publish(ctx, reqLogger, s.rejectedEvent(msg, outcome), s.keys.Rejected)
		return nil
	default:
		s.publish(ctx, reqLogger, s.rejectedEvent(msg, outcome), s.keys.Rejected)
		return fmt.Errorf("verification failed at %s: %w", outcome.Stage, outcome.Err)
	}
}

// publish logs but does not fail the message, the verification is already settled
func (s *ProcessorService) publish(ctx context.Context, logger *zap.Logger, event mq.VerificationEvent, routingKey string) {
	if err := s.publisher.PublishVerificationEvent(ctx, event, routingKey); err != nil {
		logger.Error("failed to publish verification event",
			zap.Error(err),
			zap.String("routing_key", routingKey),
			zap.String("outcome", event.Outcome),
		)
	}
}

func (s *ProcessorService) completedEvent(msg VerificationMessage, outcome Outcome) mq.VerificationEvent {
	record := outcome.Record
	event := mq.VerificationEvent{
		RequestID:         msg.RequestID,
		VerificationID:    record.ID.String(),
		MeterID:           record.MeterID.String(),
		OwnerID:           record.OwnerID.String(),
		Outcome:           string(outcome.Kind),
		Status:            record.Status,
		Reading:           &record.Reading,
		Consumption:       record.Consumption,
		FraudScore:        &record.FraudScore,
		FraudFlags:        record.FraudFlags,
		Recommendation:    record.Recommendation,
		OCREngine:         record.OCREngine,
		ImageRef:          record.ImageRef,
		ConsensusTopic:    record.ConsensusTopic,
		ConsensusStream:   record.ConsensusStream,
		ConsensusSequence: record.ConsensusSequence,
		OccurredAt:        record.CreatedAt,
	}
	for _, d := range outcome.Degradations {
		event.Degraded = append(event.Degraded, string(d.Stage))
	}
	return event
}

func (s *ProcessorService) rejectedEvent(msg VerificationMessage, outcome Outcome) mq.VerificationEvent {
	return mq.VerificationEvent{
		RequestID:  msg.RequestID,
		MeterID:    msg.MeterID,
		OwnerID:    msg.OwnerID,
		Outcome:    string(outcome.Kind),
		Reason:     outcome.Reason(),
		OccurredAt: s.clock(),
	}
}

// captureMetadata builds capture metadata from the upload itself. Device and GPS
// fields are only present when an upstream caller supplied them.
func captureMetadata(msg VerificationMessage) *validator.CaptureMetadata {
	meta := validator.CaptureMetadata{}
	if msg.Metadata != nil {
		meta = *msg.Metadata
	}
	if meta.Timestamp == "" {
		meta.Timestamp = msg.CapturedAt
	}
	if meta.FileName == "" {
		meta.FileName = msg.ImageName
	}
	if meta.FileSize == 0 {
		meta.FileSize = int64(len(msg.Image))
	}
	if meta.ContentType == "" {
		meta.ContentType = msg.ContentType
	}
	return &meta
}
