package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher handles verification event publishing to RabbitMQ
type Publisher struct {
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// VerificationEvent is published once a verification request is settled
type VerificationEvent struct {
	RequestID         string    `json:"request_id"`
	VerificationID    string    `json:"verification_id,omitempty"`
	MeterID           string    `json:"meter_id"`
	OwnerID           string    `json:"owner_id"`
	Outcome           string    `json:"outcome"`
	Status            string    `json:"status,omitempty"`
	Reading           *float64  `json:"reading,omitempty"`
	Consumption       *float64  `json:"consumption,omitempty"`
	FraudScore        *float64  `json:"fraud_score,omitempty"`
	FraudFlags        []string  `json:"fraud_flags,omitempty"`
	Recommendation    string    `json:"recommendation,omitempty"`
	OCREngine         string    `json:"ocr_engine,omitempty"`
	ImageRef          string    `json:"image_ref,omitempty"`
	ConsensusTopic    *string   `json:"consensus_topic,omitempty"`
	ConsensusStream   *string   `json:"consensus_stream,omitempty"`
	ConsensusSequence *int64    `json:"consensus_sequence,omitempty"`
	Degraded          []string  `json:"degraded,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// PublishVerificationEvent publishes a settled verification
func (p *Publisher) PublishVerificationEvent(ctx context.Context, event VerificationEvent, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: event.RequestID,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published verification event",
		zap.String("routing_key", routingKey),
		zap.String("request_id", event.RequestID),
		zap.String("outcome", event.Outcome),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
