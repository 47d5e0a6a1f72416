package consensus

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/septivank/meter-verification-engine/internal/mq"
	"go.uber.org/zap"
)

// AMQPLog appends messages to a durable topic exchange in publisher-confirm mode.
// The broker's delivery tag is used as the message sequence number. Tags count per
// channel: they restart at 1 on a new channel and repeat across workers, so a log
// position is only unique together with the channel's stream id.
type AMQPLog struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
	streamID string
	logger   *zap.Logger
}

// NewAMQPLog creates a consensus log on its own confirm-mode channel
func NewAMQPLog(conn *mq.Connection, exchange string, logger *zap.Logger) (*AMQPLog, error) {
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

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &AMQPLog{
		channel:  ch,
		exchange: exchange,
		streamID: uuid.NewString(),
		logger:   logger,
	}, nil
}

// SubmitMessage publishes message under topicID and waits for the broker to confirm it
func (l *AMQPLog) SubmitMessage(ctx context.Context, topicID string, message []byte) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	messageID := PositionID(l.streamID, l.channel.GetNextPublishSeqNo())

	confirmation, err := l.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		l.exchange,
		topicID,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    messageID,
			AppId:        l.streamID,
			Body:         message,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to submit consensus message: %w", err)
	}
	if confirmation == nil {
		return Receipt{}, fmt.Errorf("consensus channel is not in confirm mode")
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed waiting for consensus confirmation: %w", err)
	}
	if !acked {
		return Receipt{}, fmt.Errorf("consensus message %d was rejected by broker", confirmation.DeliveryTag)
	}

	l.logger.Debug("consensus message confirmed",
		zap.String("topic_id", topicID),
		zap.String("stream_id", l.streamID),
		zap.Uint64("sequence", confirmation.DeliveryTag),
	)

	return Receipt{
		TopicID:        topicID,
		StreamID:       l.streamID,
		SequenceNumber: int64(confirmation.DeliveryTag),
	}, nil
}

// Close closes the log channel
func (l *AMQPLog) Close() error {
	if l.channel != nil {
		return l.channel.Close()
	}
	return nil
}

// PositionID identifies one log entry across channels and workers
func PositionID(streamID string, sequence uint64) string {
	return fmt.Sprintf("%s:%d", streamID, sequence)
}
