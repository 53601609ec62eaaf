// Package events carries ledger events over Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	errorOperation     = "events"
	errorSubjectKafka  = "kafka"
	errorCodeEncode    = "encode"
	errorCodeWrite     = "write"
	errorCodeDecode    = "decode"
	errorCodeConfig    = "config"
	errorCodeReconcile = "reconcile"
)

var (
	ErrNilWriter     = errors.New("events: nil writer")
	ErrNilReader     = errors.New("events: nil reader")
	ErrNilReconciler = errors.New("events: nil reconciler")
	ErrMissingTopic  = errors.New("events: missing topic")
	ErrMissingBroker = errors.New("events: missing broker")
)

// MessageWriter is the subset of kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
	Close() error
}

// Publisher implements ledger.EventPublisher on Kafka. Messages are keyed by creator so that
// events for one creator stay ordered within a partition.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaWriter builds a synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeConfig, ErrMissingBroker)
	}
	if strings.TrimSpace(topic) == "" {
		return nil, ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeConfig, ErrMissingTopic)
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, nil
}

// NewPublisher wraps writer; topic is used for logging only since the writer carries it.
func NewPublisher(writer MessageWriter, topic string, logger *zap.Logger) (*Publisher, error) {
	if writer == nil {
		return nil, ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeConfig, ErrNilWriter)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: writer, topic: topic, logger: logger}, nil
}

func (publisher *Publisher) Publish(ctx context.Context, event ledger.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeEncode, err)
	}
	message := kafka.Message{
		Key:   []byte(event.CreatorID),
		Value: payload,
	}
	if err := publisher.writer.WriteMessages(ctx, message); err != nil {
		publisher.logger.Error("publish event failed",
			zap.String("topic", publisher.topic),
			zap.String("event_type", string(event.Type)),
			zap.String("creator_id", event.CreatorID),
			zap.Error(err),
		)
		return ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeWrite, err)
	}
	publisher.logger.Debug("event published",
		zap.String("topic", publisher.topic),
		zap.String("event_type", string(event.Type)),
		zap.String("creator_id", event.CreatorID),
	)
	return nil
}

// Close flushes and closes the writer.
func (publisher *Publisher) Close() error {
	return publisher.writer.Close()
}
