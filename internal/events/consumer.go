package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	defaultMinBytes = 1
	defaultMaxBytes = 10e6
)

// MessageReader is the subset of kafka.Reader used by the consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, messages ...kafka.Message) error
	Close() error
}

// Reconciler recomputes one creator's earnings account.
type Reconciler interface {
	Reconcile(ctx context.Context, creatorID ledger.UserID) (ledger.EarningsAccount, error)
}

// ReconcileConsumer reconciles creators named by reconcile requests and new purchases.
type ReconcileConsumer struct {
	reader     MessageReader
	reconciler Reconciler
	logger     *zap.Logger
}

// NewKafkaReader builds a consumer-group reader for topic.
func NewKafkaReader(brokers []string, topic string, groupID string) (*kafka.Reader, error) {
	if len(brokers) == 0 {
		return nil, ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeConfig, ErrMissingBroker)
	}
	if topic == "" {
		return nil, ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeConfig, ErrMissingTopic)
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: defaultMinBytes,
		MaxBytes: defaultMaxBytes,
	}), nil
}

func NewReconcileConsumer(reader MessageReader, reconciler Reconciler, logger *zap.Logger) (*ReconcileConsumer, error) {
	if reader == nil {
		return nil, ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeConfig, ErrNilReader)
	}
	if reconciler == nil {
		return nil, ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeConfig, ErrNilReconciler)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileConsumer{reader: reader, reconciler: reconciler, logger: logger}, nil
}

// Run consumes until ctx is cancelled. A message is committed once handled. Undecodable messages
// are committed and skipped; a failed reconcile stops the consumer with the message uncommitted
// so it is redelivered after restart.
func (consumer *ReconcileConsumer) Run(ctx context.Context) error {
	for {
		message, err := consumer.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			consumer.logger.Error("fetch message failed", zap.Error(err))
			return err
		}
		if err := consumer.HandleMessage(ctx, message); err != nil {
			consumer.logger.Warn("reconcile message failed",
				zap.Int64("offset", message.Offset),
				zap.String("key", string(message.Key)),
				zap.Error(err),
			)
			if !errors.Is(err, ErrUndecodableEvent) {
				return err
			}
		}
		if err := consumer.reader.CommitMessages(ctx, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// ErrUndecodableEvent marks messages that can never be handled.
var ErrUndecodableEvent = errors.New("events: undecodable event")

// HandleMessage decodes one message and reconciles the creator it names. Event types that do
// not affect earnings are ignored.
func (consumer *ReconcileConsumer) HandleMessage(ctx context.Context, message kafka.Message) error {
	var event ledger.Event
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeDecode, errors.Join(ErrUndecodableEvent, err))
	}
	switch event.Type {
	case ledger.EventReconcileRequested, ledger.EventPurchaseCreated:
	default:
		return nil
	}
	creatorID, err := ledger.NewCreatorID(event.CreatorID)
	if err != nil {
		return ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeDecode, errors.Join(ErrUndecodableEvent, err))
	}
	account, err := consumer.reconciler.Reconcile(ctx, creatorID)
	if err != nil {
		return ledger.WrapError(errorOperation, errorSubjectKafka, errorCodeReconcile, err)
	}
	consumer.logger.Info("creator reconciled",
		zap.String("event_type", string(event.Type)),
		zap.String("creator_id", creatorID.String()),
		zap.Int64("total_earnings_cents", account.TotalEarnings.Int64()),
		zap.Int64("available_balance_cents", account.AvailableBalance.Int64()),
	)
	return nil
}

// Close closes the reader.
func (consumer *ReconcileConsumer) Close() error {
	return consumer.reader.Close()
}
