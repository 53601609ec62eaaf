package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingWriter struct {
	mutex    sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (writer *recordingWriter) WriteMessages(_ context.Context, messages ...kafka.Message) error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	if writer.err != nil {
		return writer.err
	}
	writer.messages = append(writer.messages, messages...)
	return nil
}

func (writer *recordingWriter) Close() error {
	writer.closed = true
	return nil
}

type scriptedReader struct {
	messages  []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (reader *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(reader.messages) == 0 {
		reader.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	message := reader.messages[0]
	reader.messages = reader.messages[1:]
	return message, nil
}

func (reader *scriptedReader) CommitMessages(_ context.Context, messages ...kafka.Message) error {
	reader.committed = append(reader.committed, messages...)
	return nil
}

func (reader *scriptedReader) Close() error {
	return nil
}

type recordingReconciler struct {
	creators []string
	err      error
}

func (reconciler *recordingReconciler) Reconcile(_ context.Context, creatorID ledger.UserID) (ledger.EarningsAccount, error) {
	reconciler.creators = append(reconciler.creators, creatorID.String())
	if reconciler.err != nil {
		return ledger.EarningsAccount{}, reconciler.err
	}
	return ledger.EarningsAccount{CreatorID: creatorID, TotalEarnings: 46500, AvailableBalance: 46500}, nil
}

func eventMessage(t *testing.T, offset int64, event ledger.Event) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Key: []byte(event.CreatorID), Value: payload}
}

func TestPublisherWritesKeyedJSON(t *testing.T) {
	writer := &recordingWriter{}
	publisher, err := NewPublisher(writer, "ledger-events", nil)
	require.NoError(t, err)

	event := ledger.Event{Type: ledger.EventPurchaseCreated, CreatorID: "K1", ContentID: "C1", BuyerID: "U1", AmountCents: 50000, CreatorEarningsCents: 46500, OccurredUnixUTC: 1_700_000_000}
	require.NoError(t, publisher.Publish(context.Background(), event))

	require.Len(t, writer.messages, 1)
	assert.Equal(t, "K1", string(writer.messages[0].Key))
	var decoded ledger.Event
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, event, decoded)

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestPublisherWrapsWriteFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	boom := errors.New("leader not available")
	publisher, err := NewPublisher(&recordingWriter{err: boom}, "ledger-events", zap.New(core))
	require.NoError(t, err)

	err = publisher.Publish(context.Background(), ledger.Event{Type: ledger.EventReconcileRequested, CreatorID: "K1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, logs.FilterMessage("publish event failed").Len())
}

func TestConstructorsRejectMissingDependencies(t *testing.T) {
	_, err := NewPublisher(nil, "topic", nil)
	assert.ErrorIs(t, err, ErrNilWriter)
	_, err = NewReconcileConsumer(nil, &recordingReconciler{}, nil)
	assert.ErrorIs(t, err, ErrNilReader)
	_, err = NewReconcileConsumer(&scriptedReader{}, nil, nil)
	assert.ErrorIs(t, err, ErrNilReconciler)
	_, err = NewKafkaWriter(nil, "topic")
	assert.ErrorIs(t, err, ErrMissingBroker)
	_, err = NewKafkaWriter([]string{"localhost:9092"}, " ")
	assert.ErrorIs(t, err, ErrMissingTopic)
	_, err = NewKafkaReader([]string{"localhost:9092"}, "", "group")
	assert.ErrorIs(t, err, ErrMissingTopic)
}

func TestHandleMessageReconcilesRelevantEvents(t *testing.T) {
	testCases := []struct {
		name        string
		event       ledger.Event
		wantCreator []string
	}{
		{name: "reconcile requested", event: ledger.Event{Type: ledger.EventReconcileRequested, CreatorID: "K1"}, wantCreator: []string{"K1"}},
		{name: "purchase created", event: ledger.Event{Type: ledger.EventPurchaseCreated, CreatorID: "K2"}, wantCreator: []string{"K2"}},
		{name: "reconciled is ignored", event: ledger.Event{Type: ledger.EventEarningsReconciled, CreatorID: "K3"}, wantCreator: nil},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			reconciler := &recordingReconciler{}
			consumer, err := NewReconcileConsumer(&scriptedReader{}, reconciler, nil)
			require.NoError(t, err)
			require.NoError(t, consumer.HandleMessage(context.Background(), eventMessage(t, 1, testCase.event)))
			assert.Equal(t, testCase.wantCreator, reconciler.creators)
		})
	}
}

func TestHandleMessageRejectsUndecodablePayloads(t *testing.T) {
	consumer, err := NewReconcileConsumer(&scriptedReader{}, &recordingReconciler{}, nil)
	require.NoError(t, err)

	err = consumer.HandleMessage(context.Background(), kafka.Message{Value: []byte("{")})
	assert.ErrorIs(t, err, ErrUndecodableEvent)

	err = consumer.HandleMessage(context.Background(), eventMessage(t, 2, ledger.Event{Type: ledger.EventReconcileRequested, CreatorID: " "}))
	assert.ErrorIs(t, err, ErrUndecodableEvent)
	assert.ErrorIs(t, err, ledger.ErrInvalidCreatorID)
}

func TestRunCommitsHandledAndSkipsPoisonMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &scriptedReader{cancel: cancel}
	reader.messages = []kafka.Message{
		eventMessage(t, 1, ledger.Event{Type: ledger.EventReconcileRequested, CreatorID: "K1"}),
		{Offset: 2, Value: []byte("not json")},
		eventMessage(t, 3, ledger.Event{Type: ledger.EventPurchaseCreated, CreatorID: "K2"}),
	}
	reconciler := &recordingReconciler{}
	consumer, err := NewReconcileConsumer(reader, reconciler, nil)
	require.NoError(t, err)

	require.NoError(t, consumer.Run(ctx))
	assert.Equal(t, []string{"K1", "K2"}, reconciler.creators)
	require.Len(t, reader.committed, 3)
	assert.Equal(t, int64(3), reader.committed[2].Offset)
}

func TestRunStopsOnReconcileFailureWithoutCommitting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &scriptedReader{cancel: cancel}
	reader.messages = []kafka.Message{eventMessage(t, 7, ledger.Event{Type: ledger.EventReconcileRequested, CreatorID: "K1"})}
	boom := errors.New("database unavailable")
	consumer, err := NewReconcileConsumer(reader, &recordingReconciler{err: boom}, nil)
	require.NoError(t, err)

	err = consumer.Run(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, reader.committed)
}
