package ledger

import (
	"context"

	"github.com/google/uuid"
)

// OperationLogger records domain-level events emitted by ledger operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a ledger operation and its outcome.
type OperationLog struct {
	Operation     string
	ContentID     ContentID
	BuyerID       UserID
	CreatorID     UserID
	TransactionID TransactionID
	SessionID     SessionID
	WithdrawalID  WithdrawalID
	Amount        AmountCents
	Status        string
	ErrorKind     ErrorKind
	Error         error
}

// Option configures a ledger component.
type Option func(*dependencies)

type dependencies struct {
	logger    OperationLogger
	cache     PurchaseCache
	publisher EventPublisher
	newID     func() string
	fees      *FeeCalculator
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) Option {
	return func(deps *dependencies) {
		deps.logger = logger
	}
}

// WithPurchaseCache wires the positive purchase cache consulted before the store.
func WithPurchaseCache(cache PurchaseCache) Option {
	return func(deps *dependencies) {
		deps.cache = cache
	}
}

// WithEventPublisher wires the publisher of purchase and reconciliation events.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(deps *dependencies) {
		deps.publisher = publisher
	}
}

// WithFeeCalculator sets the deployment-wide platform fee used by the processor. Requests never
// carry their own fee.
func WithFeeCalculator(calculator FeeCalculator) Option {
	return func(deps *dependencies) {
		deps.fees = &calculator
	}
}

// WithIDGenerator overrides the generator of transaction, session, and withdrawal ids.
func WithIDGenerator(generator func() string) Option {
	return func(deps *dependencies) {
		deps.newID = generator
	}
}

func newDependencies(options []Option) dependencies {
	deps := dependencies{cache: NoopPurchaseCache{}, newID: uuid.NewString}
	for _, option := range options {
		if option != nil {
			option(&deps)
		}
	}
	if deps.cache == nil {
		deps.cache = NoopPurchaseCache{}
	}
	if deps.newID == nil {
		deps.newID = uuid.NewString
	}
	return deps
}

func (deps dependencies) logOperation(ctx context.Context, entry OperationLog) {
	if deps.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	if entry.ErrorKind == ErrorKindNone && entry.Error != nil {
		entry.ErrorKind = ClassifyError(entry.Error)
	}
	deps.logger.LogOperation(ctx, entry)
}

func (deps dependencies) publish(ctx context.Context, event Event) error {
	if deps.publisher == nil {
		return nil
	}
	return deps.publisher.Publish(ctx, event)
}
