package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

const maxInsertAttempts = 2

// OutcomeStatus is the result class of a purchase.
type OutcomeStatus string

const (
	OutcomeCreated          OutcomeStatus = "created"
	OutcomeAlreadyPurchased OutcomeStatus = "already_purchased"
	OutcomeFailed           OutcomeStatus = "failed"
	OutcomeRedirectPending  OutcomeStatus = "redirect_pending"
)

// PurchaseOutcome reports what a purchase did. TransactionID is set only for created outcomes.
// LedgerPending marks a created purchase whose earnings increment failed and awaits reconciliation.
type PurchaseOutcome struct {
	Status          OutcomeStatus
	TransactionID   TransactionID
	PlatformFee     AmountCents
	CreatorEarnings AmountCents
	ErrorKind       ErrorKind
	LedgerPending   bool
}

// Processor turns purchase requests into durable, idempotent transactions.
type Processor struct {
	store    Store
	earnings *EarningsLedger
	fees     FeeCalculator
	nowFn    func() int64
	flights  *inflight
	deps     dependencies
}

// NewProcessor wires a Processor. Fees use the platform constant unless WithFeeCalculator
// configures another deployment-wide percentage.
func NewProcessor(store Store, earnings *EarningsLedger, now func() int64, options ...Option) (*Processor, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if earnings == nil {
		return nil, fmt.Errorf("%w: earnings ledger dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	deps := newDependencies(options)
	fees := DefaultFeeCalculator()
	if deps.fees != nil {
		fees = *deps.fees
	}
	return &Processor{
		store:    store,
		earnings: earnings,
		fees:     fees,
		nowFn:    now,
		flights:  &inflight{},
		deps:     deps,
	}, nil
}

// Purchase records a purchase of request.ContentID by request.BuyerID.
// The returned error is non-nil exactly when the outcome status is failed.
func (processor *Processor) Purchase(ctx context.Context, request PurchaseRequest) (PurchaseOutcome, error) {
	ctx, span := startSpan(ctx, "ledger.Purchase",
		attribute.String("content_id", request.ContentID.String()),
		attribute.String("buyer_id", request.BuyerID.String()),
		attribute.String("creator_id", request.CreatorID.String()),
		attribute.Int64("amount_cents", request.Amount.Int64()),
	)
	outcome, err := processor.purchase(ctx, request)
	span.SetAttributes(attribute.String("outcome", string(outcome.Status)))
	endSpan(span, err)

	entry := OperationLog{
		Operation:     operationPurchase,
		ContentID:     request.ContentID,
		BuyerID:       request.BuyerID,
		CreatorID:     request.CreatorID,
		TransactionID: outcome.TransactionID,
		Amount:        request.Amount,
		ErrorKind:     outcome.ErrorKind,
		Error:         err,
	}
	if outcome.Status == OutcomeAlreadyPurchased {
		entry.Status = operationStatusAlreadyPurchased
	}
	processor.deps.logOperation(ctx, entry)
	return outcome, err
}

// HasPurchased reports whether the buyer holds an active purchase of the content.
func (processor *Processor) HasPurchased(ctx context.Context, contentID ContentID, buyerID UserID) (bool, error) {
	if contentID.IsZero() {
		return false, fmt.Errorf("%w: empty value", ErrInvalidContentID)
	}
	if buyerID.IsZero() {
		return false, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	key := NewPurchaseKey(contentID, buyerID)
	if processor.cachedPurchase(ctx, key) {
		return true, nil
	}
	_, found, err := processor.store.FindActivePurchase(ctx, contentID, buyerID)
	if err != nil {
		processor.deps.logOperation(ctx, OperationLog{Operation: operationHasPurchased, ContentID: contentID, BuyerID: buyerID, Error: err})
		return false, err
	}
	if found {
		processor.markCached(ctx, key)
	}
	return found, nil
}

func (processor *Processor) purchase(ctx context.Context, request PurchaseRequest) (PurchaseOutcome, error) {
	if request.PaymentMethod == "" {
		request.PaymentMethod = PaymentMethodInternal
	}
	if err := request.Validate(); err != nil {
		return failedOutcome(err), err
	}
	key := request.PurchaseKey()
	if processor.cachedPurchase(ctx, key) {
		return PurchaseOutcome{Status: OutcomeAlreadyPurchased}, nil
	}
	outcome, leader, err := processor.flights.do(ctx, key, func(ctx context.Context) (PurchaseOutcome, error) {
		return processor.settle(ctx, request)
	})
	if err != nil {
		if outcome.Status == "" {
			outcome = failedOutcome(err)
		}
		return outcome, err
	}
	if !leader && outcome.Status == OutcomeCreated {
		return PurchaseOutcome{Status: OutcomeAlreadyPurchased}, nil
	}
	return outcome, nil
}

func (processor *Processor) settle(ctx context.Context, request PurchaseRequest) (PurchaseOutcome, error) {
	key := request.PurchaseKey()
	_, found, err := processor.store.FindActivePurchase(ctx, request.ContentID, request.BuyerID)
	if err != nil {
		wrapped := WrapError("processor", "transaction", "lookup_failed", err)
		return failedOutcome(wrapped), wrapped
	}
	if found {
		processor.markCached(ctx, key)
		return PurchaseOutcome{Status: OutcomeAlreadyPurchased}, nil
	}

	split, err := processor.fees.Split(request.Amount)
	if err != nil {
		return failedOutcome(err), err
	}
	transactionID, err := NewTransactionID(processor.deps.newID())
	if err != nil {
		return failedOutcome(err), err
	}
	transaction := Transaction{
		TransactionID:        transactionID,
		ContentID:            request.ContentID,
		BuyerID:              request.BuyerID,
		CreatorID:            request.CreatorID,
		Amount:               request.Amount,
		PlatformFee:          split.PlatformFee,
		CreatorEarnings:      split.CreatorEarnings,
		PaymentMethod:        request.PaymentMethod,
		Status:               TransactionStatusCompleted,
		GatewayTransactionID: request.GatewayTransactionID,
		CreatedUnixUTC:       processor.nowFn(),
	}
	outcome, err := processor.insert(ctx, transaction)
	if err != nil {
		return outcome, err
	}
	if outcome.Status != OutcomeCreated {
		processor.markCached(ctx, key)
		return outcome, nil
	}

	if applyErr := processor.earnings.Apply(ctx, transaction.CreatorID, transaction.CreatorEarnings); applyErr != nil {
		outcome.LedgerPending = true
		processor.reportLedgerFailure(ctx, transaction, applyErr)
	}
	processor.markCached(ctx, key)
	if publishErr := processor.deps.publish(ctx, Event{
		Type:                 EventPurchaseCreated,
		CreatorID:            transaction.CreatorID.String(),
		ContentID:            transaction.ContentID.String(),
		BuyerID:              transaction.BuyerID.String(),
		TransactionID:        transaction.TransactionID.String(),
		AmountCents:          transaction.Amount.Int64(),
		CreatorEarningsCents: transaction.CreatorEarnings.Int64(),
		OccurredUnixUTC:      transaction.CreatedUnixUTC,
	}); publishErr != nil {
		processor.deps.logOperation(ctx, OperationLog{
			Operation:     operationPurchase,
			ContentID:     transaction.ContentID,
			BuyerID:       transaction.BuyerID,
			CreatorID:     transaction.CreatorID,
			TransactionID: transaction.TransactionID,
			Error:         publishErr,
		})
	}
	return outcome, nil
}

// insert writes the transaction with one bounded retry. Only a uniqueness violation or an
// existence re-check ever turns a write failure into an already-purchased outcome.
func (processor *Processor) insert(ctx context.Context, transaction Transaction) (PurchaseOutcome, error) {
	var lastErr error
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		err := processor.store.InsertTransaction(ctx, transaction)
		if err == nil {
			return createdOutcome(transaction), nil
		}
		if errors.Is(err, ErrDuplicatePurchase) {
			return processor.resolveExisting(ctx, transaction, err)
		}
		lastErr = err
		existing, found, lookupErr := processor.store.FindActivePurchase(ctx, transaction.ContentID, transaction.BuyerID)
		if lookupErr == nil && found {
			if existing.TransactionID == transaction.TransactionID {
				return createdOutcome(transaction), nil
			}
			return PurchaseOutcome{Status: OutcomeAlreadyPurchased}, nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	wrapped := WrapError("processor", "transaction", "insert_failed", fmt.Errorf("%w: %w", ErrStoreWriteFailed, lastErr))
	return failedOutcome(wrapped), wrapped
}

// resolveExisting classifies a uniqueness violation by reading back the active purchase. A
// violation with no active row for the pair is a failed write, never an already-purchased.
func (processor *Processor) resolveExisting(ctx context.Context, transaction Transaction, violation error) (PurchaseOutcome, error) {
	existing, found, err := processor.store.FindActivePurchase(ctx, transaction.ContentID, transaction.BuyerID)
	if err == nil && found {
		if existing.TransactionID == transaction.TransactionID {
			return createdOutcome(transaction), nil
		}
		return PurchaseOutcome{Status: OutcomeAlreadyPurchased}, nil
	}
	cause := violation
	if err != nil {
		cause = errors.Join(violation, err)
	}
	wrapped := WrapError("processor", "transaction", "unconfirmed_duplicate", fmt.Errorf("%w: %w", ErrStoreWriteFailed, cause))
	return failedOutcome(wrapped), wrapped
}

func (processor *Processor) reportLedgerFailure(ctx context.Context, transaction Transaction, cause error) {
	err := WrapError("processor", "earnings", "apply_failed", fmt.Errorf("%w: %w", ErrLedgerUpdateFailed, cause))
	processor.deps.logOperation(ctx, OperationLog{
		Operation:     operationApplyEarnings,
		ContentID:     transaction.ContentID,
		BuyerID:       transaction.BuyerID,
		CreatorID:     transaction.CreatorID,
		TransactionID: transaction.TransactionID,
		Amount:        transaction.CreatorEarnings,
		Status:        operationStatusLedgerUpdateFailed,
		ErrorKind:     ErrorKindLedgerUpdateFailed,
		Error:         err,
	})
	publishErr := processor.deps.publish(ctx, Event{
		Type:            EventReconcileRequested,
		CreatorID:       transaction.CreatorID.String(),
		TransactionID:   transaction.TransactionID.String(),
		Reason:          string(ErrorKindLedgerUpdateFailed),
		OccurredUnixUTC: processor.nowFn(),
	})
	if publishErr != nil {
		processor.deps.logOperation(ctx, OperationLog{
			Operation: operationReconcile,
			CreatorID: transaction.CreatorID,
			Error:     publishErr,
		})
	}
}

func (processor *Processor) cachedPurchase(ctx context.Context, key PurchaseKey) bool {
	hit, err := processor.deps.cache.Has(ctx, key)
	if err != nil {
		processor.deps.logOperation(ctx, OperationLog{Operation: operationHasPurchased, Status: operationStatusCacheError, Error: err})
		return false
	}
	return hit
}

func (processor *Processor) markCached(ctx context.Context, key PurchaseKey) {
	if err := processor.deps.cache.MarkPurchased(ctx, key); err != nil {
		processor.deps.logOperation(ctx, OperationLog{Operation: operationPurchase, Status: operationStatusCacheError, Error: err})
	}
}

func createdOutcome(transaction Transaction) PurchaseOutcome {
	return PurchaseOutcome{
		Status:          OutcomeCreated,
		TransactionID:   transaction.TransactionID,
		PlatformFee:     transaction.PlatformFee,
		CreatorEarnings: transaction.CreatorEarnings,
	}
}

func failedOutcome(err error) PurchaseOutcome {
	return PurchaseOutcome{Status: OutcomeFailed, ErrorKind: ClassifyError(err)}
}
