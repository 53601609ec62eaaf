package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// EarningsLedger maintains per-creator running balances and recomputes them from history.
type EarningsLedger struct {
	store       Store
	withdrawals *WithdrawalAccounting
	nowFn       func() int64
	deps        dependencies
}

// NewEarningsLedger wires an EarningsLedger.
func NewEarningsLedger(store Store, withdrawals *WithdrawalAccounting, now func() int64, options ...Option) (*EarningsLedger, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if withdrawals == nil {
		return nil, fmt.Errorf("%w: withdrawal accounting dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &EarningsLedger{store: store, withdrawals: withdrawals, nowFn: now, deps: newDependencies(options)}, nil
}

// Apply increments total and available balance by delta in a single storage-level update.
func (ledger *EarningsLedger) Apply(ctx context.Context, creatorID UserID, delta AmountCents) error {
	operationError := func() error {
		if creatorID.IsZero() {
			return fmt.Errorf("%w: empty value", ErrInvalidCreatorID)
		}
		if delta < 0 {
			return fmt.Errorf("%w: earnings delta must not be negative", ErrInvalidAmount)
		}
		return ledger.store.IncrementEarnings(ctx, creatorID, delta, ledger.nowFn())
	}()
	ledger.deps.logOperation(ctx, OperationLog{
		Operation: operationApplyEarnings,
		CreatorID: creatorID,
		Amount:    delta,
		Error:     operationError,
	})
	return operationError
}

// Summary returns the creator's balances. A creator without an account is reconciled first.
func (ledger *EarningsLedger) Summary(ctx context.Context, creatorID UserID) (EarningsSummary, error) {
	if creatorID.IsZero() {
		return EarningsSummary{}, fmt.Errorf("%w: empty value", ErrInvalidCreatorID)
	}
	account, found, err := ledger.store.GetEarningsAccount(ctx, creatorID)
	if err != nil {
		return EarningsSummary{}, err
	}
	if !found {
		account, err = ledger.Reconcile(ctx, creatorID)
		if err != nil {
			return EarningsSummary{}, err
		}
	}
	pending, err := ledger.withdrawals.PendingTotal(ctx, creatorID)
	if err != nil {
		return EarningsSummary{}, err
	}
	count, err := ledger.store.CountCreatorTransactions(ctx, creatorID)
	if err != nil {
		return EarningsSummary{}, err
	}
	return EarningsSummary{
		TotalEarnings:      account.TotalEarnings,
		AvailableBalance:   floorAtZero(account.AvailableBalance),
		PendingWithdrawals: pending,
		TransactionCount:   count,
	}, nil
}

// Reconcile recomputes the creator's account from completed transactions and holding withdrawals
// and overwrites the stored values. It is idempotent.
func (ledger *EarningsLedger) Reconcile(ctx context.Context, creatorID UserID) (EarningsAccount, error) {
	ctx, span := startSpan(ctx, "ledger.Reconcile", attribute.String("creator_id", creatorID.String()))
	var account EarningsAccount
	operationError := func() error {
		if creatorID.IsZero() {
			return fmt.Errorf("%w: empty value", ErrInvalidCreatorID)
		}
		return ledger.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
			recomputed, err := recomputeAccount(ctx, txStore, creatorID, ledger.nowFn())
			if err != nil {
				return err
			}
			account = recomputed
			return nil
		})
	}()
	endSpan(span, operationError)
	ledger.deps.logOperation(ctx, OperationLog{
		Operation: operationReconcile,
		CreatorID: creatorID,
		Amount:    account.AvailableBalance,
		Error:     operationError,
	})
	if operationError != nil {
		return EarningsAccount{}, operationError
	}
	if publishErr := ledger.deps.publish(ctx, Event{
		Type:                  EventEarningsReconciled,
		CreatorID:             creatorID.String(),
		AmountCents:           account.TotalEarnings.Int64(),
		AvailableBalanceCents: account.AvailableBalance.Int64(),
		OccurredUnixUTC:       account.UpdatedUnixUTC,
	}); publishErr != nil {
		ledger.deps.logOperation(ctx, OperationLog{Operation: operationReconcile, CreatorID: creatorID, Error: publishErr})
	}
	return account, nil
}

// ReconcileAll reconciles the given creators, or when none are given every creator with a
// transaction (deleted ones included) or a stored earnings account.
// It continues past individual failures and returns how many accounts were rewritten.
func (ledger *EarningsLedger) ReconcileAll(ctx context.Context, creatorIDs []UserID) (int, error) {
	if len(creatorIDs) == 0 {
		listed, err := ledger.store.ListCreatorIDs(ctx)
		if err != nil {
			return 0, err
		}
		creatorIDs = listed
	}
	reconciled := 0
	var failures []error
	for _, creatorID := range creatorIDs {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		if _, err := ledger.Reconcile(ctx, creatorID); err != nil {
			failures = append(failures, fmt.Errorf("creator %s: %w", creatorID.String(), err))
			continue
		}
		reconciled++
	}
	return reconciled, errors.Join(failures...)
}

func recomputeAccount(ctx context.Context, store Store, creatorID UserID, nowUnixUTC int64) (EarningsAccount, error) {
	total, err := store.SumCreatorEarnings(ctx, creatorID)
	if err != nil {
		return EarningsAccount{}, err
	}
	withdrawn, err := store.SumWithdrawals(ctx, creatorID, HoldingWithdrawalStatuses)
	if err != nil {
		return EarningsAccount{}, err
	}
	account := EarningsAccount{
		CreatorID:        creatorID,
		TotalEarnings:    total,
		AvailableBalance: floorAtZero(total - withdrawn),
		UpdatedUnixUTC:   nowUnixUTC,
	}
	if err := store.PutEarningsAccount(ctx, account); err != nil {
		return EarningsAccount{}, err
	}
	return account, nil
}
