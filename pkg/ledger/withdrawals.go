package ledger

import (
	"context"
	"fmt"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending:    {WithdrawalStatusProcessing, WithdrawalStatusRejected, WithdrawalStatusCompleted},
	WithdrawalStatusProcessing: {WithdrawalStatusCompleted, WithdrawalStatusFailed, WithdrawalStatusRejected},
}

// WithdrawalAccounting tracks withdrawal holds against creator balances.
type WithdrawalAccounting struct {
	store Store
	nowFn func() int64
	deps  dependencies
}

// NewWithdrawalAccounting wires a WithdrawalAccounting.
func NewWithdrawalAccounting(store Store, now func() int64, options ...Option) (*WithdrawalAccounting, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &WithdrawalAccounting{store: store, nowFn: now, deps: newDependencies(options)}, nil
}

// PendingTotal sums the user's withdrawals that are requested but not yet paid out.
func (accounting *WithdrawalAccounting) PendingTotal(ctx context.Context, userID UserID) (AmountCents, error) {
	if userID.IsZero() {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return accounting.store.SumWithdrawals(ctx, userID, PendingWithdrawalStatuses)
}

// Request places a pending withdrawal if the amount fits the live available balance.
func (accounting *WithdrawalAccounting) Request(ctx context.Context, userID UserID, amount AmountCents, payoutDetails MetadataJSON) (WithdrawalRequest, error) {
	var withdrawal WithdrawalRequest
	operationError := func() error {
		if userID.IsZero() {
			return fmt.Errorf("%w: empty value", ErrInvalidUserID)
		}
		if _, err := NewAmountCents(amount.Int64()); err != nil {
			return err
		}
		withdrawalID, err := NewWithdrawalID(accounting.deps.newID())
		if err != nil {
			return err
		}
		return accounting.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
			nowUnixUTC := accounting.nowFn()
			// zero increment upserts and locks the account row, serializing requests of one creator
			if err := txStore.IncrementEarnings(ctx, userID, 0, nowUnixUTC); err != nil {
				return err
			}
			total, err := txStore.SumCreatorEarnings(ctx, userID)
			if err != nil {
				return err
			}
			withdrawn, err := txStore.SumWithdrawals(ctx, userID, HoldingWithdrawalStatuses)
			if err != nil {
				return err
			}
			if amount > floorAtZero(total-withdrawn) {
				return ErrInsufficientFunds
			}
			candidate := WithdrawalRequest{
				WithdrawalID:   withdrawalID,
				UserID:         userID,
				Amount:         amount,
				Status:         WithdrawalStatusPending,
				PayoutDetails:  payoutDetails,
				CreatedUnixUTC: nowUnixUTC,
				UpdatedUnixUTC: nowUnixUTC,
			}
			if err := txStore.CreateWithdrawal(ctx, candidate); err != nil {
				return err
			}
			if _, err := recomputeAccount(ctx, txStore, userID, nowUnixUTC); err != nil {
				return err
			}
			withdrawal = candidate
			return nil
		})
	}()
	accounting.deps.logOperation(ctx, OperationLog{
		Operation:    operationRequestWithdrawal,
		CreatorID:    userID,
		WithdrawalID: withdrawal.WithdrawalID,
		Amount:       amount,
		Error:        operationError,
	})
	if operationError != nil {
		return WithdrawalRequest{}, operationError
	}
	return withdrawal, nil
}

// Transition moves a withdrawal along its lifecycle and rewrites the owner's account,
// so rejected or failed withdrawals release their hold.
func (accounting *WithdrawalAccounting) Transition(ctx context.Context, withdrawalID WithdrawalID, to WithdrawalStatus) (WithdrawalRequest, error) {
	var withdrawal WithdrawalRequest
	operationError := accounting.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		current, err := txStore.GetWithdrawal(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if !withdrawalTransitionAllowed(current.Status, to) {
			return fmt.Errorf("%w: %s to %s", ErrWithdrawalClosed, current.Status, to)
		}
		nowUnixUTC := accounting.nowFn()
		if err := txStore.UpdateWithdrawalStatus(ctx, withdrawalID, current.Status, to, nowUnixUTC); err != nil {
			return err
		}
		if _, err := recomputeAccount(ctx, txStore, current.UserID, nowUnixUTC); err != nil {
			return err
		}
		current.Status = to
		current.UpdatedUnixUTC = nowUnixUTC
		withdrawal = current
		return nil
	})
	accounting.deps.logOperation(ctx, OperationLog{
		Operation:    operationTransitionWithdraw,
		CreatorID:    withdrawal.UserID,
		WithdrawalID: withdrawalID,
		Amount:       withdrawal.Amount,
		Error:        operationError,
	})
	if operationError != nil {
		return WithdrawalRequest{}, operationError
	}
	return withdrawal, nil
}

func withdrawalTransitionAllowed(from WithdrawalStatus, to WithdrawalStatus) bool {
	for _, candidate := range withdrawalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
