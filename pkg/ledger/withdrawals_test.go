package ledger

import (
	"context"
	"errors"
	"testing"
)

func TestPendingTotalCountsUnpaidHolds(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	seedWithdrawal(test, store, "w1", creatorIDValue, 1000, WithdrawalStatusPending)
	seedWithdrawal(test, store, "w2", creatorIDValue, 2000, WithdrawalStatusProcessing)
	seedWithdrawal(test, store, "w3", creatorIDValue, 4000, WithdrawalStatusCompleted)
	seedWithdrawal(test, store, "w4", creatorIDValue, 8000, WithdrawalStatusRejected)
	seedWithdrawal(test, store, "w5", "other", 16000, WithdrawalStatusPending)
	fixture := newLedgerFixture(test, store)

	pending, err := fixture.withdrawals.PendingTotal(context.Background(), mustUserID(test, creatorIDValue))
	if err != nil {
		test.Fatalf("pending total failed: %v", err)
	}
	if pending != 3000 {
		test.Fatalf("expected 30.00 pending, got %s", pending)
	}
	if _, err := fixture.withdrawals.PendingTotal(context.Background(), UserID{}); !errors.Is(err, ErrInvalidUserID) {
		test.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestRequestWithdrawalIsGatedByAvailableBalance(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	seedTransaction(test, store, "t1", "c1", creatorIDValue, 46500, TransactionStatusCompleted, false)
	fixture := newLedgerFixture(test, store, WithIDGenerator(sequentialIDs("withdrawal")))
	creatorID := mustUserID(test, creatorIDValue)
	details, err := NewMetadataJSON(`{"upi":"creator@bank"}`)
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}

	if _, err := fixture.withdrawals.Request(context.Background(), creatorID, 46501, details); !errors.Is(err, ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	withdrawal, err := fixture.withdrawals.Request(context.Background(), creatorID, 40000, details)
	if err != nil {
		test.Fatalf("request failed: %v", err)
	}
	if withdrawal.Status != WithdrawalStatusPending || withdrawal.WithdrawalID.String() != "withdrawal-2" {
		test.Fatalf("unexpected withdrawal %+v", withdrawal)
	}
	account, _ := store.account(creatorID)
	if account.TotalEarnings != 46500 || account.AvailableBalance != 6500 {
		test.Fatalf("expected account to reflect the hold, got %+v", account)
	}
	if _, err := fixture.withdrawals.Request(context.Background(), creatorID, 6501, details); !errors.Is(err, ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds for second request, got %v", err)
	}

	summary, err := fixture.earnings.Summary(context.Background(), creatorID)
	if err != nil {
		test.Fatalf("summary failed: %v", err)
	}
	if summary.PendingWithdrawals != 40000 || summary.AvailableBalance != 6500 {
		test.Fatalf("unexpected summary %+v", summary)
	}
}

func TestTransitionWithdrawal(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name          string
		from          WithdrawalStatus
		to            WithdrawalStatus
		wantErr       error
		wantAvailable AmountCents
	}{
		{name: "reject releases hold", from: WithdrawalStatusPending, to: WithdrawalStatusRejected, wantAvailable: 10000},
		{name: "processing keeps hold", from: WithdrawalStatusPending, to: WithdrawalStatusProcessing, wantAvailable: 7000},
		{name: "failure releases hold", from: WithdrawalStatusProcessing, to: WithdrawalStatusFailed, wantAvailable: 10000},
		{name: "completion keeps hold", from: WithdrawalStatusProcessing, to: WithdrawalStatusCompleted, wantAvailable: 7000},
		{name: "terminal withdrawal", from: WithdrawalStatusRejected, to: WithdrawalStatusPending, wantErr: ErrWithdrawalClosed},
		{name: "pending cannot fail", from: WithdrawalStatusPending, to: WithdrawalStatusFailed, wantErr: ErrWithdrawalClosed},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			seedTransaction(test, store, "t1", "c1", creatorIDValue, 10000, TransactionStatusCompleted, false)
			seedWithdrawal(test, store, "w1", creatorIDValue, 3000, testCase.from)
			fixture := newLedgerFixture(test, store)

			withdrawal, err := fixture.withdrawals.Transition(context.Background(), mustWithdrawalID(test, "w1"), testCase.to)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					test.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				test.Fatalf("transition failed: %v", err)
			}
			if withdrawal.Status != testCase.to {
				test.Fatalf("expected status %s, got %s", testCase.to, withdrawal.Status)
			}
			account, _ := store.account(mustUserID(test, creatorIDValue))
			if account.AvailableBalance != testCase.wantAvailable {
				test.Fatalf("expected available %s, got %s", testCase.wantAvailable, account.AvailableBalance)
			}
		})
	}
}

func TestTransitionUnknownWithdrawal(test *testing.T) {
	test.Parallel()
	fixture := newLedgerFixture(test, newStubStore(test))
	if _, err := fixture.withdrawals.Transition(context.Background(), mustWithdrawalID(test, "missing"), WithdrawalStatusCompleted); !errors.Is(err, ErrUnknownWithdrawal) {
		test.Fatalf("expected ErrUnknownWithdrawal, got %v", err)
	}
}
