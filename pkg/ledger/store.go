package ledger

import "context"

// TransactionStore persists purchase transactions.
// InsertTransaction returns ErrDuplicatePurchase when an active purchase of the same
// (content, buyer) pair already exists.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, transaction Transaction) error
	FindActivePurchase(ctx context.Context, contentID ContentID, buyerID UserID) (Transaction, bool, error)
	SumCreatorEarnings(ctx context.Context, creatorID UserID) (AmountCents, error)
	CountCreatorTransactions(ctx context.Context, creatorID UserID) (int64, error)
	// ListCreatorIDs returns every creator with a transaction, deleted or not, or with an earnings account.
	ListCreatorIDs(ctx context.Context) ([]UserID, error)
}

// EarningsStore persists per-creator earnings accounts.
type EarningsStore interface {
	// IncrementEarnings adds delta to both total and available balance, creating the account when absent.
	IncrementEarnings(ctx context.Context, creatorID UserID, delta AmountCents, atUnixUTC int64) error
	GetEarningsAccount(ctx context.Context, creatorID UserID) (EarningsAccount, bool, error)
	PutEarningsAccount(ctx context.Context, account EarningsAccount) error
}

// WithdrawalStore persists withdrawal requests.
type WithdrawalStore interface {
	CreateWithdrawal(ctx context.Context, withdrawal WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, withdrawalID WithdrawalID) (WithdrawalRequest, error)
	UpdateWithdrawalStatus(ctx context.Context, withdrawalID WithdrawalID, from WithdrawalStatus, to WithdrawalStatus, atUnixUTC int64) error
	SumWithdrawals(ctx context.Context, userID UserID, statuses []WithdrawalStatus) (AmountCents, error)
}

// SessionStore persists external payment sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session PaymentSession) error
	GetSession(ctx context.Context, sessionID SessionID) (PaymentSession, error)
	GetSessionByOrderID(ctx context.Context, gatewayOrderID string) (PaymentSession, error)
	// TransitionSession moves a session from one status to another; ErrSessionClosed when the current status differs.
	TransitionSession(ctx context.Context, sessionID SessionID, from SessionStatus, to SessionStatus, update SessionUpdate) error
}

// Store is the persistence contract used by the ledger components.
type Store interface {
	TransactionStore
	EarningsStore
	WithdrawalStore
	SessionStore
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
}
