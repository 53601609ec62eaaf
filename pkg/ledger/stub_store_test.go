package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
)

var errTransientStore = errors.New("connection reset")

// stubStore is an in-memory Store with injectable failures.
type stubStore struct {
	mu           sync.Mutex
	transactions []Transaction
	accounts     map[string]EarningsAccount
	withdrawals  map[string]WithdrawalRequest
	sessions     map[string]PaymentSession

	insertErrors         []error
	insertLandsOnError   bool
	beforeInsert         func(store *stubStore)
	findError            error
	incrementError       error
	sumWithdrawalsError  error
	putAccountError      error
	createSessionError   error
	transitionSessionErr error

	insertCalls    atomic.Int64
	findCalls      atomic.Int64
	incrementCalls atomic.Int64
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		accounts:    make(map[string]EarningsAccount),
		withdrawals: make(map[string]WithdrawalRequest),
		sessions:    make(map[string]PaymentSession),
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) InsertTransaction(_ context.Context, transaction Transaction) error {
	store.insertCalls.Add(1)
	if store.beforeInsert != nil {
		hook := store.beforeInsert
		store.beforeInsert = nil
		hook(store)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	var injected error
	if len(store.insertErrors) > 0 {
		injected = store.insertErrors[0]
		store.insertErrors = store.insertErrors[1:]
	}
	if injected != nil && !store.insertLandsOnError {
		return injected
	}
	for _, existing := range store.transactions {
		if !existing.IsDeleted && existing.ContentID == transaction.ContentID && existing.BuyerID == transaction.BuyerID {
			return fmt.Errorf("%w: stub", ErrDuplicatePurchase)
		}
	}
	store.transactions = append(store.transactions, transaction)
	return injected
}

func (store *stubStore) FindActivePurchase(_ context.Context, contentID ContentID, buyerID UserID) (Transaction, bool, error) {
	store.findCalls.Add(1)
	if store.findError != nil {
		return Transaction{}, false, store.findError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, existing := range store.transactions {
		if !existing.IsDeleted && existing.ContentID == contentID && existing.BuyerID == buyerID {
			return existing, true, nil
		}
	}
	return Transaction{}, false, nil
}

func (store *stubStore) SumCreatorEarnings(_ context.Context, creatorID UserID) (AmountCents, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var total AmountCents
	for _, existing := range store.transactions {
		if existing.CreatorID == creatorID && existing.Status == TransactionStatusCompleted && !existing.IsDeleted {
			total += existing.CreatorEarnings
		}
	}
	return total, nil
}

func (store *stubStore) CountCreatorTransactions(_ context.Context, creatorID UserID) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var count int64
	for _, existing := range store.transactions {
		if existing.CreatorID == creatorID && existing.Status == TransactionStatusCompleted && !existing.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (store *stubStore) ListCreatorIDs(_ context.Context) ([]UserID, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	seen := make(map[string]UserID)
	for _, existing := range store.transactions {
		seen[existing.CreatorID.String()] = existing.CreatorID
	}
	for _, account := range store.accounts {
		seen[account.CreatorID.String()] = account.CreatorID
	}
	creatorIDs := make([]UserID, 0, len(seen))
	for _, creatorID := range seen {
		creatorIDs = append(creatorIDs, creatorID)
	}
	sort.Slice(creatorIDs, func(left, right int) bool { return creatorIDs[left].String() < creatorIDs[right].String() })
	return creatorIDs, nil
}

func (store *stubStore) IncrementEarnings(_ context.Context, creatorID UserID, delta AmountCents, atUnixUTC int64) error {
	store.incrementCalls.Add(1)
	if store.incrementError != nil {
		return store.incrementError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	account := store.accounts[creatorID.String()]
	account.CreatorID = creatorID
	account.TotalEarnings += delta
	account.AvailableBalance += delta
	account.UpdatedUnixUTC = atUnixUTC
	store.accounts[creatorID.String()] = account
	return nil
}

func (store *stubStore) GetEarningsAccount(_ context.Context, creatorID UserID) (EarningsAccount, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, found := store.accounts[creatorID.String()]
	return account, found, nil
}

func (store *stubStore) PutEarningsAccount(_ context.Context, account EarningsAccount) error {
	if store.putAccountError != nil {
		return store.putAccountError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.accounts[account.CreatorID.String()] = account
	return nil
}

func (store *stubStore) CreateWithdrawal(_ context.Context, withdrawal WithdrawalRequest) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.withdrawals[withdrawal.WithdrawalID.String()] = withdrawal
	return nil
}

func (store *stubStore) GetWithdrawal(_ context.Context, withdrawalID WithdrawalID) (WithdrawalRequest, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	withdrawal, found := store.withdrawals[withdrawalID.String()]
	if !found {
		return WithdrawalRequest{}, ErrUnknownWithdrawal
	}
	return withdrawal, nil
}

func (store *stubStore) UpdateWithdrawalStatus(_ context.Context, withdrawalID WithdrawalID, from WithdrawalStatus, to WithdrawalStatus, atUnixUTC int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	withdrawal, found := store.withdrawals[withdrawalID.String()]
	if !found {
		return ErrUnknownWithdrawal
	}
	if withdrawal.Status != from {
		return ErrWithdrawalClosed
	}
	withdrawal.Status = to
	withdrawal.UpdatedUnixUTC = atUnixUTC
	store.withdrawals[withdrawalID.String()] = withdrawal
	return nil
}

func (store *stubStore) SumWithdrawals(_ context.Context, userID UserID, statuses []WithdrawalStatus) (AmountCents, error) {
	if store.sumWithdrawalsError != nil {
		return 0, store.sumWithdrawalsError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	var total AmountCents
	for _, withdrawal := range store.withdrawals {
		if withdrawal.UserID != userID {
			continue
		}
		for _, status := range statuses {
			if withdrawal.Status == status {
				total += withdrawal.Amount
			}
		}
	}
	return total, nil
}

func (store *stubStore) CreateSession(_ context.Context, session PaymentSession) error {
	if store.createSessionError != nil {
		return store.createSessionError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, existing := range store.sessions {
		if existing.GatewayOrderID == session.GatewayOrderID {
			return ErrDuplicateOrderID
		}
	}
	store.sessions[session.SessionID.String()] = session
	return nil
}

func (store *stubStore) GetSession(_ context.Context, sessionID SessionID) (PaymentSession, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	session, found := store.sessions[sessionID.String()]
	if !found {
		return PaymentSession{}, ErrUnknownSession
	}
	return session, nil
}

func (store *stubStore) GetSessionByOrderID(_ context.Context, gatewayOrderID string) (PaymentSession, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, session := range store.sessions {
		if session.GatewayOrderID == gatewayOrderID {
			return session, nil
		}
	}
	return PaymentSession{}, ErrUnknownSession
}

func (store *stubStore) TransitionSession(_ context.Context, sessionID SessionID, from SessionStatus, to SessionStatus, update SessionUpdate) error {
	if store.transitionSessionErr != nil {
		return store.transitionSessionErr
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	session, found := store.sessions[sessionID.String()]
	if !found {
		return ErrUnknownSession
	}
	if session.Status != from {
		return ErrSessionClosed
	}
	session.Status = to
	session.GatewayTransactionID = update.GatewayTransactionID
	session.TransactionID = update.TransactionID
	session.GatewayResponse = update.GatewayResponse
	session.FailureReason = update.FailureReason
	session.UpdatedUnixUTC = update.UpdatedUnixUTC
	store.sessions[sessionID.String()] = session
	return nil
}

func (store *stubStore) transactionCount() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.transactions)
}

func (store *stubStore) account(creatorID UserID) (EarningsAccount, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, found := store.accounts[creatorID.String()]
	return account, found
}

// mapCache is an in-memory PurchaseCache that counts lookups.
type mapCache struct {
	mu      sync.Mutex
	keys    map[PurchaseKey]bool
	hasErr  error
	lookups int
}

func newMapCache() *mapCache {
	return &mapCache{keys: make(map[PurchaseKey]bool)}
}

func (cache *mapCache) Has(_ context.Context, key PurchaseKey) (bool, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.lookups++
	if cache.hasErr != nil {
		return false, cache.hasErr
	}
	return cache.keys[key], nil
}

func (cache *mapCache) MarkPurchased(_ context.Context, key PurchaseKey) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.keys[key] = true
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (publisher *recordingPublisher) Publish(_ context.Context, event Event) error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	publisher.events = append(publisher.events, event)
	return publisher.err
}

func (publisher *recordingPublisher) eventsOfType(eventType EventType) []Event {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	var matching []Event
	for _, event := range publisher.events {
		if event.Type == eventType {
			matching = append(matching, event)
		}
	}
	return matching
}

type recorderLogger struct {
	mu      sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) withStatus(status string) []OperationLog {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	var matching []OperationLog
	for _, entry := range logger.entries {
		if entry.Status == status {
			matching = append(matching, entry)
		}
	}
	return matching
}

type ledgerFixture struct {
	store       *stubStore
	withdrawals *WithdrawalAccounting
	earnings    *EarningsLedger
	processor   *Processor
}

func fixedClock() int64 {
	return 1_700_000_000
}

func sequentialIDs(prefix string) func() string {
	var counter atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, counter.Add(1))
	}
}

func newLedgerFixture(test *testing.T, store *stubStore, options ...Option) ledgerFixture {
	test.Helper()
	withdrawals, err := NewWithdrawalAccounting(store, fixedClock, options...)
	if err != nil {
		test.Fatalf("withdrawal accounting init failed: %v", err)
	}
	earnings, err := NewEarningsLedger(store, withdrawals, fixedClock, options...)
	if err != nil {
		test.Fatalf("earnings ledger init failed: %v", err)
	}
	processor, err := NewProcessor(store, earnings, fixedClock, options...)
	if err != nil {
		test.Fatalf("processor init failed: %v", err)
	}
	return ledgerFixture{store: store, withdrawals: withdrawals, earnings: earnings, processor: processor}
}

func mustPurchaseRequest(test *testing.T, contentID string, buyerID string, creatorID string, amount AmountCents) PurchaseRequest {
	test.Helper()
	request, err := NewPurchaseRequest(contentID, buyerID, creatorID, amount)
	if err != nil {
		test.Fatalf("invalid purchase request: %v", err)
	}
	return request
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	userID, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("invalid user id: %v", err)
	}
	return userID
}

func mustContentID(test *testing.T, raw string) ContentID {
	test.Helper()
	contentID, err := NewContentID(raw)
	if err != nil {
		test.Fatalf("invalid content id: %v", err)
	}
	return contentID
}

func mustTransactionID(test *testing.T, raw string) TransactionID {
	test.Helper()
	transactionID, err := NewTransactionID(raw)
	if err != nil {
		test.Fatalf("invalid transaction id: %v", err)
	}
	return transactionID
}

func mustWithdrawalID(test *testing.T, raw string) WithdrawalID {
	test.Helper()
	withdrawalID, err := NewWithdrawalID(raw)
	if err != nil {
		test.Fatalf("invalid withdrawal id: %v", err)
	}
	return withdrawalID
}
