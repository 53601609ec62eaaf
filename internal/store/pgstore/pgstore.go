package pgstore

import (
	"context"
	_ "embed"
	"errors"

	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintActivePurchase = "uniq_active_purchase"
	constraintSessionOrder   = "uniq_payment_sessions_order"
	pgUniqueViolationCode    = "23505"
	errorOperationStore      = "store"
	errorSubjectEarnings     = "earnings"
	errorSubjectLedger       = "ledger_transaction"
	errorSubjectSchema       = "schema"
	errorSubjectSession      = "session"
	errorSubjectTransaction  = "transaction"
	errorSubjectWithdrawal   = "withdrawal"
	errorCodeApply           = "apply"
	errorCodeBegin           = "begin"
	errorCodeCommit          = "commit"
	errorCodeCount           = "count"
	errorCodeCreate          = "create"
	errorCodeDuplicate       = "duplicate"
	errorCodeGet             = "get"
	errorCodeIncrement       = "increment"
	errorCodeInsert          = "insert"
	errorCodeInvalid         = "invalid"
	errorCodeList            = "list"
	errorCodeLookup          = "lookup"
	errorCodePut             = "put"
	errorCodeSum             = "sum"
	errorCodeUpdateStatus    = "update_status"

	sqlInsertTransaction = `
		insert into ledger_transactions(
			transaction_id, content_id, buyer_id, creator_id, amount_cents, platform_fee_cents,
			creator_earnings_cents, payment_method, status, gateway_transaction_id, is_deleted, created_at
		)
		values($1, $2, $3, $4, $5, $6, $7, $8, $9, nullif($10,''), $11, to_timestamp($12))
	`

	sqlSelectActivePurchase = `
		select
			transaction_id, content_id, buyer_id, creator_id, amount_cents, platform_fee_cents,
			creator_earnings_cents, payment_method, status, coalesce(gateway_transaction_id,''),
			is_deleted, extract(epoch from created_at)::bigint
		from ledger_transactions
		where content_id = $1 and buyer_id = $2 and is_deleted = false
		limit 1
	`

	sqlSumCreatorEarnings = `
		select coalesce(sum(creator_earnings_cents),0)::bigint from ledger_transactions
		where creator_id = $1 and status = 'completed' and is_deleted = false
	`

	sqlCountCreatorTransactions = `
		select count(*) from ledger_transactions
		where creator_id = $1 and status = 'completed' and is_deleted = false
	`

	sqlListCreatorIDs = `
		select creator_id from ledger_transactions
		union
		select creator_id from earnings_accounts
		order by creator_id
	`

	sqlIncrementEarnings = `
		insert into earnings_accounts(creator_id, total_earnings_cents, available_balance_cents, updated_at)
		values($1, $2, $2, to_timestamp($3))
		on conflict (creator_id) do update set
			total_earnings_cents = earnings_accounts.total_earnings_cents + excluded.total_earnings_cents,
			available_balance_cents = earnings_accounts.available_balance_cents + excluded.available_balance_cents,
			updated_at = excluded.updated_at
	`

	sqlSelectEarningsAccount = `
		select creator_id, total_earnings_cents, available_balance_cents, extract(epoch from updated_at)::bigint
		from earnings_accounts
		where creator_id = $1
	`

	sqlPutEarningsAccount = `
		insert into earnings_accounts(creator_id, total_earnings_cents, available_balance_cents, updated_at)
		values($1, $2, $3, to_timestamp($4))
		on conflict (creator_id) do update set
			total_earnings_cents = excluded.total_earnings_cents,
			available_balance_cents = excluded.available_balance_cents,
			updated_at = excluded.updated_at
	`

	sqlInsertWithdrawal = `
		insert into withdrawal_requests(withdrawal_id, user_id, amount_cents, status, payout_details, created_at, updated_at)
		values($1, $2, $3, $4, coalesce(nullif($5,''),'{}')::jsonb, to_timestamp($6), to_timestamp($7))
	`

	sqlSelectWithdrawal = `
		select withdrawal_id, user_id, amount_cents, status, payout_details::text,
			extract(epoch from created_at)::bigint, extract(epoch from updated_at)::bigint
		from withdrawal_requests
		where withdrawal_id = $1
		for update
	`

	sqlUpdateWithdrawalStatus = `
		update withdrawal_requests
		set status = $3, updated_at = to_timestamp($4)
		where withdrawal_id = $1 and status = $2
	`

	sqlSumWithdrawals = `
		select coalesce(sum(amount_cents),0)::bigint from withdrawal_requests
		where user_id = $1 and status = any($2)
	`

	sqlInsertSession = `
		insert into payment_sessions(
			session_id, content_id, buyer_id, creator_id, amount_cents, status, gateway_name, gateway_order_id,
			gateway_transaction_id, transaction_id, checksum, gateway_response, failure_reason, created_at, updated_at
		)
		values(
			$1, $2, $3, $4, $5, $6, $7, $8,
			nullif($9,''), nullif($10,''), $11,
			coalesce(nullif($12,''),'{}')::jsonb,
			$13, to_timestamp($14), to_timestamp($15)
		)
	`

	sqlSelectSessionColumns = `
		select
			session_id, content_id, buyer_id, creator_id, amount_cents, status, gateway_name, gateway_order_id,
			coalesce(gateway_transaction_id,''), coalesce(transaction_id,''), checksum, gateway_response::text,
			failure_reason, extract(epoch from created_at)::bigint, extract(epoch from updated_at)::bigint
		from payment_sessions
	`

	sqlSelectSessionByID      = sqlSelectSessionColumns + ` where session_id = $1`
	sqlSelectSessionByOrderID = sqlSelectSessionColumns + ` where gateway_order_id = $1`

	sqlTransitionSession = `
		update payment_sessions set
			status = $3,
			gateway_transaction_id = nullif($4::text,''),
			transaction_id = nullif($5::text,''),
			gateway_response = $6::text::jsonb,
			failure_reason = $7,
			updated_at = to_timestamp($8)
		where session_id = $1 and status = $2
	`

	sqlSessionExists = `select exists(select 1 from payment_sessions where session_id = $1)`
)

//go:embed schema.sql
var schemaSQL string

// queryer is the subset of pgx shared by the pool and an open transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// Store implements ledger.Store using a pgx connection pool (autocommit).
type Store struct {
	pool *pgxpool.Pool
	db   queryer
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// Schema returns the versioned DDL. Postgres databases served through gorm apply the same text.
func Schema() string {
	return schemaSQL
}

// ApplySchema creates the ledger tables and indexes when they are missing.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeApply, err)
	}
	return nil
}

// WithTx runs fn inside a database transaction. Nested calls reuse the open transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	if store.pool == nil {
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(ctx, &Store{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) InsertTransaction(ctx context.Context, transaction ledger.Transaction) error {
	_, err := store.db.Exec(ctx, sqlInsertTransaction,
		transaction.TransactionID.String(),
		transaction.ContentID.String(),
		transaction.BuyerID.String(),
		transaction.CreatorID.String(),
		transaction.Amount.Int64(),
		transaction.PlatformFee.Int64(),
		transaction.CreatorEarnings.Int64(),
		string(transaction.PaymentMethod),
		string(transaction.Status),
		transaction.GatewayTransactionID,
		transaction.IsDeleted,
		transaction.CreatedUnixUTC,
	)
	if isUniqueViolation(err, constraintActivePurchase) {
		return wrapStoreError(errorSubjectLedger, errorCodeDuplicate, ledger.ErrDuplicatePurchase)
	}
	if err != nil {
		return wrapStoreError(errorSubjectLedger, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) FindActivePurchase(ctx context.Context, contentID ledger.ContentID, buyerID ledger.UserID) (ledger.Transaction, bool, error) {
	var row transactionRow
	err := store.db.QueryRow(ctx, sqlSelectActivePurchase, contentID.String(), buyerID.String()).Scan(
		&row.transactionID,
		&row.contentID,
		&row.buyerID,
		&row.creatorID,
		&row.amountCents,
		&row.platformFeeCents,
		&row.creatorEarningsCents,
		&row.paymentMethod,
		&row.status,
		&row.gatewayTransactionID,
		&row.isDeleted,
		&row.createdUnixUTC,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Transaction{}, false, nil
	}
	if err != nil {
		return ledger.Transaction{}, false, wrapStoreError(errorSubjectLedger, errorCodeLookup, err)
	}
	transaction, err := row.toLedger()
	if err != nil {
		return ledger.Transaction{}, false, wrapStoreError(errorSubjectLedger, errorCodeInvalid, err)
	}
	return transaction, true, nil
}

func (store *Store) SumCreatorEarnings(ctx context.Context, creatorID ledger.UserID) (ledger.AmountCents, error) {
	var sum int64
	if err := store.db.QueryRow(ctx, sqlSumCreatorEarnings, creatorID.String()).Scan(&sum); err != nil {
		return 0, wrapStoreError(errorSubjectLedger, errorCodeSum, err)
	}
	return ledger.AmountCents(sum), nil
}

func (store *Store) CountCreatorTransactions(ctx context.Context, creatorID ledger.UserID) (int64, error) {
	var count int64
	if err := store.db.QueryRow(ctx, sqlCountCreatorTransactions, creatorID.String()).Scan(&count); err != nil {
		return 0, wrapStoreError(errorSubjectLedger, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) ListCreatorIDs(ctx context.Context) ([]ledger.UserID, error) {
	rows, err := store.db.Query(ctx, sqlListCreatorIDs)
	if err != nil {
		return nil, wrapStoreError(errorSubjectLedger, errorCodeList, err)
	}
	defer rows.Close()
	var creatorIDs []ledger.UserID
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, wrapStoreError(errorSubjectLedger, errorCodeList, err)
		}
		creatorID, err := ledger.NewCreatorID(value)
		if err != nil {
			return nil, wrapStoreError(errorSubjectLedger, errorCodeInvalid, err)
		}
		creatorIDs = append(creatorIDs, creatorID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectLedger, errorCodeList, err)
	}
	return creatorIDs, nil
}

func (store *Store) IncrementEarnings(ctx context.Context, creatorID ledger.UserID, delta ledger.AmountCents, atUnixUTC int64) error {
	if _, err := store.db.Exec(ctx, sqlIncrementEarnings, creatorID.String(), delta.Int64(), atUnixUTC); err != nil {
		return wrapStoreError(errorSubjectEarnings, errorCodeIncrement, err)
	}
	return nil
}

func (store *Store) GetEarningsAccount(ctx context.Context, creatorID ledger.UserID) (ledger.EarningsAccount, bool, error) {
	var (
		creatorValue   string
		totalValue     int64
		availableValue int64
		updatedValue   int64
	)
	err := store.db.QueryRow(ctx, sqlSelectEarningsAccount, creatorID.String()).Scan(&creatorValue, &totalValue, &availableValue, &updatedValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.EarningsAccount{}, false, nil
	}
	if err != nil {
		return ledger.EarningsAccount{}, false, wrapStoreError(errorSubjectEarnings, errorCodeGet, err)
	}
	parsedCreatorID, err := ledger.NewCreatorID(creatorValue)
	if err != nil {
		return ledger.EarningsAccount{}, false, wrapStoreError(errorSubjectEarnings, errorCodeInvalid, err)
	}
	return ledger.EarningsAccount{
		CreatorID:        parsedCreatorID,
		TotalEarnings:    ledger.AmountCents(totalValue),
		AvailableBalance: ledger.AmountCents(availableValue),
		UpdatedUnixUTC:   updatedValue,
	}, true, nil
}

func (store *Store) PutEarningsAccount(ctx context.Context, account ledger.EarningsAccount) error {
	_, err := store.db.Exec(ctx, sqlPutEarningsAccount,
		account.CreatorID.String(),
		account.TotalEarnings.Int64(),
		account.AvailableBalance.Int64(),
		account.UpdatedUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectEarnings, errorCodePut, err)
	}
	return nil
}

func (store *Store) CreateWithdrawal(ctx context.Context, withdrawal ledger.WithdrawalRequest) error {
	_, err := store.db.Exec(ctx, sqlInsertWithdrawal,
		withdrawal.WithdrawalID.String(),
		withdrawal.UserID.String(),
		withdrawal.Amount.Int64(),
		string(withdrawal.Status),
		withdrawal.PayoutDetails.String(),
		withdrawal.CreatedUnixUTC,
		withdrawal.UpdatedUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetWithdrawal(ctx context.Context, withdrawalID ledger.WithdrawalID) (ledger.WithdrawalRequest, error) {
	var (
		idValue      string
		userValue    string
		amountValue  int64
		statusValue  string
		detailsValue string
		createdValue int64
		updatedValue int64
	)
	err := store.db.QueryRow(ctx, sqlSelectWithdrawal, withdrawalID.String()).Scan(
		&idValue,
		&userValue,
		&amountValue,
		&statusValue,
		&detailsValue,
		&createdValue,
		&updatedValue,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.WithdrawalRequest{}, wrapStoreError(errorSubjectWithdrawal, errorCodeGet, ledger.ErrUnknownWithdrawal)
		}
		return ledger.WithdrawalRequest{}, wrapStoreError(errorSubjectWithdrawal, errorCodeGet, err)
	}
	parsedID, err := ledger.NewWithdrawalID(idValue)
	if err != nil {
		return ledger.WithdrawalRequest{}, wrapStoreError(errorSubjectWithdrawal, errorCodeInvalid, err)
	}
	userID, err := ledger.NewUserID(userValue)
	if err != nil {
		return ledger.WithdrawalRequest{}, wrapStoreError(errorSubjectWithdrawal, errorCodeInvalid, err)
	}
	status, err := ledger.NewWithdrawalStatus(statusValue)
	if err != nil {
		return ledger.WithdrawalRequest{}, wrapStoreError(errorSubjectWithdrawal, errorCodeInvalid, err)
	}
	payoutDetails, err := ledger.NewMetadataJSON(detailsValue)
	if err != nil {
		return ledger.WithdrawalRequest{}, wrapStoreError(errorSubjectWithdrawal, errorCodeInvalid, err)
	}
	return ledger.WithdrawalRequest{
		WithdrawalID:   parsedID,
		UserID:         userID,
		Amount:         ledger.AmountCents(amountValue),
		Status:         status,
		PayoutDetails:  payoutDetails,
		CreatedUnixUTC: createdValue,
		UpdatedUnixUTC: updatedValue,
	}, nil
}

func (store *Store) UpdateWithdrawalStatus(ctx context.Context, withdrawalID ledger.WithdrawalID, from ledger.WithdrawalStatus, to ledger.WithdrawalStatus, atUnixUTC int64) error {
	tag, err := store.db.Exec(ctx, sqlUpdateWithdrawalStatus, withdrawalID.String(), string(from), string(to), atUnixUTC)
	if err != nil {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeUpdateStatus, ledger.ErrWithdrawalClosed)
	}
	return nil
}

func (store *Store) SumWithdrawals(ctx context.Context, userID ledger.UserID, statuses []ledger.WithdrawalStatus) (ledger.AmountCents, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	var sum int64
	if err := store.db.QueryRow(ctx, sqlSumWithdrawals, userID.String(), statusStrings(statuses)).Scan(&sum); err != nil {
		return 0, wrapStoreError(errorSubjectWithdrawal, errorCodeSum, err)
	}
	return ledger.AmountCents(sum), nil
}

func (store *Store) CreateSession(ctx context.Context, session ledger.PaymentSession) error {
	_, err := store.db.Exec(ctx, sqlInsertSession,
		session.SessionID.String(),
		session.ContentID.String(),
		session.BuyerID.String(),
		session.CreatorID.String(),
		session.Amount.Int64(),
		string(session.Status),
		string(session.GatewayName),
		session.GatewayOrderID,
		session.GatewayTransactionID,
		session.TransactionID.String(),
		session.Checksum,
		session.GatewayResponse.String(),
		session.FailureReason,
		session.CreatedUnixUTC,
		session.UpdatedUnixUTC,
	)
	if isUniqueViolation(err, constraintSessionOrder) {
		return wrapStoreError(errorSubjectSession, errorCodeDuplicate, ledger.ErrDuplicateOrderID)
	}
	if err != nil {
		return wrapStoreError(errorSubjectSession, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetSession(ctx context.Context, sessionID ledger.SessionID) (ledger.PaymentSession, error) {
	return store.selectSession(ctx, sqlSelectSessionByID, sessionID.String())
}

func (store *Store) GetSessionByOrderID(ctx context.Context, gatewayOrderID string) (ledger.PaymentSession, error) {
	return store.selectSession(ctx, sqlSelectSessionByOrderID, gatewayOrderID)
}

func (store *Store) TransitionSession(ctx context.Context, sessionID ledger.SessionID, from ledger.SessionStatus, to ledger.SessionStatus, update ledger.SessionUpdate) error {
	tag, err := store.db.Exec(ctx, sqlTransitionSession,
		sessionID.String(),
		string(from),
		string(to),
		update.GatewayTransactionID,
		update.TransactionID.String(),
		update.GatewayResponse.String(),
		update.FailureReason,
		update.UpdatedUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectSession, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := store.db.QueryRow(ctx, sqlSessionExists, sessionID.String()).Scan(&exists); err != nil {
		return wrapStoreError(errorSubjectSession, errorCodeLookup, err)
	}
	if !exists {
		return wrapStoreError(errorSubjectSession, errorCodeUpdateStatus, ledger.ErrUnknownSession)
	}
	return wrapStoreError(errorSubjectSession, errorCodeUpdateStatus, ledger.ErrSessionClosed)
}

func (store *Store) selectSession(ctx context.Context, query string, value string) (ledger.PaymentSession, error) {
	var row sessionRow
	err := store.db.QueryRow(ctx, query, value).Scan(
		&row.sessionID,
		&row.contentID,
		&row.buyerID,
		&row.creatorID,
		&row.amountCents,
		&row.status,
		&row.gatewayName,
		&row.gatewayOrderID,
		&row.gatewayTransactionID,
		&row.transactionID,
		&row.checksum,
		&row.gatewayResponse,
		&row.failureReason,
		&row.createdUnixUTC,
		&row.updatedUnixUTC,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.PaymentSession{}, wrapStoreError(errorSubjectSession, errorCodeGet, ledger.ErrUnknownSession)
		}
		return ledger.PaymentSession{}, wrapStoreError(errorSubjectSession, errorCodeGet, err)
	}
	session, err := row.toLedger()
	if err != nil {
		return ledger.PaymentSession{}, wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
	}
	return session, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	return false
}

func statusStrings(statuses []ledger.WithdrawalStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	return values
}
