package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintActivePurchase = "uniq_active_purchase"
	constraintSessionOrder   = "uniq_payment_sessions_order"
	defaultMetadataJSON      = "{}"
	pgUniqueViolationCode    = "23505"
	sqliteConstraintCode     = 19
	sqliteUniqueMarker       = "UNIQUE"
	errorOperationStore      = "store"
	errorSubjectTransaction  = "transaction"
	errorSubjectEarnings     = "earnings"
	errorSubjectWithdrawal   = "withdrawal"
	errorSubjectSession      = "session"
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
)

var sqliteConstraintColumns = map[string]string{
	constraintActivePurchase: "ledger_transactions.content_id, ledger_transactions.buyer_id",
	constraintSessionOrder:   "payment_sessions.gateway_order_id",
}

// Store implements ledger.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) InsertTransaction(ctx context.Context, transaction ledger.Transaction) error {
	model := Transaction{
		TransactionID:        transaction.TransactionID.String(),
		ContentID:            transaction.ContentID.String(),
		BuyerID:              transaction.BuyerID.String(),
		CreatorID:            transaction.CreatorID.String(),
		AmountCents:          transaction.Amount.Int64(),
		PlatformFeeCents:     transaction.PlatformFee.Int64(),
		CreatorEarningsCents: transaction.CreatorEarnings.Int64(),
		PaymentMethod:        string(transaction.PaymentMethod),
		Status:               string(transaction.Status),
		GatewayTransactionID: optionalString(transaction.GatewayTransactionID),
		IsDeleted:            transaction.IsDeleted,
		CreatedAt:            unixOrNow(transaction.CreatedUnixUTC),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintActivePurchase) {
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrDuplicatePurchase)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) FindActivePurchase(ctx context.Context, contentID ledger.ContentID, buyerID ledger.UserID) (ledger.Transaction, bool, error) {
	var model Transaction
	err := store.db.WithContext(ctx).
		Where("content_id = ? AND buyer_id = ? AND is_deleted = ?", contentID.String(), buyerID.String(), false).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Transaction{}, false, nil
	}
	if err != nil {
		return ledger.Transaction{}, false, wrapStoreError(errorSubjectTransaction, errorCodeLookup, err)
	}
	transaction, err := mapTransaction(model)
	if err != nil {
		return ledger.Transaction{}, false, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transaction, true, nil
}

func (store *Store) SumCreatorEarnings(ctx context.Context, creatorID ledger.UserID) (ledger.AmountCents, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("coalesce(sum(creator_earnings_cents),0) as total").
		Where("creator_id = ? AND status = ? AND is_deleted = ?", creatorID.String(), string(ledger.TransactionStatusCompleted), false).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectTransaction, errorCodeSum, err)
	}
	return ledger.AmountCents(sum.Total), nil
}

func (store *Store) CountCreatorTransactions(ctx context.Context, creatorID ledger.UserID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("creator_id = ? AND status = ? AND is_deleted = ?", creatorID.String(), string(ledger.TransactionStatusCompleted), false).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectTransaction, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) ListCreatorIDs(ctx context.Context) ([]ledger.UserID, error) {
	var rawIDs []string
	err := store.db.WithContext(ctx).
		Raw("SELECT creator_id FROM ledger_transactions UNION SELECT creator_id FROM earnings_accounts ORDER BY creator_id").
		Scan(&rawIDs).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	creatorIDs := make([]ledger.UserID, 0, len(rawIDs))
	for _, rawID := range rawIDs {
		creatorID, err := ledger.NewUserID(rawID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		creatorIDs = append(creatorIDs, creatorID)
	}
	return creatorIDs, nil
}

func (store *Store) IncrementEarnings(ctx context.Context, creatorID ledger.UserID, delta ledger.AmountCents, atUnixUTC int64) error {
	model := EarningsAccount{
		CreatorID:             creatorID.String(),
		TotalEarningsCents:    delta.Int64(),
		AvailableBalanceCents: delta.Int64(),
		UpdatedAt:             unixOrNow(atUnixUTC),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "creator_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_earnings_cents":    clause.Expr{SQL: "earnings_accounts.total_earnings_cents + excluded.total_earnings_cents"},
				"available_balance_cents": clause.Expr{SQL: "earnings_accounts.available_balance_cents + excluded.available_balance_cents"},
				"updated_at":              clause.Expr{SQL: "excluded.updated_at"},
			}),
		}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectEarnings, errorCodeIncrement, err)
	}
	return nil
}

func (store *Store) GetEarningsAccount(ctx context.Context, creatorID ledger.UserID) (ledger.EarningsAccount, bool, error) {
	var model EarningsAccount
	err := store.db.WithContext(ctx).Where("creator_id = ?", creatorID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.EarningsAccount{}, false, nil
	}
	if err != nil {
		return ledger.EarningsAccount{}, false, wrapStoreError(errorSubjectEarnings, errorCodeGet, err)
	}
	return ledger.EarningsAccount{
		CreatorID:        creatorID,
		TotalEarnings:    ledger.AmountCents(model.TotalEarningsCents),
		AvailableBalance: ledger.AmountCents(model.AvailableBalanceCents),
		UpdatedUnixUTC:   model.UpdatedAt.Unix(),
	}, true, nil
}

func (store *Store) PutEarningsAccount(ctx context.Context, account ledger.EarningsAccount) error {
	model := EarningsAccount{
		CreatorID:             account.CreatorID.String(),
		TotalEarningsCents:    account.TotalEarnings.Int64(),
		AvailableBalanceCents: account.AvailableBalance.Int64(),
		UpdatedAt:             unixOrNow(account.UpdatedUnixUTC),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "creator_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_earnings_cents", "available_balance_cents", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectEarnings, errorCodePut, err)
	}
	return nil
}

func (store *Store) CreateWithdrawal(ctx context.Context, withdrawal ledger.WithdrawalRequest) error {
	model := Withdrawal{
		WithdrawalID:  withdrawal.WithdrawalID.String(),
		UserID:        withdrawal.UserID.String(),
		AmountCents:   withdrawal.Amount.Int64(),
		Status:        string(withdrawal.Status),
		PayoutDetails: datatypesJSON(withdrawal.PayoutDetails.String()),
		CreatedAt:     unixOrNow(withdrawal.CreatedUnixUTC),
		UpdatedAt:     unixOrNow(withdrawal.UpdatedUnixUTC),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetWithdrawal(ctx context.Context, withdrawalID ledger.WithdrawalID) (ledger.WithdrawalRequest, error) {
	var model Withdrawal
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("withdrawal_id = ?", withdrawalID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.WithdrawalRequest{}, wrapStoreError(errorSubjectWithdrawal, errorCodeGet, ledger.ErrUnknownWithdrawal)
		}
		return ledger.WithdrawalRequest{}, wrapStoreError(errorSubjectWithdrawal, errorCodeGet, err)
	}
	withdrawal, err := mapWithdrawal(model)
	if err != nil {
		return ledger.WithdrawalRequest{}, wrapStoreError(errorSubjectWithdrawal, errorCodeInvalid, err)
	}
	return withdrawal, nil
}

func (store *Store) UpdateWithdrawalStatus(ctx context.Context, withdrawalID ledger.WithdrawalID, from ledger.WithdrawalStatus, to ledger.WithdrawalStatus, atUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&Withdrawal{}).
		Where("withdrawal_id = ? AND status = ?", withdrawalID.String(), string(from)).
		Updates(map[string]interface{}{"status": string(to), "updated_at": unixOrNow(atUnixUTC)})
	if result.Error != nil {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectWithdrawal, errorCodeUpdateStatus, ledger.ErrWithdrawalClosed)
	}
	return nil
}

func (store *Store) SumWithdrawals(ctx context.Context, userID ledger.UserID, statuses []ledger.WithdrawalStatus) (ledger.AmountCents, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	statusValues := make([]string, 0, len(statuses))
	for _, status := range statuses {
		statusValues = append(statusValues, string(status))
	}
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&Withdrawal{}).
		Select("coalesce(sum(amount_cents),0) as total").
		Where("user_id = ? AND status IN ?", userID.String(), statusValues).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectWithdrawal, errorCodeSum, err)
	}
	return ledger.AmountCents(sum.Total), nil
}

func (store *Store) CreateSession(ctx context.Context, session ledger.PaymentSession) error {
	model := PaymentSession{
		SessionID:            session.SessionID.String(),
		ContentID:            session.ContentID.String(),
		BuyerID:              session.BuyerID.String(),
		CreatorID:            session.CreatorID.String(),
		AmountCents:          session.Amount.Int64(),
		Status:               string(session.Status),
		GatewayName:          string(session.GatewayName),
		GatewayOrderID:       session.GatewayOrderID,
		GatewayTransactionID: optionalString(session.GatewayTransactionID),
		TransactionID:        optionalString(session.TransactionID.String()),
		Checksum:             session.Checksum,
		GatewayResponse:      datatypesJSON(session.GatewayResponse.String()),
		FailureReason:        session.FailureReason,
		CreatedAt:            unixOrNow(session.CreatedUnixUTC),
		UpdatedAt:            unixOrNow(session.UpdatedUnixUTC),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintSessionOrder) {
		return wrapStoreError(errorSubjectSession, errorCodeDuplicate, ledger.ErrDuplicateOrderID)
	}
	if err != nil {
		return wrapStoreError(errorSubjectSession, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetSession(ctx context.Context, sessionID ledger.SessionID) (ledger.PaymentSession, error) {
	return store.takeSession(ctx, "session_id = ?", sessionID.String())
}

func (store *Store) GetSessionByOrderID(ctx context.Context, gatewayOrderID string) (ledger.PaymentSession, error) {
	return store.takeSession(ctx, "gateway_order_id = ?", gatewayOrderID)
}

func (store *Store) TransitionSession(ctx context.Context, sessionID ledger.SessionID, from ledger.SessionStatus, to ledger.SessionStatus, update ledger.SessionUpdate) error {
	result := store.db.WithContext(ctx).
		Model(&PaymentSession{}).
		Where("session_id = ? AND status = ?", sessionID.String(), string(from)).
		Updates(map[string]interface{}{
			"status":                 string(to),
			"gateway_transaction_id": optionalString(update.GatewayTransactionID),
			"transaction_id":         optionalString(update.TransactionID.String()),
			"gateway_response":       datatypesJSON(update.GatewayResponse.String()),
			"failure_reason":         update.FailureReason,
			"updated_at":             unixOrNow(update.UpdatedUnixUTC),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectSession, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := store.db.WithContext(ctx).Model(&PaymentSession{}).Where("session_id = ?", sessionID.String()).Count(&count).Error; err != nil {
		return wrapStoreError(errorSubjectSession, errorCodeUpdateStatus, err)
	}
	if count == 0 {
		return wrapStoreError(errorSubjectSession, errorCodeUpdateStatus, ledger.ErrUnknownSession)
	}
	return wrapStoreError(errorSubjectSession, errorCodeUpdateStatus, ledger.ErrSessionClosed)
}

func (store *Store) takeSession(ctx context.Context, condition string, value string) (ledger.PaymentSession, error) {
	var model PaymentSession
	err := store.db.WithContext(ctx).Where(condition, value).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.PaymentSession{}, wrapStoreError(errorSubjectSession, errorCodeGet, ledger.ErrUnknownSession)
		}
		return ledger.PaymentSession{}, wrapStoreError(errorSubjectSession, errorCodeGet, err)
	}
	session, err := mapSession(model)
	if err != nil {
		return ledger.PaymentSession{}, wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
	}
	return session, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func mapTransaction(row Transaction) (ledger.Transaction, error) {
	transactionID, err := ledger.NewTransactionID(row.TransactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	contentID, err := ledger.NewContentID(row.ContentID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	buyerID, err := ledger.NewUserID(row.BuyerID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	creatorID, err := ledger.NewCreatorID(row.CreatorID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	method, err := ledger.NewPaymentMethod(row.PaymentMethod)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		TransactionID:        transactionID,
		ContentID:            contentID,
		BuyerID:              buyerID,
		CreatorID:            creatorID,
		Amount:               ledger.AmountCents(row.AmountCents),
		PlatformFee:          ledger.AmountCents(row.PlatformFeeCents),
		CreatorEarnings:      ledger.AmountCents(row.CreatorEarningsCents),
		PaymentMethod:        method,
		Status:               ledger.TransactionStatus(row.Status),
		GatewayTransactionID: stringOrEmpty(row.GatewayTransactionID),
		IsDeleted:            row.IsDeleted,
		CreatedUnixUTC:       row.CreatedAt.Unix(),
	}, nil
}

func mapWithdrawal(row Withdrawal) (ledger.WithdrawalRequest, error) {
	withdrawalID, err := ledger.NewWithdrawalID(row.WithdrawalID)
	if err != nil {
		return ledger.WithdrawalRequest{}, err
	}
	userID, err := ledger.NewUserID(row.UserID)
	if err != nil {
		return ledger.WithdrawalRequest{}, err
	}
	status, err := ledger.NewWithdrawalStatus(row.Status)
	if err != nil {
		return ledger.WithdrawalRequest{}, err
	}
	payoutDetails, err := ledger.NewMetadataJSON(string(row.PayoutDetails))
	if err != nil {
		return ledger.WithdrawalRequest{}, err
	}
	return ledger.WithdrawalRequest{
		WithdrawalID:   withdrawalID,
		UserID:         userID,
		Amount:         ledger.AmountCents(row.AmountCents),
		Status:         status,
		PayoutDetails:  payoutDetails,
		CreatedUnixUTC: row.CreatedAt.Unix(),
		UpdatedUnixUTC: row.UpdatedAt.Unix(),
	}, nil
}

func mapSession(row PaymentSession) (ledger.PaymentSession, error) {
	sessionID, err := ledger.NewSessionID(row.SessionID)
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	contentID, err := ledger.NewContentID(row.ContentID)
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	buyerID, err := ledger.NewUserID(row.BuyerID)
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	creatorID, err := ledger.NewCreatorID(row.CreatorID)
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	gatewayName, err := ledger.NewPaymentMethod(row.GatewayName)
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	response, err := ledger.NewMetadataJSON(string(row.GatewayResponse))
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	var transactionID ledger.TransactionID
	if row.TransactionID != nil && *row.TransactionID != "" {
		transactionID, err = ledger.NewTransactionID(*row.TransactionID)
		if err != nil {
			return ledger.PaymentSession{}, err
		}
	}
	return ledger.PaymentSession{
		SessionID:            sessionID,
		ContentID:            contentID,
		BuyerID:              buyerID,
		CreatorID:            creatorID,
		Amount:               ledger.AmountCents(row.AmountCents),
		Status:               ledger.SessionStatus(row.Status),
		GatewayName:          gatewayName,
		GatewayOrderID:       row.GatewayOrderID,
		GatewayTransactionID: stringOrEmpty(row.GatewayTransactionID),
		TransactionID:        transactionID,
		Checksum:             row.Checksum,
		GatewayResponse:      response,
		FailureReason:        row.FailureReason,
		CreatedUnixUTC:       row.CreatedAt.Unix(),
		UpdatedUnixUTC:       row.UpdatedAt.Unix(),
	}, nil
}

func unixOrNow(unixUTC int64) time.Time {
	if unixUTC == 0 {
		return time.Now().UTC()
	}
	return time.Unix(unixUTC, 0).UTC()
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

// isUniqueViolation reports whether err is a violation of the named unique constraint. Postgres
// reports the constraint name; SQLite only names the indexed columns.
func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		columns, known := sqliteConstraintColumns[constraint]
		return known && sqliteErr.Code()&0xFF == sqliteConstraintCode && strings.Contains(sqliteErr.Error(), sqliteUniqueMarker+" constraint failed: "+columns)
	}
	return false
}
