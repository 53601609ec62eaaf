package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentID identifies a paywalled content item.
type ContentID struct {
	value string
}

// UserID identifies a buyer, a creator, or a withdrawal owner.
type UserID struct {
	value string
}

// TransactionID identifies a stored purchase transaction.
type TransactionID struct {
	value string
}

// SessionID identifies an external payment session.
type SessionID struct {
	value string
}

// WithdrawalID identifies a withdrawal request.
type WithdrawalID struct {
	value string
}

// MetadataJSON stores opaque JSON such as payout details or gateway responses.
type MetadataJSON struct {
	value string
}

// NewContentID validates and normalizes a content id.
func NewContentID(raw string) (ContentID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ContentID{}, fmt.Errorf("%w: empty value", ErrInvalidContentID)
	}
	return ContentID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ContentID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id ContentID) IsZero() bool {
	return id.value == ""
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// NewCreatorID validates a creator id; creators are users, but the error names the role.
func NewCreatorID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidCreatorID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id UserID) IsZero() bool {
	return id.value == ""
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransactionID{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	return TransactionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TransactionID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id TransactionID) IsZero() bool {
	return id.value == ""
}

// NewSessionID validates and normalizes a session id.
func NewSessionID(raw string) (SessionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SessionID{}, fmt.Errorf("%w: empty value", ErrInvalidSessionID)
	}
	return SessionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id SessionID) String() string {
	return id.value
}

// NewWithdrawalID validates and normalizes a withdrawal id.
func NewWithdrawalID(raw string) (WithdrawalID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return WithdrawalID{}, fmt.Errorf("%w: empty value", ErrInvalidWithdrawalID)
	}
	return WithdrawalID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id WithdrawalID) String() string {
	return id.value
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return "{}"
	}
	return metadata.value
}

// PaymentMethod names how a purchase was paid: "internal" or an external gateway name.
type PaymentMethod string

// PaymentMethodInternal settles a purchase synchronously against the platform.
const PaymentMethodInternal PaymentMethod = "internal"

// NewPaymentMethod validates and normalizes a payment method name.
func NewPaymentMethod(raw string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidPaymentMethod)
	}
	return PaymentMethod(normalized), nil
}

// TransactionStatus defines the stored transaction state.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// WithdrawalStatus defines withdrawal lifecycle.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
)

// NewWithdrawalStatus parses a withdrawal status.
func NewWithdrawalStatus(raw string) (WithdrawalStatus, error) {
	status := WithdrawalStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case WithdrawalStatusPending, WithdrawalStatusProcessing, WithdrawalStatusCompleted, WithdrawalStatusRejected, WithdrawalStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWithdrawalStatus, raw)
	}
}

// HoldingWithdrawalStatuses reduce the available balance.
var HoldingWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusPending,
	WithdrawalStatusProcessing,
	WithdrawalStatusCompleted,
}

// PendingWithdrawalStatuses are holds that have not been paid out yet.
var PendingWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusPending,
	WithdrawalStatusProcessing,
}

// SessionStatus defines external payment session lifecycle.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (status SessionStatus) IsTerminal() bool {
	return status == SessionStatusCompleted || status == SessionStatusFailed
}

// Transaction is an immutable purchase record.
type Transaction struct {
	TransactionID        TransactionID
	ContentID            ContentID
	BuyerID              UserID
	CreatorID            UserID
	Amount               AmountCents
	PlatformFee          AmountCents
	CreatorEarnings      AmountCents
	PaymentMethod        PaymentMethod
	Status               TransactionStatus
	GatewayTransactionID string
	IsDeleted            bool
	CreatedUnixUTC       int64
}

// EarningsAccount is the per-creator running balance.
type EarningsAccount struct {
	CreatorID        UserID
	TotalEarnings    AmountCents
	AvailableBalance AmountCents
	UpdatedUnixUTC   int64
}

// EarningsSummary is the read model returned to creators.
type EarningsSummary struct {
	TotalEarnings      AmountCents
	AvailableBalance   AmountCents
	PendingWithdrawals AmountCents
	TransactionCount   int64
}

// WithdrawalRequest is a creator's request to pay out part of the available balance.
type WithdrawalRequest struct {
	WithdrawalID   WithdrawalID
	UserID         UserID
	Amount         AmountCents
	Status         WithdrawalStatus
	PayoutDetails  MetadataJSON
	CreatedUnixUTC int64
	UpdatedUnixUTC int64
}

// PaymentSession tracks an external gateway payment between initiation and callback.
type PaymentSession struct {
	SessionID            SessionID
	ContentID            ContentID
	BuyerID              UserID
	CreatorID            UserID
	Amount               AmountCents
	Status               SessionStatus
	GatewayName          PaymentMethod
	GatewayOrderID       string
	GatewayTransactionID string
	TransactionID        TransactionID
	Checksum             string
	GatewayResponse      MetadataJSON
	FailureReason        string
	CreatedUnixUTC       int64
	UpdatedUnixUTC       int64
}

// SessionUpdate carries the fields written alongside a session status transition.
type SessionUpdate struct {
	GatewayTransactionID string
	TransactionID        TransactionID
	GatewayResponse      MetadataJSON
	FailureReason        string
	UpdatedUnixUTC       int64
}

// PurchaseRequest is the validated input of a purchase.
type PurchaseRequest struct {
	ContentID            ContentID
	BuyerID              UserID
	CreatorID            UserID
	Amount               AmountCents
	PaymentMethod        PaymentMethod
	GatewayTransactionID string
}

// NewPurchaseRequest validates raw purchase inputs. The method defaults to internal.
func NewPurchaseRequest(contentID string, buyerID string, creatorID string, amount AmountCents) (PurchaseRequest, error) {
	content, err := NewContentID(contentID)
	if err != nil {
		return PurchaseRequest{}, err
	}
	buyer, err := NewUserID(buyerID)
	if err != nil {
		return PurchaseRequest{}, err
	}
	creator, err := NewCreatorID(creatorID)
	if err != nil {
		return PurchaseRequest{}, err
	}
	if _, err := NewAmountCents(amount.Int64()); err != nil {
		return PurchaseRequest{}, err
	}
	return PurchaseRequest{
		ContentID:     content,
		BuyerID:       buyer,
		CreatorID:     creator,
		Amount:        amount,
		PaymentMethod: PaymentMethodInternal,
	}, nil
}

// Validate rejects zero-valued identifiers and non-positive amounts.
func (request PurchaseRequest) Validate() error {
	if request.ContentID.IsZero() {
		return fmt.Errorf("%w: empty value", ErrInvalidContentID)
	}
	if request.BuyerID.IsZero() {
		return fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	if request.CreatorID.IsZero() {
		return fmt.Errorf("%w: empty value", ErrInvalidCreatorID)
	}
	if request.Amount <= 0 {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return nil
}

// PurchaseKey returns the cache and coalescing key of (content, buyer).
func (request PurchaseRequest) PurchaseKey() PurchaseKey {
	return NewPurchaseKey(request.ContentID, request.BuyerID)
}

// PurchaseKey identifies one buyer's access to one content item.
type PurchaseKey string

// NewPurchaseKey builds the key of (content, buyer).
func NewPurchaseKey(contentID ContentID, buyerID UserID) PurchaseKey {
	return PurchaseKey(contentID.String() + purchaseKeyDelimiter + buyerID.String())
}

// String returns the key value.
func (key PurchaseKey) String() string {
	return string(key)
}
