package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the ledger components.
var (
	ErrInvalidContentID        = errors.New("invalid content id")
	ErrInvalidUserID           = errors.New("invalid user id")
	ErrInvalidCreatorID        = errors.New("invalid creator id")
	ErrInvalidTransactionID    = errors.New("invalid transaction id")
	ErrInvalidSessionID        = errors.New("invalid session id")
	ErrInvalidWithdrawalID     = errors.New("invalid withdrawal id")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidFeePercent       = errors.New("invalid fee percent")
	ErrInvalidPaymentMethod    = errors.New("invalid payment method")
	ErrInvalidMetadataJSON     = errors.New("invalid metadata json")
	ErrInvalidWithdrawalStatus = errors.New("invalid withdrawal status")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
	ErrDuplicatePurchase       = errors.New("duplicate purchase")
	ErrDuplicateOrderID        = errors.New("duplicate gateway order id")
	ErrStoreWriteFailed        = errors.New("store write failed")
	ErrLedgerUpdateFailed      = errors.New("ledger update failed")
	ErrInvalidChecksum         = errors.New("invalid checksum")
	ErrCallbackMismatch        = errors.New("callback does not match session")
	ErrUnknownSession          = errors.New("unknown payment session")
	ErrSessionClosed           = errors.New("payment session closed")
	ErrUnknownWithdrawal       = errors.New("unknown withdrawal")
	ErrWithdrawalClosed        = errors.New("withdrawal closed")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrUnsupportedMethod       = errors.New("unsupported payment method")
)

// ErrorKind is the stable classification reported with failed outcomes.
type ErrorKind string

const (
	ErrorKindNone               ErrorKind = ""
	ErrorKindInvalidArgument    ErrorKind = "invalid_argument"
	ErrorKindInvalidChecksum    ErrorKind = "invalid_checksum"
	ErrorKindStoreWriteFailed   ErrorKind = "store_write_failed"
	ErrorKindLedgerUpdateFailed ErrorKind = "ledger_update_failed"
	ErrorKindInsufficientFunds  ErrorKind = "insufficient_funds"
	ErrorKindNotFound           ErrorKind = "not_found"
	ErrorKindConflict           ErrorKind = "conflict"
	ErrorKindInternal           ErrorKind = "internal"
)

var invalidArgumentErrors = []error{
	ErrInvalidContentID,
	ErrInvalidUserID,
	ErrInvalidCreatorID,
	ErrInvalidTransactionID,
	ErrInvalidSessionID,
	ErrInvalidWithdrawalID,
	ErrInvalidAmount,
	ErrInvalidFeePercent,
	ErrInvalidPaymentMethod,
	ErrInvalidMetadataJSON,
	ErrInvalidWithdrawalStatus,
	ErrUnsupportedMethod,
	ErrCallbackMismatch,
}

// ClassifyError maps an error returned by a ledger component to its ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	for _, candidate := range invalidArgumentErrors {
		if errors.Is(err, candidate) {
			return ErrorKindInvalidArgument
		}
	}
	switch {
	case errors.Is(err, ErrInvalidChecksum):
		return ErrorKindInvalidChecksum
	case errors.Is(err, ErrStoreWriteFailed):
		return ErrorKindStoreWriteFailed
	case errors.Is(err, ErrLedgerUpdateFailed):
		return ErrorKindLedgerUpdateFailed
	case errors.Is(err, ErrInsufficientFunds):
		return ErrorKindInsufficientFunds
	case errors.Is(err, ErrUnknownSession), errors.Is(err, ErrUnknownWithdrawal):
		return ErrorKindNotFound
	case errors.Is(err, ErrSessionClosed), errors.Is(err, ErrWithdrawalClosed):
		return ErrorKindConflict
	default:
		return ErrorKindInternal
	}
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
