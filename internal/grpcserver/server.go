package grpcserver

import (
	"context"
	"errors"
	"fmt"

	ledgerv1 "github.com/MarkoPoloResearchLab/creatorledger/api/ledger/v1"
	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	errorInvalidArgument   = "invalid_argument"
	errorInvalidChecksum   = "invalid_checksum"
	errorInsufficientFunds = "insufficient_funds"
	errorUnknownSession    = "unknown_session"
	errorUnknownWithdrawal = "unknown_withdrawal"
	errorSessionClosed     = "session_closed"
	errorWithdrawalClosed  = "withdrawal_closed"
	errorStoreWriteFailed  = "store_write_failed"
	errorUnsupportedMethod = "unsupported_payment_method"
)

// Dependencies groups the ledger components exposed over gRPC.
type Dependencies struct {
	Processor   *ledger.Processor
	Payments    *ledger.Payments
	Earnings    *ledger.EarningsLedger
	Withdrawals *ledger.WithdrawalAccounting
}

// LedgerServiceServer exposes the creator ledger over gRPC. Buyer and creator ids are trusted
// fields supplied by the calling service.
type LedgerServiceServer struct {
	ledgerv1.UnimplementedLedgerServiceServer
	processor   *ledger.Processor
	payments    *ledger.Payments
	earnings    *ledger.EarningsLedger
	withdrawals *ledger.WithdrawalAccounting
}

// NewLedgerServiceServer constructs a gRPC server for the ledger components.
func NewLedgerServiceServer(dependencies Dependencies) (*LedgerServiceServer, error) {
	if dependencies.Processor == nil || dependencies.Payments == nil || dependencies.Earnings == nil || dependencies.Withdrawals == nil {
		return nil, fmt.Errorf("%w: grpc server dependencies are incomplete", ledger.ErrInvalidServiceConfig)
	}
	return &LedgerServiceServer{
		processor:   dependencies.Processor,
		payments:    dependencies.Payments,
		earnings:    dependencies.Earnings,
		withdrawals: dependencies.Withdrawals,
	}, nil
}

func (service *LedgerServiceServer) Purchase(ctx context.Context, request *ledgerv1.PurchaseRequest) (*ledgerv1.PurchaseResponse, error) {
	purchaseRequest, err := ledger.NewPurchaseRequest(request.GetContentId(), request.GetBuyerId(), request.GetCreatorId(), ledger.AmountCents(request.GetAmountCents()))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	method := ledger.PaymentMethodInternal
	if request.GetPaymentMethod() != "" {
		method, err = ledger.NewPaymentMethod(request.GetPaymentMethod())
		if err != nil {
			return nil, mapToGRPCError(err)
		}
	}
	result, err := service.payments.Pay(ctx, method, purchaseRequest)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return purchaseResponse(result), nil
}

func (service *LedgerServiceServer) HasPurchased(ctx context.Context, request *ledgerv1.HasPurchasedRequest) (*ledgerv1.HasPurchasedResponse, error) {
	contentID, err := ledger.NewContentID(request.GetContentId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	buyerID, err := ledger.NewUserID(request.GetBuyerId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	purchased, err := service.processor.HasPurchased(ctx, contentID, buyerID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return &ledgerv1.HasPurchasedResponse{Purchased: purchased}, nil
}

func (service *LedgerServiceServer) GetEarningsSummary(ctx context.Context, request *ledgerv1.CreatorRequest) (*ledgerv1.EarningsSummaryResponse, error) {
	creatorID, err := ledger.NewCreatorID(request.GetCreatorId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	summary, err := service.earnings.Summary(ctx, creatorID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return &ledgerv1.EarningsSummaryResponse{
		TotalEarningsCents:      summary.TotalEarnings.Int64(),
		AvailableBalanceCents:   summary.AvailableBalance.Int64(),
		PendingWithdrawalsCents: summary.PendingWithdrawals.Int64(),
		TransactionCount:        summary.TransactionCount,
	}, nil
}

func (service *LedgerServiceServer) Reconcile(ctx context.Context, request *ledgerv1.CreatorRequest) (*ledgerv1.ReconcileResponse, error) {
	creatorID, err := ledger.NewCreatorID(request.GetCreatorId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	account, err := service.earnings.Reconcile(ctx, creatorID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return &ledgerv1.ReconcileResponse{
		TotalEarningsCents:    account.TotalEarnings.Int64(),
		AvailableBalanceCents: account.AvailableBalance.Int64(),
	}, nil
}

func (service *LedgerServiceServer) RequestWithdrawal(ctx context.Context, request *ledgerv1.WithdrawalRequest) (*ledgerv1.WithdrawalResponse, error) {
	userID, err := ledger.NewUserID(request.GetUserId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	amount, err := ledger.NewAmountCents(request.GetAmountCents())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	payoutDetails, err := ledger.NewMetadataJSON(request.GetPayoutDetailsJson())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	withdrawal, err := service.withdrawals.Request(ctx, userID, amount, payoutDetails)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return &ledgerv1.WithdrawalResponse{
		WithdrawalId:   withdrawal.WithdrawalID.String(),
		Status:         string(withdrawal.Status),
		AmountCents:    withdrawal.Amount.Int64(),
		CreatedUnixUtc: withdrawal.CreatedUnixUTC,
	}, nil
}

func (service *LedgerServiceServer) GetPendingWithdrawals(ctx context.Context, request *ledgerv1.UserRequest) (*ledgerv1.PendingWithdrawalsResponse, error) {
	userID, err := ledger.NewUserID(request.GetUserId())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	pending, err := service.withdrawals.PendingTotal(ctx, userID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return &ledgerv1.PendingWithdrawalsResponse{PendingCents: pending.Int64()}, nil
}

func purchaseResponse(result ledger.PaymentResult) *ledgerv1.PurchaseResponse {
	response := &ledgerv1.PurchaseResponse{
		Status:               string(result.Outcome.Status),
		TransactionId:        result.Outcome.TransactionID.String(),
		PlatformFeeCents:     result.Outcome.PlatformFee.Int64(),
		CreatorEarningsCents: result.Outcome.CreatorEarnings.Int64(),
		ErrorKind:            string(result.Outcome.ErrorKind),
		LedgerPending:        result.Outcome.LedgerPending,
	}
	if result.Redirect != nil {
		response.Redirect = &ledgerv1.PaymentRedirect{
			SessionId:  result.Redirect.SessionID.String(),
			TargetUrl:  result.Redirect.TargetURL,
			FormParams: result.Redirect.FormParams,
		}
	}
	return response
}

func mapToGRPCError(source error) error {
	if errors.Is(source, ledger.ErrUnsupportedMethod) {
		return status.Error(codes.InvalidArgument, errorUnsupportedMethod)
	}
	if errors.Is(source, ledger.ErrUnknownSession) {
		return status.Error(codes.NotFound, errorUnknownSession)
	}
	if errors.Is(source, ledger.ErrUnknownWithdrawal) {
		return status.Error(codes.NotFound, errorUnknownWithdrawal)
	}
	if errors.Is(source, ledger.ErrSessionClosed) {
		return status.Error(codes.FailedPrecondition, errorSessionClosed)
	}
	if errors.Is(source, ledger.ErrWithdrawalClosed) {
		return status.Error(codes.FailedPrecondition, errorWithdrawalClosed)
	}
	switch ledger.ClassifyError(source) {
	case ledger.ErrorKindInvalidArgument:
		return status.Error(codes.InvalidArgument, fmt.Sprintf("%s: %v", errorInvalidArgument, source))
	case ledger.ErrorKindInvalidChecksum:
		return status.Error(codes.PermissionDenied, errorInvalidChecksum)
	case ledger.ErrorKindInsufficientFunds:
		return status.Error(codes.FailedPrecondition, errorInsufficientFunds)
	case ledger.ErrorKindStoreWriteFailed:
		return status.Error(codes.Unavailable, errorStoreWriteFailed)
	}
	return status.Error(codes.Internal, source.Error())
}
