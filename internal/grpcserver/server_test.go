package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"testing"

	ledgerv1 "github.com/MarkoPoloResearchLab/creatorledger/api/ledger/v1"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/glebarez/sqlite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const bufferSize = 1 << 20

func fixedNow() int64 {
	return 1_700_000_000
}

func newTestClient(test *testing.T) ledgerv1.LedgerServiceClient {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(test.TempDir(), "ledger.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })
	if err := gormstore.Migrate(db); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	store := gormstore.New(db)

	withdrawals, err := ledger.NewWithdrawalAccounting(store, fixedNow)
	if err != nil {
		test.Fatalf("withdrawals: %v", err)
	}
	earnings, err := ledger.NewEarningsLedger(store, withdrawals, fixedNow)
	if err != nil {
		test.Fatalf("earnings: %v", err)
	}
	processor, err := ledger.NewProcessor(store, earnings, fixedNow)
	if err != nil {
		test.Fatalf("processor: %v", err)
	}
	internal, err := ledger.NewInternalGateway(processor)
	if err != nil {
		test.Fatalf("internal gateway: %v", err)
	}
	payments, err := ledger.NewPayments(internal)
	if err != nil {
		test.Fatalf("payments: %v", err)
	}
	service, err := NewLedgerServiceServer(Dependencies{Processor: processor, Payments: payments, Earnings: earnings, Withdrawals: withdrawals})
	if err != nil {
		test.Fatalf("server: %v", err)
	}

	listener := bufconn.Listen(bufferSize)
	server := grpc.NewServer()
	ledgerv1.RegisterLedgerServiceServer(server, service)
	go func() {
		_ = server.Serve(listener)
	}()
	test.Cleanup(server.Stop)

	connection, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		test.Fatalf("dial: %v", err)
	}
	test.Cleanup(func() { _ = connection.Close() })
	return ledgerv1.NewLedgerServiceClient(connection)
}

func requireCode(test *testing.T, err error, want codes.Code) {
	test.Helper()
	if status.Code(err) != want {
		test.Fatalf("expected %s, got %v", want, err)
	}
}

func TestPurchaseFlowOverGRPC(test *testing.T) {
	test.Parallel()
	client := newTestClient(test)
	ctx := context.Background()

	response, err := client.Purchase(ctx, &ledgerv1.PurchaseRequest{ContentId: "C1", BuyerId: "U1", CreatorId: "K1", AmountCents: 50000})
	if err != nil {
		test.Fatalf("purchase: %v", err)
	}
	if response.GetStatus() != string(ledger.OutcomeCreated) || response.GetPlatformFeeCents() != 3500 || response.GetCreatorEarningsCents() != 46500 || response.GetTransactionId() == "" {
		test.Fatalf("unexpected response %+v", response)
	}

	repeat, err := client.Purchase(ctx, &ledgerv1.PurchaseRequest{ContentId: "C1", BuyerId: "U1", CreatorId: "K1", AmountCents: 50000, PaymentMethod: "internal"})
	if err != nil {
		test.Fatalf("repeat purchase: %v", err)
	}
	if repeat.GetStatus() != string(ledger.OutcomeAlreadyPurchased) || repeat.GetTransactionId() != "" {
		test.Fatalf("unexpected repeat response %+v", repeat)
	}

	purchased, err := client.HasPurchased(ctx, &ledgerv1.HasPurchasedRequest{ContentId: "C1", BuyerId: "U1"})
	if err != nil || !purchased.GetPurchased() {
		test.Fatalf("expected purchased, got %+v (%v)", purchased, err)
	}
	notPurchased, err := client.HasPurchased(ctx, &ledgerv1.HasPurchasedRequest{ContentId: "C2", BuyerId: "U1"})
	if err != nil || notPurchased.GetPurchased() {
		test.Fatalf("expected not purchased, got %+v (%v)", notPurchased, err)
	}

	summary, err := client.GetEarningsSummary(ctx, &ledgerv1.CreatorRequest{CreatorId: "K1"})
	if err != nil {
		test.Fatalf("summary: %v", err)
	}
	if summary.GetTotalEarningsCents() != 46500 || summary.GetAvailableBalanceCents() != 46500 || summary.GetTransactionCount() != 1 {
		test.Fatalf("unexpected summary %+v", summary)
	}
}

func TestWithdrawalsOverGRPC(test *testing.T) {
	test.Parallel()
	client := newTestClient(test)
	ctx := context.Background()
	if _, err := client.Purchase(ctx, &ledgerv1.PurchaseRequest{ContentId: "C1", BuyerId: "U1", CreatorId: "K1", AmountCents: 50000}); err != nil {
		test.Fatalf("purchase: %v", err)
	}

	withdrawal, err := client.RequestWithdrawal(ctx, &ledgerv1.WithdrawalRequest{UserId: "K1", AmountCents: 40000, PayoutDetailsJson: `{"iban":"DE00"}`})
	if err != nil {
		test.Fatalf("withdrawal: %v", err)
	}
	if withdrawal.GetStatus() != string(ledger.WithdrawalStatusPending) || withdrawal.GetWithdrawalId() == "" {
		test.Fatalf("unexpected withdrawal %+v", withdrawal)
	}

	_, err = client.RequestWithdrawal(ctx, &ledgerv1.WithdrawalRequest{UserId: "K1", AmountCents: 10000})
	requireCode(test, err, codes.FailedPrecondition)

	pending, err := client.GetPendingWithdrawals(ctx, &ledgerv1.UserRequest{UserId: "K1"})
	if err != nil || pending.GetPendingCents() != 40000 {
		test.Fatalf("unexpected pending %+v (%v)", pending, err)
	}

	reconciled, err := client.Reconcile(ctx, &ledgerv1.CreatorRequest{CreatorId: "K1"})
	if err != nil {
		test.Fatalf("reconcile: %v", err)
	}
	if reconciled.GetTotalEarningsCents() != 46500 || reconciled.GetAvailableBalanceCents() != 6500 {
		test.Fatalf("unexpected reconcile %+v", reconciled)
	}
}

func TestInvalidRequestsMapToInvalidArgument(test *testing.T) {
	test.Parallel()
	client := newTestClient(test)
	ctx := context.Background()

	_, err := client.Purchase(ctx, &ledgerv1.PurchaseRequest{ContentId: "", BuyerId: "U1", CreatorId: "K1", AmountCents: 50000})
	requireCode(test, err, codes.InvalidArgument)
	_, err = client.Purchase(ctx, &ledgerv1.PurchaseRequest{ContentId: "C1", BuyerId: "U1", CreatorId: "K1", AmountCents: 0})
	requireCode(test, err, codes.InvalidArgument)
	_, err = client.Purchase(ctx, &ledgerv1.PurchaseRequest{ContentId: "C1", BuyerId: "U1", CreatorId: "K1", AmountCents: 100, PaymentMethod: "stripe"})
	requireCode(test, err, codes.InvalidArgument)
	_, err = client.HasPurchased(ctx, &ledgerv1.HasPurchasedRequest{ContentId: "C1"})
	requireCode(test, err, codes.InvalidArgument)
	_, err = client.GetEarningsSummary(ctx, &ledgerv1.CreatorRequest{})
	requireCode(test, err, codes.InvalidArgument)
	_, err = client.RequestWithdrawal(ctx, &ledgerv1.WithdrawalRequest{UserId: "K1", AmountCents: 100, PayoutDetailsJson: "{"})
	requireCode(test, err, codes.InvalidArgument)
}

func TestMapToGRPCError(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		err  error
		want codes.Code
	}{
		{err: fmt.Errorf("wrap: %w", ledger.ErrInvalidAmount), want: codes.InvalidArgument},
		{err: ledger.ErrInvalidChecksum, want: codes.PermissionDenied},
		{err: ledger.ErrInsufficientFunds, want: codes.FailedPrecondition},
		{err: ledger.WrapError("store", "session", "get", ledger.ErrUnknownSession), want: codes.NotFound},
		{err: ledger.ErrUnknownWithdrawal, want: codes.NotFound},
		{err: ledger.ErrWithdrawalClosed, want: codes.FailedPrecondition},
		{err: fmt.Errorf("%w: %w", ledger.ErrStoreWriteFailed, errors.New("disk full")), want: codes.Unavailable},
		{err: errors.New("boom"), want: codes.Internal},
	}
	for _, testCase := range testCases {
		if got := status.Code(mapToGRPCError(testCase.err)); got != testCase.want {
			test.Fatalf("mapToGRPCError(%v) = %s, want %s", testCase.err, got, testCase.want)
		}
	}
}

func TestNewLedgerServiceServerRequiresDependencies(test *testing.T) {
	test.Parallel()
	if _, err := NewLedgerServiceServer(Dependencies{}); !errors.Is(err, ledger.ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig, got %v", err)
	}
}
