package ledgerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "ledger.v1.LedgerService"

const (
	LedgerService_Purchase_FullMethodName              = "/ledger.v1.LedgerService/Purchase"
	LedgerService_HasPurchased_FullMethodName          = "/ledger.v1.LedgerService/HasPurchased"
	LedgerService_GetEarningsSummary_FullMethodName    = "/ledger.v1.LedgerService/GetEarningsSummary"
	LedgerService_Reconcile_FullMethodName             = "/ledger.v1.LedgerService/Reconcile"
	LedgerService_RequestWithdrawal_FullMethodName     = "/ledger.v1.LedgerService/RequestWithdrawal"
	LedgerService_GetPendingWithdrawals_FullMethodName = "/ledger.v1.LedgerService/GetPendingWithdrawals"
)

// LedgerServiceClient is the client API for the ledger.v1.LedgerService service.
type LedgerServiceClient interface {
	Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*PurchaseResponse, error)
	HasPurchased(ctx context.Context, in *HasPurchasedRequest, opts ...grpc.CallOption) (*HasPurchasedResponse, error)
	GetEarningsSummary(ctx context.Context, in *CreatorRequest, opts ...grpc.CallOption) (*EarningsSummaryResponse, error)
	Reconcile(ctx context.Context, in *CreatorRequest, opts ...grpc.CallOption) (*ReconcileResponse, error)
	RequestWithdrawal(ctx context.Context, in *WithdrawalRequest, opts ...grpc.CallOption) (*WithdrawalResponse, error)
	GetPendingWithdrawals(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*PendingWithdrawalsResponse, error)
}

type ledgerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLedgerServiceClient returns a client that always selects the JSON codec.
func NewLedgerServiceClient(cc grpc.ClientConnInterface) LedgerServiceClient {
	return &ledgerServiceClient{cc: cc}
}

func (c *ledgerServiceClient) invoke(ctx context.Context, method string, in any, out any, opts []grpc.CallOption) error {
	callOptions := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, callOptions...)
}

func (c *ledgerServiceClient) Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*PurchaseResponse, error) {
	out := new(PurchaseResponse)
	if err := c.invoke(ctx, LedgerService_Purchase_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) HasPurchased(ctx context.Context, in *HasPurchasedRequest, opts ...grpc.CallOption) (*HasPurchasedResponse, error) {
	out := new(HasPurchasedResponse)
	if err := c.invoke(ctx, LedgerService_HasPurchased_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) GetEarningsSummary(ctx context.Context, in *CreatorRequest, opts ...grpc.CallOption) (*EarningsSummaryResponse, error) {
	out := new(EarningsSummaryResponse)
	if err := c.invoke(ctx, LedgerService_GetEarningsSummary_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) Reconcile(ctx context.Context, in *CreatorRequest, opts ...grpc.CallOption) (*ReconcileResponse, error) {
	out := new(ReconcileResponse)
	if err := c.invoke(ctx, LedgerService_Reconcile_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) RequestWithdrawal(ctx context.Context, in *WithdrawalRequest, opts ...grpc.CallOption) (*WithdrawalResponse, error) {
	out := new(WithdrawalResponse)
	if err := c.invoke(ctx, LedgerService_RequestWithdrawal_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) GetPendingWithdrawals(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*PendingWithdrawalsResponse, error) {
	out := new(PendingWithdrawalsResponse)
	if err := c.invoke(ctx, LedgerService_GetPendingWithdrawals_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// LedgerServiceServer is the server API for the ledger.v1.LedgerService service.
// Implementations must embed UnimplementedLedgerServiceServer.
type LedgerServiceServer interface {
	Purchase(context.Context, *PurchaseRequest) (*PurchaseResponse, error)
	HasPurchased(context.Context, *HasPurchasedRequest) (*HasPurchasedResponse, error)
	GetEarningsSummary(context.Context, *CreatorRequest) (*EarningsSummaryResponse, error)
	Reconcile(context.Context, *CreatorRequest) (*ReconcileResponse, error)
	RequestWithdrawal(context.Context, *WithdrawalRequest) (*WithdrawalResponse, error)
	GetPendingWithdrawals(context.Context, *UserRequest) (*PendingWithdrawalsResponse, error)
	mustEmbedUnimplementedLedgerServiceServer()
}

// UnimplementedLedgerServiceServer answers every method with codes.Unimplemented.
type UnimplementedLedgerServiceServer struct{}

func (UnimplementedLedgerServiceServer) Purchase(context.Context, *PurchaseRequest) (*PurchaseResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Purchase not implemented")
}

func (UnimplementedLedgerServiceServer) HasPurchased(context.Context, *HasPurchasedRequest) (*HasPurchasedResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method HasPurchased not implemented")
}

func (UnimplementedLedgerServiceServer) GetEarningsSummary(context.Context, *CreatorRequest) (*EarningsSummaryResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetEarningsSummary not implemented")
}

func (UnimplementedLedgerServiceServer) Reconcile(context.Context, *CreatorRequest) (*ReconcileResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Reconcile not implemented")
}

func (UnimplementedLedgerServiceServer) RequestWithdrawal(context.Context, *WithdrawalRequest) (*WithdrawalResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RequestWithdrawal not implemented")
}

func (UnimplementedLedgerServiceServer) GetPendingWithdrawals(context.Context, *UserRequest) (*PendingWithdrawalsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetPendingWithdrawals not implemented")
}

func (UnimplementedLedgerServiceServer) mustEmbedUnimplementedLedgerServiceServer() {}

// RegisterLedgerServiceServer registers srv on registrar.
func RegisterLedgerServiceServer(registrar grpc.ServiceRegistrar, srv LedgerServiceServer) {
	registrar.RegisterService(&LedgerService_ServiceDesc, srv)
}

func _LedgerService_Purchase_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PurchaseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).Purchase(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LedgerService_Purchase_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).Purchase(ctx, req.(*PurchaseRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerService_HasPurchased_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HasPurchasedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).HasPurchased(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LedgerService_HasPurchased_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).HasPurchased(ctx, req.(*HasPurchasedRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerService_GetEarningsSummary_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreatorRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).GetEarningsSummary(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LedgerService_GetEarningsSummary_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).GetEarningsSummary(ctx, req.(*CreatorRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerService_Reconcile_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreatorRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).Reconcile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LedgerService_Reconcile_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).Reconcile(ctx, req.(*CreatorRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerService_RequestWithdrawal_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(WithdrawalRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).RequestWithdrawal(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LedgerService_RequestWithdrawal_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).RequestWithdrawal(ctx, req.(*WithdrawalRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerService_GetPendingWithdrawals_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UserRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).GetPendingWithdrawals(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LedgerService_GetPendingWithdrawals_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).GetPendingWithdrawals(ctx, req.(*UserRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// LedgerService_ServiceDesc describes ledger.v1.LedgerService for grpc.Server.
var LedgerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Purchase",
			Handler:    _LedgerService_Purchase_Handler,
		},
		{
			MethodName: "HasPurchased",
			Handler:    _LedgerService_HasPurchased_Handler,
		},
		{
			MethodName: "GetEarningsSummary",
			Handler:    _LedgerService_GetEarningsSummary_Handler,
		},
		{
			MethodName: "Reconcile",
			Handler:    _LedgerService_Reconcile_Handler,
		},
		{
			MethodName: "RequestWithdrawal",
			Handler:    _LedgerService_RequestWithdrawal_Handler,
		},
		{
			MethodName: "GetPendingWithdrawals",
			Handler:    _LedgerService_GetPendingWithdrawals_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}
