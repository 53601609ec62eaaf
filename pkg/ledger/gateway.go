package ledger

import (
	"context"
	"fmt"
	"sort"
)

// PaymentResult is what a gateway returns for a payment attempt: a settled outcome,
// or a redirect the buyer must follow before the purchase completes.
type PaymentResult struct {
	Outcome  PurchaseOutcome
	Redirect *Redirect
}

// PaymentGateway settles purchases through one payment method.
type PaymentGateway interface {
	Method() PaymentMethod
	Pay(ctx context.Context, request PurchaseRequest) (PaymentResult, error)
}

// InternalGateway settles purchases synchronously.
type InternalGateway struct {
	processor *Processor
}

// NewInternalGateway wires an InternalGateway.
func NewInternalGateway(processor *Processor) (*InternalGateway, error) {
	if processor == nil {
		return nil, fmt.Errorf("%w: processor dependency is nil", ErrInvalidServiceConfig)
	}
	return &InternalGateway{processor: processor}, nil
}

// Method names the internal payment method.
func (gateway *InternalGateway) Method() PaymentMethod {
	return PaymentMethodInternal
}

// Pay runs the purchase immediately.
func (gateway *InternalGateway) Pay(ctx context.Context, request PurchaseRequest) (PaymentResult, error) {
	request.PaymentMethod = PaymentMethodInternal
	request.GatewayTransactionID = ""
	outcome, err := gateway.processor.Purchase(ctx, request)
	return PaymentResult{Outcome: outcome}, err
}

// Payments routes payment attempts to the gateway of the requested method.
type Payments struct {
	gateways map[PaymentMethod]PaymentGateway
}

// NewPayments registers gateways by method; methods must be unique.
func NewPayments(gateways ...PaymentGateway) (*Payments, error) {
	registered := make(map[PaymentMethod]PaymentGateway, len(gateways))
	for _, gateway := range gateways {
		if gateway == nil {
			return nil, fmt.Errorf("%w: gateway is nil", ErrInvalidServiceConfig)
		}
		method := gateway.Method()
		if _, exists := registered[method]; exists {
			return nil, fmt.Errorf("%w: duplicate gateway %q", ErrInvalidServiceConfig, method)
		}
		registered[method] = gateway
	}
	if len(registered) == 0 {
		return nil, fmt.Errorf("%w: no gateways", ErrInvalidServiceConfig)
	}
	return &Payments{gateways: registered}, nil
}

// Pay dispatches to the gateway registered for method.
func (payments *Payments) Pay(ctx context.Context, method PaymentMethod, request PurchaseRequest) (PaymentResult, error) {
	gateway, ok := payments.gateways[method]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
		return PaymentResult{Outcome: failedOutcome(err)}, err
	}
	return gateway.Pay(ctx, request)
}

// Methods lists the registered payment methods in name order.
func (payments *Payments) Methods() []PaymentMethod {
	methods := make([]PaymentMethod, 0, len(payments.gateways))
	for method := range payments.gateways {
		methods = append(methods, method)
	}
	sort.Slice(methods, func(left, right int) bool { return methods[left] < methods[right] })
	return methods
}
