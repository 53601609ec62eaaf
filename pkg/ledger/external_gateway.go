package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Parameter names exchanged with the hosted payment page.
const (
	GatewayParamMerchantID      = "MID"
	GatewayParamOrderID         = "ORDER_ID"
	GatewayParamCustomerID      = "CUST_ID"
	GatewayParamAmount          = "TXN_AMOUNT"
	GatewayParamCallbackURL     = "CALLBACK_URL"
	GatewayParamWebsite         = "WEBSITE"
	GatewayParamChecksum        = "CHECKSUMHASH"
	GatewayParamStatus          = "STATUS"
	GatewayParamTransactionID   = "TXNID"
	GatewayParamResponseMessage = "RESPMSG"

	GatewayStatusSuccess = "TXN_SUCCESS"
)

// Query parameters appended to the buyer's return URL.
const (
	ReturnParamStatus        = "status"
	ReturnParamTransactionID = "txnId"
	ReturnParamError         = "error"
)

// ExternalGatewayConfig describes the hosted payment page integration.
type ExternalGatewayConfig struct {
	Name        PaymentMethod
	MerchantID  string
	RedirectURL string
	CallbackURL string
	Website     string
	Signer      ChecksumSigner
}

// Redirect tells the client where to send the buyer and which signed form fields to post.
type Redirect struct {
	SessionID  SessionID
	TargetURL  string
	FormParams map[string]string
}

// CallbackResult describes the session state after a verified callback.
type CallbackResult struct {
	SessionID     SessionID
	Status        SessionStatus
	TransactionID TransactionID
	Outcome       OutcomeStatus
	FailureReason string
}

// ReturnQuery renders the status, txnId, and error parameters of the buyer's return page.
func (result CallbackResult) ReturnQuery() url.Values {
	values := url.Values{}
	values.Set(ReturnParamStatus, string(result.Status))
	if !result.TransactionID.IsZero() {
		values.Set(ReturnParamTransactionID, result.TransactionID.String())
	}
	if result.FailureReason != "" {
		values.Set(ReturnParamError, result.FailureReason)
	}
	return values
}

// ExternalGateway settles purchases through a redirect to a hosted payment page followed by a
// signed server-to-server callback.
type ExternalGateway struct {
	config    ExternalGatewayConfig
	processor *Processor
	store     Store
	orderIDs  OrderIDGenerator
	nowFn     func() int64
	deps      dependencies
}

// NewExternalGateway wires an ExternalGateway.
func NewExternalGateway(config ExternalGatewayConfig, processor *Processor, store Store, orderIDs OrderIDGenerator, now func() int64, options ...Option) (*ExternalGateway, error) {
	if config.Name == "" || config.Name == PaymentMethodInternal {
		return nil, fmt.Errorf("%w: external gateway name %q", ErrInvalidServiceConfig, config.Name)
	}
	if strings.TrimSpace(config.MerchantID) == "" || strings.TrimSpace(config.RedirectURL) == "" || strings.TrimSpace(config.CallbackURL) == "" {
		return nil, fmt.Errorf("%w: merchant id, redirect url, and callback url are required", ErrInvalidServiceConfig)
	}
	if len(config.Signer.secret) == 0 {
		return nil, fmt.Errorf("%w: checksum signer is not configured", ErrInvalidServiceConfig)
	}
	if processor == nil {
		return nil, fmt.Errorf("%w: processor dependency is nil", ErrInvalidServiceConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if orderIDs == nil {
		return nil, fmt.Errorf("%w: order id generator is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &ExternalGateway{
		config:    config,
		processor: processor,
		store:     store,
		orderIDs:  orderIDs,
		nowFn:     now,
		deps:      newDependencies(options),
	}, nil
}

// Method names the external gateway.
func (gateway *ExternalGateway) Method() PaymentMethod {
	return gateway.config.Name
}

// Pay starts an external payment unless the buyer already owns the content.
func (gateway *ExternalGateway) Pay(ctx context.Context, request PurchaseRequest) (PaymentResult, error) {
	request.PaymentMethod = gateway.config.Name
	if err := request.Validate(); err != nil {
		return PaymentResult{Outcome: failedOutcome(err)}, err
	}
	purchased, err := gateway.processor.HasPurchased(ctx, request.ContentID, request.BuyerID)
	if err == nil && purchased {
		return PaymentResult{Outcome: PurchaseOutcome{Status: OutcomeAlreadyPurchased}}, nil
	}
	redirect, err := gateway.Initiate(ctx, request)
	if err != nil {
		return PaymentResult{Outcome: failedOutcome(err)}, err
	}
	return PaymentResult{Outcome: PurchaseOutcome{Status: OutcomeRedirectPending}, Redirect: &redirect}, nil
}

// Initiate creates a pending session and returns the signed redirect for the buyer.
func (gateway *ExternalGateway) Initiate(ctx context.Context, request PurchaseRequest) (Redirect, error) {
	ctx, span := startSpan(ctx, "ledger.InitiatePayment",
		attribute.String("gateway", string(gateway.config.Name)),
		attribute.String("content_id", request.ContentID.String()),
	)
	var session PaymentSession
	redirect, operationError := func() (Redirect, error) {
		if err := request.Validate(); err != nil {
			return Redirect{}, err
		}
		sessionID, err := NewSessionID(gateway.deps.newID())
		if err != nil {
			return Redirect{}, err
		}
		nowUnixUTC := gateway.nowFn()
		session = PaymentSession{
			SessionID:      sessionID,
			ContentID:      request.ContentID,
			BuyerID:        request.BuyerID,
			CreatorID:      request.CreatorID,
			Amount:         request.Amount,
			Status:         SessionStatusPending,
			GatewayName:    gateway.config.Name,
			GatewayOrderID: gateway.orderIDs.NextOrderID(),
			CreatedUnixUTC: nowUnixUTC,
			UpdatedUnixUTC: nowUnixUTC,
		}
		params := map[string]string{
			GatewayParamMerchantID:  gateway.config.MerchantID,
			GatewayParamOrderID:     session.GatewayOrderID,
			GatewayParamCustomerID:  request.BuyerID.String(),
			GatewayParamAmount:      request.Amount.String(),
			GatewayParamCallbackURL: gateway.config.CallbackURL,
			GatewayParamWebsite:     gateway.config.Website,
		}
		session.Checksum = gateway.config.Signer.Sign(params)
		if err := gateway.store.CreateSession(ctx, session); err != nil {
			return Redirect{}, err
		}
		params[GatewayParamChecksum] = session.Checksum
		return Redirect{SessionID: sessionID, TargetURL: gateway.config.RedirectURL, FormParams: params}, nil
	}()
	endSpan(span, operationError)
	gateway.deps.logOperation(ctx, OperationLog{
		Operation: operationInitiatePayment,
		ContentID: request.ContentID,
		BuyerID:   request.BuyerID,
		CreatorID: request.CreatorID,
		SessionID: session.SessionID,
		Amount:    request.Amount,
		Error:     operationError,
	})
	return redirect, operationError
}

// HandleCallback verifies a gateway callback and settles the session it refers to.
// Callbacks that fail verification change nothing and return ErrInvalidChecksum.
func (gateway *ExternalGateway) HandleCallback(ctx context.Context, params map[string]string) (CallbackResult, error) {
	ctx, span := startSpan(ctx, "ledger.GatewayCallback",
		attribute.String("gateway", string(gateway.config.Name)),
		attribute.String("order_id", params[GatewayParamOrderID]),
	)
	result, session, operationError := gateway.handleCallback(ctx, params)
	endSpan(span, operationError)
	entry := OperationLog{
		Operation:     operationGatewayCallback,
		ContentID:     session.ContentID,
		BuyerID:       session.BuyerID,
		CreatorID:     session.CreatorID,
		SessionID:     result.SessionID,
		TransactionID: result.TransactionID,
		Amount:        session.Amount,
		Error:         operationError,
	}
	if errors.Is(operationError, ErrInvalidChecksum) {
		entry.Status = operationStatusChecksumRejected
	}
	gateway.deps.logOperation(ctx, entry)
	return result, operationError
}

func (gateway *ExternalGateway) handleCallback(ctx context.Context, params map[string]string) (CallbackResult, PaymentSession, error) {
	if !gateway.config.Signer.Verify(params, params[GatewayParamChecksum]) {
		return CallbackResult{}, PaymentSession{}, WrapError("gateway", "callback", "checksum_mismatch", ErrInvalidChecksum)
	}
	session, err := gateway.store.GetSessionByOrderID(ctx, strings.TrimSpace(params[GatewayParamOrderID]))
	if err != nil {
		return CallbackResult{}, PaymentSession{}, err
	}
	if err := gateway.matchSession(session, params); err != nil {
		return CallbackResult{SessionID: session.SessionID, Status: session.Status}, session, err
	}
	if session.Status.IsTerminal() {
		return resultFromSession(session), session, nil
	}

	update := SessionUpdate{
		GatewayTransactionID: strings.TrimSpace(params[GatewayParamTransactionID]),
		GatewayResponse:      gatewayResponse(params),
		UpdatedUnixUTC:       gateway.nowFn(),
	}
	// Only a pending session may fail: a processing one is being settled by a success drive
	// that may already have written its transaction.
	if params[GatewayParamStatus] != GatewayStatusSuccess {
		update.FailureReason = failureReason(params)
		return gateway.finish(ctx, session, SessionStatusPending, SessionStatusFailed, update)
	}

	if session.Status == SessionStatusPending {
		err := gateway.store.TransitionSession(ctx, session.SessionID, SessionStatusPending, SessionStatusProcessing, update)
		if err != nil && !errors.Is(err, ErrSessionClosed) {
			return CallbackResult{SessionID: session.SessionID, Status: session.Status}, session, err
		}
		if errors.Is(err, ErrSessionClosed) {
			reloaded, reloadErr := gateway.store.GetSession(ctx, session.SessionID)
			if reloadErr != nil {
				return CallbackResult{SessionID: session.SessionID, Status: session.Status}, session, reloadErr
			}
			if reloaded.Status.IsTerminal() {
				return resultFromSession(reloaded), reloaded, nil
			}
		}
	}

	// A redelivered callback may re-drive a processing session; the purchase itself is idempotent.
	outcome, purchaseErr := gateway.processor.Purchase(ctx, PurchaseRequest{
		ContentID:            session.ContentID,
		BuyerID:              session.BuyerID,
		CreatorID:            session.CreatorID,
		Amount:               session.Amount,
		PaymentMethod:        session.GatewayName,
		GatewayTransactionID: update.GatewayTransactionID,
	})
	if purchaseErr != nil {
		requeue := update
		requeue.FailureReason = string(outcome.ErrorKind)
		if err := gateway.store.TransitionSession(ctx, session.SessionID, SessionStatusProcessing, SessionStatusPending, requeue); err != nil && !errors.Is(err, ErrSessionClosed) {
			purchaseErr = errors.Join(purchaseErr, err)
		}
		return CallbackResult{
			SessionID:     session.SessionID,
			Status:        SessionStatusPending,
			Outcome:       outcome.Status,
			FailureReason: requeue.FailureReason,
		}, session, purchaseErr
	}

	update.TransactionID = outcome.TransactionID
	if outcome.Status == OutcomeAlreadyPurchased {
		existing, found, lookupErr := gateway.store.FindActivePurchase(ctx, session.ContentID, session.BuyerID)
		if lookupErr == nil && found {
			update.TransactionID = existing.TransactionID
		}
	}
	result, settled, err := gateway.finish(ctx, session, SessionStatusProcessing, SessionStatusCompleted, update)
	result.Outcome = outcome.Status
	return result, settled, err
}

func (gateway *ExternalGateway) finish(ctx context.Context, session PaymentSession, from SessionStatus, to SessionStatus, update SessionUpdate) (CallbackResult, PaymentSession, error) {
	err := gateway.store.TransitionSession(ctx, session.SessionID, from, to, update)
	if errors.Is(err, ErrSessionClosed) {
		reloaded, reloadErr := gateway.store.GetSession(ctx, session.SessionID)
		if reloadErr != nil {
			return CallbackResult{SessionID: session.SessionID, Status: session.Status}, session, reloadErr
		}
		return resultFromSession(reloaded), reloaded, nil
	}
	if err != nil {
		return CallbackResult{SessionID: session.SessionID, Status: session.Status}, session, err
	}
	session.Status = to
	session.GatewayTransactionID = update.GatewayTransactionID
	session.TransactionID = update.TransactionID
	session.GatewayResponse = update.GatewayResponse
	session.FailureReason = update.FailureReason
	session.UpdatedUnixUTC = update.UpdatedUnixUTC
	return resultFromSession(session), session, nil
}

// Status returns the current state of a payment session.
func (gateway *ExternalGateway) Status(ctx context.Context, sessionID SessionID) (PaymentSession, error) {
	return gateway.store.GetSession(ctx, sessionID)
}

func (gateway *ExternalGateway) matchSession(session PaymentSession, params map[string]string) error {
	if strings.TrimSpace(params[GatewayParamMerchantID]) != gateway.config.MerchantID {
		return fmt.Errorf("%w: merchant id", ErrCallbackMismatch)
	}
	amount, err := ParseAmount(params[GatewayParamAmount])
	if err != nil || amount != session.Amount {
		return fmt.Errorf("%w: amount", ErrCallbackMismatch)
	}
	return nil
}

func resultFromSession(session PaymentSession) CallbackResult {
	return CallbackResult{
		SessionID:     session.SessionID,
		Status:        session.Status,
		TransactionID: session.TransactionID,
		FailureReason: session.FailureReason,
	}
}

func gatewayResponse(params map[string]string) MetadataJSON {
	filtered := make(map[string]string, len(params))
	for key, value := range params {
		if key == GatewayParamChecksum {
			continue
		}
		filtered[key] = value
	}
	encoded, err := json.Marshal(filtered)
	if err != nil {
		return MetadataJSON{}
	}
	return MetadataJSON{value: string(encoded)}
}

func failureReason(params map[string]string) string {
	if message := strings.TrimSpace(params[GatewayParamResponseMessage]); message != "" {
		return message
	}
	if status := strings.TrimSpace(params[GatewayParamStatus]); status != "" {
		return strings.ToLower(status)
	}
	return "gateway_failure"
}
