package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	errorCodeUnauthorized   = "unauthorized"
	errorCodeInvalidPayload = "invalid_payload"
	errorCodeGatewayOff     = "gateway_disabled"
)

type httpHandler struct {
	logger      *zap.Logger
	processor   *ledger.Processor
	payments    *ledger.Payments
	earnings    *ledger.EarningsLedger
	withdrawals *ledger.WithdrawalAccounting
	gateway     *ledger.ExternalGateway
	returnURL   string
}

func (handler *httpHandler) handlePurchase(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorCodeUnauthorized, "missing session"))
		return
	}
	var request purchaseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, "expected JSON body"))
		return
	}
	purchaseRequest, err := ledger.NewPurchaseRequest(request.ContentID, claims.GetUserID(), request.CreatorID, ledger.AmountCents(request.AmountCents))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	method := ledger.PaymentMethodInternal
	if request.PaymentMethod != "" {
		method, err = ledger.NewPaymentMethod(request.PaymentMethod)
		if err != nil {
			handler.writeError(ctx, err)
			return
		}
	}
	result, err := handler.payments.Pay(ctx.Request.Context(), method, purchaseRequest)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newPurchasePayload(result))
}

func (handler *httpHandler) handleHasPurchased(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorCodeUnauthorized, "missing session"))
		return
	}
	contentID, err := ledger.NewContentID(ctx.Param("content_id"))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	buyerID, err := ledger.NewUserID(claims.GetUserID())
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	purchased, err := handler.processor.HasPurchased(ctx.Request.Context(), contentID, buyerID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"content_id": contentID.String(), "purchased": purchased})
}

func (handler *httpHandler) handlePaymentStatus(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorCodeUnauthorized, "missing session"))
		return
	}
	if handler.gateway == nil {
		ctx.JSON(http.StatusNotFound, errorResponse(errorCodeGatewayOff, "no external gateway is configured"))
		return
	}
	sessionID, err := ledger.NewSessionID(ctx.Param("session_id"))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	session, err := handler.gateway.Status(ctx.Request.Context(), sessionID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	// Sessions belonging to other buyers are indistinguishable from missing ones.
	if session.BuyerID.String() != claims.GetUserID() {
		handler.writeError(ctx, ledger.ErrUnknownSession)
		return
	}
	ctx.JSON(http.StatusOK, sessionPayload{
		SessionID:      session.SessionID.String(),
		ContentID:      session.ContentID.String(),
		Status:         string(session.Status),
		AmountCents:    session.Amount.Int64(),
		TransactionID:  session.TransactionID.String(),
		FailureReason:  session.FailureReason,
		UpdatedUnixUTC: session.UpdatedUnixUTC,
	})
}

func (handler *httpHandler) handleEarnings(ctx *gin.Context) {
	creatorID, ok := handler.creatorFromClaims(ctx)
	if !ok {
		return
	}
	summary, err := handler.earnings.Summary(ctx.Request.Context(), creatorID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, earningsPayload{
		TotalEarningsCents:      summary.TotalEarnings.Int64(),
		AvailableBalanceCents:   summary.AvailableBalance.Int64(),
		PendingWithdrawalsCents: summary.PendingWithdrawals.Int64(),
		TransactionCount:        summary.TransactionCount,
	})
}

func (handler *httpHandler) handleReconcile(ctx *gin.Context) {
	creatorID, ok := handler.creatorFromClaims(ctx)
	if !ok {
		return
	}
	account, err := handler.earnings.Reconcile(ctx.Request.Context(), creatorID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"total_earnings_cents":    account.TotalEarnings.Int64(),
		"available_balance_cents": account.AvailableBalance.Int64(),
		"updated_unix_utc":        account.UpdatedUnixUTC,
	})
}

func (handler *httpHandler) handleWithdrawal(ctx *gin.Context) {
	userID, ok := handler.creatorFromClaims(ctx)
	if !ok {
		return
	}
	var request withdrawalRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, "expected JSON body"))
		return
	}
	amount, err := ledger.NewAmountCents(request.AmountCents)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	payoutDetails, err := ledger.NewMetadataJSON(string(request.PayoutDetails))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	withdrawal, err := handler.withdrawals.Request(ctx.Request.Context(), userID, amount, payoutDetails)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, withdrawalPayload{
		WithdrawalID:   withdrawal.WithdrawalID.String(),
		Status:         string(withdrawal.Status),
		AmountCents:    withdrawal.Amount.Int64(),
		CreatedUnixUTC: withdrawal.CreatedUnixUTC,
	})
}

func (handler *httpHandler) handlePendingWithdrawals(ctx *gin.Context) {
	userID, ok := handler.creatorFromClaims(ctx)
	if !ok {
		return
	}
	pending, err := handler.withdrawals.PendingTotal(ctx.Request.Context(), userID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"pending_cents": pending.Int64()})
}

// handleGatewayCallback settles a hosted-page payment and sends the buyer's browser back to the
// return page. Callbacks failing checksum verification get a 403 and change nothing.
func (handler *httpHandler) handleGatewayCallback(ctx *gin.Context) {
	if handler.gateway == nil {
		ctx.JSON(http.StatusNotFound, errorResponse(errorCodeGatewayOff, "no external gateway is configured"))
		return
	}
	if err := ctx.Request.ParseForm(); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, "expected form body"))
		return
	}
	params := make(map[string]string, len(ctx.Request.PostForm))
	for key := range ctx.Request.PostForm {
		params[key] = ctx.Request.PostForm.Get(key)
	}
	result, err := handler.gateway.HandleCallback(ctx.Request.Context(), params)
	if err != nil && (result.SessionID.String() == "" || errors.Is(err, ledger.ErrInvalidChecksum)) {
		handler.writeError(ctx, err)
		return
	}
	query := result.ReturnQuery()
	if err != nil {
		handler.logger.Warn("gateway callback not settled", zap.String("session_id", result.SessionID.String()), zap.Error(err))
		if query.Get(ledger.ReturnParamError) == "" {
			query.Set(ledger.ReturnParamError, string(ledger.ClassifyError(err)))
		}
	}
	target, parseErr := returnLocation(handler.returnURL, query)
	if parseErr != nil {
		handler.writeError(ctx, parseErr)
		return
	}
	ctx.Redirect(http.StatusSeeOther, target)
}

func (handler *httpHandler) creatorFromClaims(ctx *gin.Context) (ledger.UserID, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorCodeUnauthorized, "missing session"))
		return ledger.UserID{}, false
	}
	userID, err := ledger.NewUserID(claims.GetUserID())
	if err != nil {
		handler.writeError(ctx, err)
		return ledger.UserID{}, false
	}
	return userID, true
}

// writeError maps a ledger error onto an HTTP status and a stable error code.
func (handler *httpHandler) writeError(ctx *gin.Context, err error) {
	kind := ledger.ClassifyError(err)
	statusCode := http.StatusInternalServerError
	message := "internal error"
	switch kind {
	case ledger.ErrorKindInvalidArgument:
		statusCode = http.StatusBadRequest
		message = err.Error()
	case ledger.ErrorKindInvalidChecksum:
		statusCode = http.StatusForbidden
		message = "checksum verification failed"
	case ledger.ErrorKindInsufficientFunds:
		statusCode = http.StatusConflict
		message = "insufficient available balance"
	case ledger.ErrorKindConflict:
		statusCode = http.StatusConflict
		message = err.Error()
	case ledger.ErrorKindNotFound:
		statusCode = http.StatusNotFound
		message = "not found"
	case ledger.ErrorKindStoreWriteFailed:
		statusCode = http.StatusServiceUnavailable
		message = "storage unavailable"
	}
	if statusCode >= http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.String("error_kind", string(kind)), zap.Error(err))
	}
	ctx.JSON(statusCode, errorResponse(string(kind), message))
}

func returnLocation(returnURL string, query url.Values) (string, error) {
	target, err := url.Parse(returnURL)
	if err != nil {
		return "", err
	}
	merged := target.Query()
	for key, values := range query {
		merged[key] = values
	}
	target.RawQuery = merged.Encode()
	return target.String(), nil
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func newPurchasePayload(result ledger.PaymentResult) purchasePayload {
	payload := purchasePayload{
		Status:               string(result.Outcome.Status),
		TransactionID:        result.Outcome.TransactionID.String(),
		PlatformFeeCents:     result.Outcome.PlatformFee.Int64(),
		CreatorEarningsCents: result.Outcome.CreatorEarnings.Int64(),
		LedgerPending:        result.Outcome.LedgerPending,
	}
	if result.Redirect != nil {
		payload.Redirect = &redirectPayload{
			SessionID:  result.Redirect.SessionID.String(),
			TargetURL:  result.Redirect.TargetURL,
			FormParams: result.Redirect.FormParams,
		}
	}
	return payload
}

type purchaseRequest struct {
	ContentID     string `json:"content_id"`
	CreatorID     string `json:"creator_id"`
	AmountCents   int64  `json:"amount_cents"`
	PaymentMethod string `json:"payment_method"`
}

type withdrawalRequest struct {
	AmountCents   int64           `json:"amount_cents"`
	PayoutDetails json.RawMessage `json:"payout_details"`
}

type purchasePayload struct {
	Status               string           `json:"status"`
	TransactionID        string           `json:"transaction_id,omitempty"`
	PlatformFeeCents     int64            `json:"platform_fee_cents"`
	CreatorEarningsCents int64            `json:"creator_earnings_cents"`
	LedgerPending        bool             `json:"ledger_pending"`
	Redirect             *redirectPayload `json:"redirect,omitempty"`
}

type redirectPayload struct {
	SessionID  string            `json:"session_id"`
	TargetURL  string            `json:"target_url"`
	FormParams map[string]string `json:"form_params"`
}

type sessionPayload struct {
	SessionID      string `json:"session_id"`
	ContentID      string `json:"content_id"`
	Status         string `json:"status"`
	AmountCents    int64  `json:"amount_cents"`
	TransactionID  string `json:"transaction_id,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
	UpdatedUnixUTC int64  `json:"updated_unix_utc"`
}

type earningsPayload struct {
	TotalEarningsCents      int64 `json:"total_earnings_cents"`
	AvailableBalanceCents   int64 `json:"available_balance_cents"`
	PendingWithdrawalsCents int64 `json:"pending_withdrawals_cents"`
	TransactionCount        int64 `json:"transaction_count"`
}

type withdrawalPayload struct {
	WithdrawalID   string `json:"withdrawal_id"`
	Status         string `json:"status"`
	AmountCents    int64  `json:"amount_cents"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
}
