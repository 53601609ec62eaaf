package ledgerv1

type PurchaseRequest struct {
	ContentId     string `json:"content_id,omitempty"`
	BuyerId       string `json:"buyer_id,omitempty"`
	CreatorId     string `json:"creator_id,omitempty"`
	AmountCents   int64  `json:"amount_cents,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

func (x *PurchaseRequest) GetContentId() string {
	if x != nil {
		return x.ContentId
	}
	return ""
}

func (x *PurchaseRequest) GetBuyerId() string {
	if x != nil {
		return x.BuyerId
	}
	return ""
}

func (x *PurchaseRequest) GetCreatorId() string {
	if x != nil {
		return x.CreatorId
	}
	return ""
}

func (x *PurchaseRequest) GetAmountCents() int64 {
	if x != nil {
		return x.AmountCents
	}
	return 0
}

func (x *PurchaseRequest) GetPaymentMethod() string {
	if x != nil {
		return x.PaymentMethod
	}
	return ""
}

type PaymentRedirect struct {
	SessionId  string            `json:"session_id,omitempty"`
	TargetUrl  string            `json:"target_url,omitempty"`
	FormParams map[string]string `json:"form_params,omitempty"`
}

func (x *PaymentRedirect) GetSessionId() string {
	if x != nil {
		return x.SessionId
	}
	return ""
}

func (x *PaymentRedirect) GetTargetUrl() string {
	if x != nil {
		return x.TargetUrl
	}
	return ""
}

func (x *PaymentRedirect) GetFormParams() map[string]string {
	if x != nil {
		return x.FormParams
	}
	return nil
}

type PurchaseResponse struct {
	Status               string           `json:"status,omitempty"`
	TransactionId        string           `json:"transaction_id,omitempty"`
	PlatformFeeCents     int64            `json:"platform_fee_cents,omitempty"`
	CreatorEarningsCents int64            `json:"creator_earnings_cents,omitempty"`
	ErrorKind            string           `json:"error_kind,omitempty"`
	LedgerPending        bool             `json:"ledger_pending,omitempty"`
	Redirect             *PaymentRedirect `json:"redirect,omitempty"`
}

func (x *PurchaseResponse) GetStatus() string {
	if x != nil {
		return x.Status
	}
	return ""
}

func (x *PurchaseResponse) GetTransactionId() string {
	if x != nil {
		return x.TransactionId
	}
	return ""
}

func (x *PurchaseResponse) GetPlatformFeeCents() int64 {
	if x != nil {
		return x.PlatformFeeCents
	}
	return 0
}

func (x *PurchaseResponse) GetCreatorEarningsCents() int64 {
	if x != nil {
		return x.CreatorEarningsCents
	}
	return 0
}

func (x *PurchaseResponse) GetErrorKind() string {
	if x != nil {
		return x.ErrorKind
	}
	return ""
}

func (x *PurchaseResponse) GetLedgerPending() bool {
	if x != nil {
		return x.LedgerPending
	}
	return false
}

func (x *PurchaseResponse) GetRedirect() *PaymentRedirect {
	if x != nil {
		return x.Redirect
	}
	return nil
}

type HasPurchasedRequest struct {
	ContentId string `json:"content_id,omitempty"`
	BuyerId   string `json:"buyer_id,omitempty"`
}

func (x *HasPurchasedRequest) GetContentId() string {
	if x != nil {
		return x.ContentId
	}
	return ""
}

func (x *HasPurchasedRequest) GetBuyerId() string {
	if x != nil {
		return x.BuyerId
	}
	return ""
}

type HasPurchasedResponse struct {
	Purchased bool `json:"purchased,omitempty"`
}

func (x *HasPurchasedResponse) GetPurchased() bool {
	if x != nil {
		return x.Purchased
	}
	return false
}

type CreatorRequest struct {
	CreatorId string `json:"creator_id,omitempty"`
}

func (x *CreatorRequest) GetCreatorId() string {
	if x != nil {
		return x.CreatorId
	}
	return ""
}

type EarningsSummaryResponse struct {
	TotalEarningsCents      int64 `json:"total_earnings_cents,omitempty"`
	AvailableBalanceCents   int64 `json:"available_balance_cents,omitempty"`
	PendingWithdrawalsCents int64 `json:"pending_withdrawals_cents,omitempty"`
	TransactionCount        int64 `json:"transaction_count,omitempty"`
}

func (x *EarningsSummaryResponse) GetTotalEarningsCents() int64 {
	if x != nil {
		return x.TotalEarningsCents
	}
	return 0
}

func (x *EarningsSummaryResponse) GetAvailableBalanceCents() int64 {
	if x != nil {
		return x.AvailableBalanceCents
	}
	return 0
}

func (x *EarningsSummaryResponse) GetPendingWithdrawalsCents() int64 {
	if x != nil {
		return x.PendingWithdrawalsCents
	}
	return 0
}

func (x *EarningsSummaryResponse) GetTransactionCount() int64 {
	if x != nil {
		return x.TransactionCount
	}
	return 0
}

type ReconcileResponse struct {
	TotalEarningsCents    int64 `json:"total_earnings_cents,omitempty"`
	AvailableBalanceCents int64 `json:"available_balance_cents,omitempty"`
}

func (x *ReconcileResponse) GetTotalEarningsCents() int64 {
	if x != nil {
		return x.TotalEarningsCents
	}
	return 0
}

func (x *ReconcileResponse) GetAvailableBalanceCents() int64 {
	if x != nil {
		return x.AvailableBalanceCents
	}
	return 0
}

type WithdrawalRequest struct {
	UserId            string `json:"user_id,omitempty"`
	AmountCents       int64  `json:"amount_cents,omitempty"`
	PayoutDetailsJson string `json:"payout_details_json,omitempty"`
}

func (x *WithdrawalRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

func (x *WithdrawalRequest) GetAmountCents() int64 {
	if x != nil {
		return x.AmountCents
	}
	return 0
}

func (x *WithdrawalRequest) GetPayoutDetailsJson() string {
	if x != nil {
		return x.PayoutDetailsJson
	}
	return ""
}

type WithdrawalResponse struct {
	WithdrawalId   string `json:"withdrawal_id,omitempty"`
	Status         string `json:"status,omitempty"`
	AmountCents    int64  `json:"amount_cents,omitempty"`
	CreatedUnixUtc int64  `json:"created_unix_utc,omitempty"`
}

func (x *WithdrawalResponse) GetWithdrawalId() string {
	if x != nil {
		return x.WithdrawalId
	}
	return ""
}

func (x *WithdrawalResponse) GetStatus() string {
	if x != nil {
		return x.Status
	}
	return ""
}

func (x *WithdrawalResponse) GetAmountCents() int64 {
	if x != nil {
		return x.AmountCents
	}
	return 0
}

func (x *WithdrawalResponse) GetCreatedUnixUtc() int64 {
	if x != nil {
		return x.CreatedUnixUtc
	}
	return 0
}

type UserRequest struct {
	UserId string `json:"user_id,omitempty"`
}

func (x *UserRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

type PendingWithdrawalsResponse struct {
	PendingCents int64 `json:"pending_cents,omitempty"`
}

func (x *PendingWithdrawalsResponse) GetPendingCents() int64 {
	if x != nil {
		return x.PendingCents
	}
	return 0
}
