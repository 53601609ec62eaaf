package ledger

const (
	operationPurchase           = "purchase"
	operationHasPurchased       = "has_purchased"
	operationApplyEarnings      = "apply_earnings"
	operationReconcile          = "reconcile"
	operationRequestWithdrawal  = "request_withdrawal"
	operationTransitionWithdraw = "transition_withdrawal"
	operationInitiatePayment    = "initiate_payment"
	operationGatewayCallback    = "gateway_callback"

	operationStatusOK                 = "ok"
	operationStatusError              = "error"
	operationStatusAlreadyPurchased   = "already_purchased"
	operationStatusLedgerUpdateFailed = "ledger_update_failed"
	operationStatusChecksumRejected   = "gateway_checksum_rejected"
	operationStatusCacheError         = "cache_error"

	purchaseKeyDelimiter = "|"
	percentBaseValue     = 100
	amountScale          = 2
)

// DefaultPlatformFeePercent is the platform's share of every purchase.
const DefaultPlatformFeePercent = 7
