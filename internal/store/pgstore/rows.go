package pgstore

import "github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"

type transactionRow struct {
	transactionID        string
	contentID            string
	buyerID              string
	creatorID            string
	amountCents          int64
	platformFeeCents     int64
	creatorEarningsCents int64
	paymentMethod        string
	status               string
	gatewayTransactionID string
	isDeleted            bool
	createdUnixUTC       int64
}

func (row transactionRow) toLedger() (ledger.Transaction, error) {
	transactionID, err := ledger.NewTransactionID(row.transactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	contentID, err := ledger.NewContentID(row.contentID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	buyerID, err := ledger.NewUserID(row.buyerID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	creatorID, err := ledger.NewCreatorID(row.creatorID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	method, err := ledger.NewPaymentMethod(row.paymentMethod)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		TransactionID:        transactionID,
		ContentID:            contentID,
		BuyerID:              buyerID,
		CreatorID:            creatorID,
		Amount:               ledger.AmountCents(row.amountCents),
		PlatformFee:          ledger.AmountCents(row.platformFeeCents),
		CreatorEarnings:      ledger.AmountCents(row.creatorEarningsCents),
		PaymentMethod:        method,
		Status:               ledger.TransactionStatus(row.status),
		GatewayTransactionID: row.gatewayTransactionID,
		IsDeleted:            row.isDeleted,
		CreatedUnixUTC:       row.createdUnixUTC,
	}, nil
}

type sessionRow struct {
	sessionID            string
	contentID            string
	buyerID              string
	creatorID            string
	amountCents          int64
	status               string
	gatewayName          string
	gatewayOrderID       string
	gatewayTransactionID string
	transactionID        string
	checksum             string
	gatewayResponse      string
	failureReason        string
	createdUnixUTC       int64
	updatedUnixUTC       int64
}

func (row sessionRow) toLedger() (ledger.PaymentSession, error) {
	sessionID, err := ledger.NewSessionID(row.sessionID)
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	contentID, err := ledger.NewContentID(row.contentID)
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	buyerID, err := ledger.NewUserID(row.buyerID)
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	creatorID, err := ledger.NewCreatorID(row.creatorID)
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	gatewayName, err := ledger.NewPaymentMethod(row.gatewayName)
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	response, err := ledger.NewMetadataJSON(row.gatewayResponse)
	if err != nil {
		return ledger.PaymentSession{}, err
	}
	var transactionID ledger.TransactionID
	if row.transactionID != "" {
		transactionID, err = ledger.NewTransactionID(row.transactionID)
		if err != nil {
			return ledger.PaymentSession{}, err
		}
	}
	return ledger.PaymentSession{
		SessionID:            sessionID,
		ContentID:            contentID,
		BuyerID:              buyerID,
		CreatorID:            creatorID,
		Amount:               ledger.AmountCents(row.amountCents),
		Status:               ledger.SessionStatus(row.status),
		GatewayName:          gatewayName,
		GatewayOrderID:       row.gatewayOrderID,
		GatewayTransactionID: row.gatewayTransactionID,
		TransactionID:        transactionID,
		Checksum:             row.checksum,
		GatewayResponse:      response,
		FailureReason:        row.failureReason,
		CreatedUnixUTC:       row.createdUnixUTC,
		UpdatedUnixUTC:       row.updatedUnixUTC,
	}, nil
}
