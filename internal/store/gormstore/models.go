package gormstore

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transaction mirrors the ledger_transactions table.
type Transaction struct {
	TransactionID        string    `gorm:"primaryKey"`
	ContentID            string    `gorm:"not null;index:uniq_active_purchase,unique,priority:1,where:is_deleted = false"`
	BuyerID              string    `gorm:"not null;index:uniq_active_purchase,unique,priority:2"`
	CreatorID            string    `gorm:"not null;index:idx_ledger_transactions_creator"`
	AmountCents          int64     `gorm:"not null"`
	PlatformFeeCents     int64     `gorm:"not null"`
	CreatorEarningsCents int64     `gorm:"not null"`
	PaymentMethod        string    `gorm:"not null"`
	Status               string    `gorm:"not null"`
	GatewayTransactionID *string   `gorm:""`
	IsDeleted            bool      `gorm:"not null"`
	CreatedAt            time.Time `gorm:"not null"`
}

func (Transaction) TableName() string { return "ledger_transactions" }

// EarningsAccount mirrors the earnings_accounts table.
type EarningsAccount struct {
	CreatorID             string    `gorm:"primaryKey"`
	TotalEarningsCents    int64     `gorm:"not null"`
	AvailableBalanceCents int64     `gorm:"not null"`
	UpdatedAt             time.Time `gorm:"not null"`
}

func (EarningsAccount) TableName() string { return "earnings_accounts" }

// Withdrawal mirrors the withdrawal_requests table.
type Withdrawal struct {
	WithdrawalID  string         `gorm:"primaryKey"`
	UserID        string         `gorm:"not null;index:idx_withdrawal_requests_user_status,priority:1"`
	AmountCents   int64          `gorm:"not null"`
	Status        string         `gorm:"not null;index:idx_withdrawal_requests_user_status,priority:2"`
	PayoutDetails datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

func (Withdrawal) TableName() string { return "withdrawal_requests" }

// PaymentSession mirrors the payment_sessions table.
type PaymentSession struct {
	SessionID            string         `gorm:"primaryKey"`
	ContentID            string         `gorm:"not null"`
	BuyerID              string         `gorm:"not null"`
	CreatorID            string         `gorm:"not null"`
	AmountCents          int64          `gorm:"not null"`
	Status               string         `gorm:"not null"`
	GatewayName          string         `gorm:"not null"`
	GatewayOrderID       string         `gorm:"not null;index:uniq_payment_sessions_order,unique"`
	GatewayTransactionID *string        `gorm:""`
	TransactionID        *string        `gorm:""`
	Checksum             string         `gorm:"not null"`
	GatewayResponse      datatypes.JSON `gorm:"type:jsonb;not null"`
	FailureReason        string         `gorm:"not null"`
	CreatedAt            time.Time      `gorm:"not null"`
	UpdatedAt            time.Time      `gorm:"not null"`
}

func (PaymentSession) TableName() string { return "payment_sessions" }

// Migrate creates or updates the schema of every model. Used for SQLite; Postgres uses the
// versioned schema applied by pgstore.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Transaction{}, &EarningsAccount{}, &Withdrawal{}, &PaymentSession{})
}
