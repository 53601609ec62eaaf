package ledger

import "context"

// EventType names a ledger event.
type EventType string

const (
	EventPurchaseCreated    EventType = "purchase.created"
	EventReconcileRequested EventType = "ledger.reconcile_requested"
	EventEarningsReconciled EventType = "earnings.reconciled"
)

// Event is published after state changes that other processes may react to.
type Event struct {
	Type                  EventType `json:"type"`
	CreatorID             string    `json:"creator_id"`
	ContentID             string    `json:"content_id,omitempty"`
	BuyerID               string    `json:"buyer_id,omitempty"`
	TransactionID         string    `json:"transaction_id,omitempty"`
	AmountCents           int64     `json:"amount_cents,omitempty"`
	CreatorEarningsCents  int64     `json:"creator_earnings_cents,omitempty"`
	AvailableBalanceCents int64     `json:"available_balance_cents,omitempty"`
	Reason                string    `json:"reason,omitempty"`
	OccurredUnixUTC       int64     `json:"occurred_unix_utc"`
}

// EventPublisher delivers ledger events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
