package ledger

import "context"

// PurchaseCache remembers confirmed purchases. Entries are positive-only and never expire:
// a purchase is permanent and soft deletes are out of band.
type PurchaseCache interface {
	Has(ctx context.Context, key PurchaseKey) (bool, error)
	MarkPurchased(ctx context.Context, key PurchaseKey) error
}

// NoopPurchaseCache never remembers anything.
type NoopPurchaseCache struct{}

// Has always reports a miss.
func (NoopPurchaseCache) Has(context.Context, PurchaseKey) (bool, error) {
	return false, nil
}

// MarkPurchased discards the key.
func (NoopPurchaseCache) MarkPurchased(context.Context, PurchaseKey) error {
	return nil
}
