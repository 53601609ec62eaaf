package ledger

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// inflight coalesces concurrent purchases of the same key within one process.
// The storage uniqueness constraint remains the guard across processes.
type inflight struct {
	group singleflight.Group
}

// do runs fn once per key at a time. Callers that joined an in-flight call report leader=false.
// The shared work runs detached from the leader's cancellation so that waiting callers are
// not failed by a caller that gave up; each caller still stops waiting when its own context ends.
func (flights *inflight) do(ctx context.Context, key PurchaseKey, fn func(ctx context.Context) (PurchaseOutcome, error)) (PurchaseOutcome, bool, error) {
	detached := context.WithoutCancel(ctx)
	leader := false
	resultChannel := flights.group.DoChan(key.String(), func() (interface{}, error) {
		leader = true
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return PurchaseOutcome{}, false, ctx.Err()
	case result := <-resultChannel:
		outcome, _ := result.Val.(PurchaseOutcome)
		return outcome, leader, result.Err
	}
}
