package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestInflightSharesResultWithFollowers(test *testing.T) {
	test.Parallel()
	flights := &inflight{}
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls int
	var enteredOnce sync.Once
	work := func(context.Context) (PurchaseOutcome, error) {
		calls++
		enteredOnce.Do(func() { close(entered) })
		<-release
		return PurchaseOutcome{Status: OutcomeCreated}, nil
	}

	type result struct {
		outcome PurchaseOutcome
		leader  bool
	}
	results := make(chan result, 2)
	var waitGroup sync.WaitGroup
	waitGroup.Add(1)
	go func() {
		defer waitGroup.Done()
		outcome, leader, _ := flights.do(context.Background(), PurchaseKey("C1|U1"), work)
		results <- result{outcome: outcome, leader: leader}
	}()
	<-entered
	waitGroup.Add(1)
	go func() {
		defer waitGroup.Done()
		outcome, leader, _ := flights.do(context.Background(), PurchaseKey("C1|U1"), work)
		results <- result{outcome: outcome, leader: leader}
	}()
	// give the follower time to join the in-flight call
	time.Sleep(20 * time.Millisecond)
	close(release)
	waitGroup.Wait()
	close(results)

	leaders := 0
	for value := range results {
		if value.outcome.Status != OutcomeCreated {
			test.Fatalf("unexpected outcome %+v", value.outcome)
		}
		if value.leader {
			leaders++
		}
	}
	if calls != 1 || leaders != 1 {
		test.Fatalf("expected one execution and one leader, got %d calls and %d leaders", calls, leaders)
	}
}

func TestInflightFollowerStopsWaitingOnCancel(test *testing.T) {
	test.Parallel()
	flights := &inflight{}
	release := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_, _, _ = flights.do(context.Background(), PurchaseKey("C1|U1"), func(context.Context) (PurchaseOutcome, error) {
			close(entered)
			<-release
			return PurchaseOutcome{Status: OutcomeCreated}, nil
		})
	}()
	<-entered
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := flights.do(ctx, PurchaseKey("C1|U1"), func(context.Context) (PurchaseOutcome, error) {
		test.Errorf("follower work must not run")
		return PurchaseOutcome{}, nil
	})
	close(release)
	if !errors.Is(err, context.Canceled) {
		test.Fatalf("expected context.Canceled, got %v", err)
	}
}
