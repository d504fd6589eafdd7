package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

type fetchResult struct {
	val int
	err error
}

func TestImmediateFirstFetch(t *testing.T) {
	var calls atomic.Int32
	p := New("test", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 7, nil
	}, time.Hour)
	defer p.Stop()

	p.Start("k")
	waitFor(t, func() bool { return calls.Load() == 1 }, "no immediate fetch on activation")
	waitFor(t, func() bool {
		s := p.Snapshot()
		return s.Data != nil && *s.Data == 7 && !s.Loading
	}, "state not updated after first fetch")

	if p.Snapshot().LastUpdated.IsZero() {
		t.Fatal("lastUpdated not set on success")
	}
}

func TestFailureRetainsLastGoodData(t *testing.T) {
	results := make(chan fetchResult, 2)
	p := New("test", func(ctx context.Context) (int, error) {
		select {
		case r := <-results:
			return r.val, r.err
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}, 20*time.Millisecond)
	defer p.Stop()

	results <- fetchResult{val: 42}
	p.Start("k")
	waitFor(t, func() bool {
		s := p.Snapshot()
		return s.Data != nil && *s.Data == 42
	}, "first success not observed")
	updated := p.Snapshot().LastUpdated

	results <- fetchResult{err: errors.New("upstream down")}
	waitFor(t, func() bool { return p.Snapshot().Err != nil }, "failure not observed")

	s := p.Snapshot()
	if s.Data == nil || *s.Data != 42 {
		t.Fatalf("failure cleared last-known-good data: %+v", s)
	}
	if s.Loading {
		t.Fatal("loading stuck true after failure")
	}
	if !s.LastUpdated.Equal(updated) {
		t.Fatal("failure must not advance lastUpdated")
	}
}

func TestSuccessClearsPreviousError(t *testing.T) {
	results := make(chan fetchResult, 2)
	p := New("test", func(ctx context.Context) (int, error) {
		select {
		case r := <-results:
			return r.val, r.err
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}, 20*time.Millisecond)
	defer p.Stop()

	results <- fetchResult{err: errors.New("boom")}
	p.Start("k")
	waitFor(t, func() bool { return p.Snapshot().Err != nil }, "failure not observed")

	results <- fetchResult{val: 9}
	waitFor(t, func() bool {
		s := p.Snapshot()
		return s.Data != nil && *s.Data == 9
	}, "recovery not observed")

	if p.Snapshot().Err != nil {
		t.Fatal("success must clear the previous error")
	}
}

func TestLateResultFromSupersededScopeDiscarded(t *testing.T) {
	block := make(chan struct{})
	var calls atomic.Int32
	p := New("test", func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			// First scope's request resolves only after the restart.
			<-block
			return 1, nil
		}
		return 2, nil
	}, time.Hour)
	defer p.Stop()

	p.Start("a")
	waitFor(t, func() bool { return calls.Load() >= 1 }, "first cycle never started")

	p.Restart("b")
	waitFor(t, func() bool {
		s := p.Snapshot()
		return s.Data != nil && *s.Data == 2
	}, "second scope's result not observed")

	close(block)
	time.Sleep(50 * time.Millisecond)

	s := p.Snapshot()
	if s.Data == nil || *s.Data != 2 {
		t.Fatalf("late result from superseded scope mutated state: %+v", s)
	}
}

func TestKeyChangeCancelsInflightAndResetsLoading(t *testing.T) {
	ctxs := make(chan context.Context, 2)
	p := New("test", func(ctx context.Context) (int, error) {
		ctxs <- ctx
		<-ctx.Done()
		return 0, ctx.Err()
	}, time.Hour)
	defer p.Stop()

	p.Start("a")
	first := <-ctxs

	p.Restart("b")
	if !p.Snapshot().Loading {
		t.Fatal("loading must reset to true on dependency key change")
	}
	waitFor(t, func() bool { return first.Err() != nil }, "in-flight request not cancelled on key change")

	// The cancelled cycle must not have written an error.
	if p.Snapshot().Err != nil {
		t.Fatalf("cancellation surfaced as an error: %v", p.Snapshot().Err)
	}
}

func TestSameKeyStartIsNoop(t *testing.T) {
	var calls atomic.Int32
	p := New("test", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	}, time.Hour)
	defer p.Stop()

	p.Start("a")
	waitFor(t, func() bool { return calls.Load() == 1 }, "first fetch missing")

	p.Start("a")
	p.Restart("a")
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != 1 {
		t.Fatalf("unchanged key restarted the poller, %d fetches", calls.Load())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	ctxs := make(chan context.Context, 1)
	p := New("test", func(ctx context.Context) (int, error) {
		ctxs <- ctx
		<-ctx.Done()
		return 0, ctx.Err()
	}, time.Hour)

	p.Start("a")
	first := <-ctxs

	p.Stop()
	p.Stop()
	waitFor(t, func() bool { return first.Err() != nil }, "teardown did not cancel the in-flight request")
}

func TestSubscribeDeliversUpdates(t *testing.T) {
	p := New("test", func(ctx context.Context) (int, error) {
		return 5, nil
	}, time.Hour)
	defer p.Stop()

	ch, cancel := p.Subscribe()
	defer cancel()

	p.Start("a")
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-ch:
			if s.Data != nil && *s.Data == 5 {
				return
			}
		case <-deadline:
			t.Fatal("subscriber never saw the successful state")
		}
	}
}
