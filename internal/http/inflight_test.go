package http

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestInFlightTracker_ConcurrentBalance(t *testing.T) {
	var tracker InFlightTracker
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Increment()
			tracker.Decrement()
		}()
	}
	wg.Wait()
	if got := tracker.Count(); got != 0 {
		t.Errorf("Count() = %d after balanced calls, want 0", got)
	}
}

func TestInFlightTracker_WaitForZeroReturnsWhenDrained(t *testing.T) {
	var tracker InFlightTracker
	tracker.Increment()
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- tracker.WaitForZero(ctx, 2*time.Millisecond) }()

	tracker.Decrement()
	time.Sleep(10 * time.Millisecond)
	select {
	case <-errc:
		t.Fatal("WaitForZero returned with one request still in flight")
	default:
	}

	tracker.Decrement()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("WaitForZero() = %v, want nil", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitForZero did not return after drain")
	}
}

func TestInFlightTracker_WaitForZeroHonoursDeadline(t *testing.T) {
	var tracker InFlightTracker
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tracker.WaitForZero(ctx, 5*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForZero() = %v, want deadline exceeded", err)
	}
}
