package app_test

import (
	"sync/atomic"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
)

func TestTickerStopsWhenCallbackReturnsFalse(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})

	ticker := app.StartTicker(time.Millisecond, func() bool {
		if calls.Add(1) == 3 {
			close(done)
			return false
		}
		return true
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("ticker never reached 3 calls")
	}
	ticker.Stop()
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", got)
	}
}

func TestTickerStopPreventsFurtherTicks(t *testing.T) {
	var calls atomic.Int32
	ticker := app.StartTicker(time.Millisecond, func() bool {
		calls.Add(1)
		return true
	})

	time.Sleep(10 * time.Millisecond)
	ticker.Stop()
	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != after {
		t.Fatalf("ticks fired after Stop")
	}

	// Stop is idempotent.
	ticker.Stop()
}
