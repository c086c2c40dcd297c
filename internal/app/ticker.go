package app

import (
	"sync"
	"time"
)

// Ticker drives a callback once per interval on its own goroutine. It
// replaces the interval-based re-render loop of browser clients with an
// explicit, cancellable driver: Stop tears down the schedule so no tick can
// reach a submitted session, and the callback returning false stops it from
// the inside.
type Ticker struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartTicker schedules fn every interval until Stop is called or fn returns
// false.
func StartTicker(interval time.Duration, fn func() bool) *Ticker {
	t := &Ticker{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				if !fn() {
					return
				}
			}
		}
	}()
	return t
}

// Stop cancels the schedule and waits for the driver goroutine to exit. Safe
// to call more than once.
func (t *Ticker) Stop() {
	t.once.Do(func() {
		close(t.stop)
	})
	<-t.done
}
