// Package timeutil provides the clock used by the live monitor and the
// cancellation protocol, so that tick loops and grace periods can be driven
// by hand in tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After waits for the duration to elapse and then sends the current time.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a new Ticker containing a channel that will
	// send the time with a period specified by the duration argument.
	NewTicker(d time.Duration) Ticker
}

// Ticker holds a channel that delivers "ticks" of a clock at intervals.
type Ticker interface {
	// C returns the channel on which the ticks are delivered.
	C() <-chan time.Time

	// Stop turns off a ticker.
	Stop()
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// After waits for the duration to elapse and then sends the current time.
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// NewTicker returns a new Ticker.
func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.ticker.C }
func (t *realTicker) Stop()               { t.ticker.Stop() }

// MockClock is a manually controlled clock for testing.
type MockClock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	waiters []*mockWaiter
}

// mockWaiter is a pending After call or a running ticker.
type mockWaiter struct {
	ch       chan time.Time
	deadline time.Time
	interval time.Duration // zero for one-shot waiters
	stopped  bool
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	c := &MockClock{now: t}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the mock clock forward by the given duration
// and fires any expired waiters and tickers.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)

	live := c.waiters[:0]
	for _, w := range c.waiters {
		if w.stopped {
			continue
		}
		if !c.now.Before(w.deadline) {
			select {
			case w.ch <- c.now:
			default:
			}
			if w.interval == 0 {
				continue
			}
			w.deadline = c.now.Add(w.interval)
		}
		live = append(live, w)
	}
	c.waiters = live
}

// After returns a channel that receives the time once the clock has been
// advanced by at least d.
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	return c.add(d, 0).ch
}

// NewTicker creates a ticker that fires whenever an Advance crosses its
// next deadline.
func (c *MockClock) NewTicker(d time.Duration) Ticker {
	return &mockTicker{clock: c, w: c.add(d, d)}
}

func (c *MockClock) add(d, interval time.Duration) *mockWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &mockWaiter{ch: make(chan time.Time, 1), deadline: c.now.Add(d), interval: interval}
	c.waiters = append(c.waiters, w)
	c.cond.Broadcast()
	return w
}

// BlockUntil blocks until at least n waiters or tickers are pending.
func (c *MockClock) BlockUntil(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.cond.Wait()
	}
}

type mockTicker struct {
	clock *MockClock
	w     *mockWaiter
}

func (t *mockTicker) C() <-chan time.Time { return t.w.ch }

func (t *mockTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.w.stopped = true
}
