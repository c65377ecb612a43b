package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves on Advance. It is safe for
// concurrent use. Callbacks run synchronously inside Advance, outside the
// clock's lock, so they may schedule new timers.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	callback func()
	seq      int
	stopped  bool
	fired    bool
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to fire once the clock reaches now+d. A
// non-positive d still waits for the next Advance, which keeps callers that
// hold their own lock from re-entering.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &fakeWaiter{
		deadline: c.current.Add(max(d, 0)),
		callback: f,
		seq:      len(c.waiters),
	}
	c.waiters = append(c.waiters, w)

	return &Timer{stopFunc: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w.stopped || w.fired {
			return false
		}
		w.stopped = true
		return true
	}}
}

// Advance moves the clock forward by d and fires every due timer in
// deadline order. Timers scheduled by a callback fire in the same Advance
// if their deadline is already due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		w := c.nextDue(target)
		if w == nil {
			c.current = target
			c.mu.Unlock()
			return
		}
		w.fired = true
		if w.deadline.After(c.current) {
			c.current = w.deadline
		}
		c.mu.Unlock()

		w.callback()
	}
}

// nextDue pops the earliest live waiter due at or before target. Caller
// holds mu.
func (c *FakeClock) nextDue(target time.Time) *fakeWaiter {
	c.waiters = slices.DeleteFunc(c.waiters, func(w *fakeWaiter) bool {
		return w.stopped || w.fired
	})
	var next *fakeWaiter
	for _, w := range c.waiters {
		if w.deadline.After(target) {
			continue
		}
		if next == nil || w.deadline.Before(next.deadline) ||
			(w.deadline.Equal(next.deadline) && w.seq < next.seq) {
			next = w
		}
	}
	return next
}

// Pending returns the number of timers that have neither fired nor been
// stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			n++
		}
	}
	return n
}
