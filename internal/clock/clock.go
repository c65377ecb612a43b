// Package clock abstracts the time operations the timeline schedules, so
// its refresh and resize timers can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package the timeline uses.
type Clock interface {
	Now() time.Time

	// AfterFunc waits for d, then calls f in its own goroutine (Real) or
	// synchronously during Advance (Fake).
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the timer from firing. It reports whether the call stopped
// the timer; false means it already fired or was stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop}
}
