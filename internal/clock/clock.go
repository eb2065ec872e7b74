// Package clock provides an injectable time source so that every timer
// the console owns (simulation cadence, incident steps, "new" tag decay,
// camera resume delay) can be driven deterministically in tests.
//
// Production code takes a Clock and uses Real(); tests use Fake() and
// move time forward with Advance, which runs due callbacks synchronously
// in deadline order.
package clock

import "time"

// Clock is the subset of the time package the console depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer can
	// cancel the pending call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the callback from running. It returns false if the
// callback already ran or the timer was already stopped.
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
	timer := time.AfterFunc(d, f)
	return &Timer{stopFunc: timer.Stop}
}
