// Package clock abstracts time so that flush intervals, reconnect backoff,
// and echo expiry can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package used by the sync engine.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f in its own goroutine (real) or synchronously during
	// Advance (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer

	// NewTicker delivers ticks on C every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call. Returns false if it already fired or was stopped.
	Stop() bool
}

// Ticker wraps a periodic timer. C has capacity 1; late ticks are dropped.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}

// Millis returns c.Now() as epoch milliseconds.
func Millis(c Clock) int64 {
	return c.Now().UnixMilli()
}
