// Package timeutil abstracts the clock so that time-dependent code can be
// driven deterministically in tests.
package timeutil

import "time"

// Timer is a handle to a callback scheduled with AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// Provider supplies the current time and scheduling primitives.
type Provider interface {
	Now() time.Time
	Sleep(d time.Duration)
	// AfterFunc runs f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

type realProvider struct{}

// Default returns a Provider backed by the time package.
func Default() Provider { return realProvider{} }

func (realProvider) Now() time.Time                            { return time.Now().UTC() }
func (realProvider) Sleep(d time.Duration)                     { time.Sleep(d) }
func (realProvider) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
