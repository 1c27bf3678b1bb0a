// Package clock provides the monotonic and wall-clock sources consulted
// throughout the consensus core (spec.md §6 "Clock — monotonic and
// wall-clock sources; wall clock used only where explicitly specified (cert
// times)").
//
// Grounded on utils/timer/mockable.Clock from the teacher, split into an
// interface with a real and a fake implementation so producer-loop and
// commit/reveal timing logic can be driven deterministically in tests.
package clock

import "time"

// Clock is the collaborator interface consulted for both monotonic
// durations (phase timers, PoH slot cadence) and wall-clock timestamps
// (certificate issued_at/expires_at).
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
	// Monotonic returns a monotonic instant suitable for measuring elapsed
	// durations; it has no relation to wall-clock time.
	Monotonic() time.Time
}

// Real is the production Clock backed by the system clock.
type Real struct{}

// Now returns time.Now(), which carries a monotonic reading on platforms
// that support it.
func (Real) Now() time.Time { return time.Now() }

// Monotonic returns time.Now(); callers must only use it with Sub, never
// format or serialize it as wall-clock time.
func (Real) Monotonic() time.Time { return time.Now() }

// Fake is a deterministic Clock for tests: Now and Monotonic both return
// the same mutable instant, advanced explicitly via Advance.
type Fake struct {
	t time.Time
}

// NewFake creates a Fake clock starting at t.
func NewFake(t time.Time) *Fake {
	return &Fake{t: t}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time { return f.t }

// Monotonic returns the fake's current time.
func (f *Fake) Monotonic() time.Time { return f.t }

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.t = f.t.Add(d)
}

// Set pins the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.t = t
}
