package publish

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can drive the expiry sweep
// with a fake clock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for state tracking. Pass nil to reset to
// real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
