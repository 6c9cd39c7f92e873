package vad

import "time"

// Timer is a single cancellable delayed wake. It is the detector's only
// source of time, which keeps the silence-timeout logic unit-testable with
// simulated clocks.
type Timer interface {
	// C returns the channel that delivers exactly one value when the timer
	// fires. A stopped timer never delivers.
	C() <-chan time.Time

	// Stop cancels the timer. It reports whether the cancel happened before
	// the timer fired.
	Stop() bool
}

// Clock creates timers. The zero-dependency [SystemClock] backs production
// detectors; tests inject a manual implementation.
type Clock interface {
	NewTimer(d time.Duration) Timer
}

// SystemClock returns a Clock backed by the runtime timer wheel.
func SystemClock() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) NewTimer(d time.Duration) Timer {
	return &systemTimer{t: time.NewTimer(d)}
}

type systemTimer struct {
	t *time.Timer
}

func (s *systemTimer) C() <-chan time.Time { return s.t.C }

func (s *systemTimer) Stop() bool { return s.t.Stop() }
