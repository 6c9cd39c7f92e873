// Package mock provides test doubles for the vad package interfaces.
//
// Use Detector to script detector behaviour in queue and session tests, and
// Clock to drive silence timeouts deterministically in detector tests.
package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/vad"
)

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// StartCallCount, StopCallCount count lifecycle calls.
	StartCallCount int
	StopCallCount  int

	// SensitivityUpdates records every UpdateSensitivity value in order.
	SensitivityUpdates []float64

	// Stream is the last stream passed to Start.
	Stream <-chan audio.AudioFrame
}

// Start records the call and returns StartErr.
func (d *Detector) Start(stream <-chan audio.AudioFrame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.StartCallCount++
	d.Stream = stream
	return d.StartErr
}

// Stop records the call.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.StopCallCount++
}

// UpdateSensitivity records the value.
func (d *Detector) UpdateSensitivity(s float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.SensitivityUpdates = append(d.SensitivityUpdates, s)
}

// Ensure Detector implements vad.Detector at compile time.
var _ vad.Detector = (*Detector)(nil)

// Clock is a manually advanced vad.Clock. Each NewTimer call returns a timer
// that fires only when the test calls Fire on it.
type Clock struct {
	mu     sync.Mutex
	timers []*ManualTimer
}

// NewTimer records the requested duration and returns an unfired timer.
func (c *Clock) NewTimer(d time.Duration) vad.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &ManualTimer{D: d, ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	return t
}

// Timers returns all timers created so far, in creation order.
func (c *Clock) Timers() []*ManualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ManualTimer, len(c.timers))
	copy(out, c.timers)
	return out
}

// Ensure Clock implements vad.Clock at compile time.
var _ vad.Clock = (*Clock)(nil)

// ManualTimer is a vad.Timer fired explicitly by the test.
type ManualTimer struct {
	// D is the duration the timer was created with.
	D time.Duration

	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
	fired   bool
}

// C returns the delivery channel.
func (t *ManualTimer) C() <-chan time.Time { return t.ch }

// Stop cancels the timer and reports whether it had not yet fired.
func (t *ManualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// Fire delivers the tick unless the timer was stopped. It reports whether the
// tick was delivered.
func (t *ManualTimer) Fire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.fired = true
	t.ch <- time.Time{}
	return true
}

// Stopped reports whether Stop was called before the timer fired.
func (t *ManualTimer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
