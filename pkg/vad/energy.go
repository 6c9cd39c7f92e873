package vad

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
)

// EnergyDetector classifies speech by RMS energy with dual-threshold
// hysteresis. It is the portable default backend.
//
// State machine per frame (speech and silence thresholds derived from the
// current sensitivity via [Thresholds]):
//
//   - not speaking, RMS > speech → speaking; emit OnSpeechStart.
//   - speaking, RMS > speech → cancel any pending silence timer.
//   - speaking, RMS < silence → arm the silence timer if not armed; on
//     expiry, not speaking; emit OnSpeechEnd.
//   - silence ≤ RMS ≤ speech → dead zone, no transition.
type EnergyDetector struct {
	cb             Callbacks
	clock          Clock
	silenceTimeout time.Duration

	// sensitivity is stored as float bits so UpdateSensitivity never blocks
	// the frame loop.
	sensitivityBits atomic.Uint64

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// Compile-time assertion that EnergyDetector satisfies Detector.
var _ Detector = (*EnergyDetector)(nil)

// Option is a functional option for detector construction.
type Option func(*options)

type options struct {
	sensitivity    float64
	silenceTimeout time.Duration
	clock          Clock
}

// WithSensitivity sets the initial sensitivity in [0, 1]. Default 0.5.
func WithSensitivity(s float64) Option {
	return func(o *options) { o.sensitivity = s }
}

// WithSilenceTimeout sets the silence window that ends a speech segment.
// Values are clamped to [MinSilenceTimeout, MaxSilenceTimeout]; zero means
// [DefaultSilenceTimeout].
func WithSilenceTimeout(d time.Duration) Option {
	return func(o *options) { o.silenceTimeout = d }
}

// WithClock injects a timer source. Tests use a manual clock to drive the
// silence timeout deterministically.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

func applyOptions(opts []Option) options {
	o := options{sensitivity: 0.5, clock: SystemClock()}
	for _, fn := range opts {
		fn(&o)
	}
	o.silenceTimeout = clampSilenceTimeout(o.silenceTimeout)
	return o
}

// NewEnergyDetector constructs an energy-based detector with the given event
// hooks.
func NewEnergyDetector(cb Callbacks, opts ...Option) *EnergyDetector {
	o := applyOptions(opts)
	d := &EnergyDetector{
		cb:             cb,
		clock:          o.clock,
		silenceTimeout: o.silenceTimeout,
	}
	d.UpdateSensitivity(o.sensitivity)
	return d
}

// Start begins consuming frames from stream on a dedicated goroutine.
func (d *EnergyDetector) Start(stream <-chan audio.AudioFrame) error {
	if err := checkStream(stream); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errAlreadyStarted
	}
	d.running = true
	d.done = make(chan struct{})

	d.wg.Add(1)
	go d.loop(stream, d.done)
	return nil
}

// Stop cancels the timer, releases the tap, and resets to not-speaking.
func (d *EnergyDetector) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.done)
	d.mu.Unlock()
	d.wg.Wait()
}

// UpdateSensitivity adjusts the thresholds for subsequent frames.
func (d *EnergyDetector) UpdateSensitivity(s float64) {
	d.sensitivityBits.Store(math.Float64bits(s))
}

func (d *EnergyDetector) sensitivity() float64 {
	return math.Float64frombits(d.sensitivityBits.Load())
}

// loop owns all mutable detection state. Frames and timer expiry are the only
// inputs, so transitions are naturally serialized.
func (d *EnergyDetector) loop(stream <-chan audio.AudioFrame, done <-chan struct{}) {
	defer d.wg.Done()

	var (
		speaking bool
		timer    Timer
		timerC   <-chan time.Time
	)
	cancelTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	defer cancelTimer()

	for {
		select {
		case <-done:
			// Keep the tap flowing until the subscription is released, so
			// frames arriving after Stop are not counted as drops.
			go audio.Drain(stream)
			return

		case <-timerC:
			timer, timerC = nil, nil
			if speaking {
				speaking = false
				if d.cb.OnSpeechEnd != nil {
					d.cb.OnSpeechEnd()
				}
			}

		case frame, ok := <-stream:
			if !ok {
				return
			}
			if len(frame.Data)%2 != 0 {
				if d.cb.OnError != nil {
					d.cb.OnError(fmt.Errorf("vad: malformed frame: %d bytes is not 16-bit aligned", len(frame.Data)))
				}
				continue
			}

			rms := audio.RMS(frame.Data)
			speechThr, silenceThr := Thresholds(d.sensitivity())

			switch {
			case rms > speechThr:
				cancelTimer()
				if !speaking {
					speaking = true
					if d.cb.OnSpeechStart != nil {
						d.cb.OnSpeechStart()
					}
				}

			case speaking && rms < silenceThr:
				if timer == nil {
					timer = d.clock.NewTimer(d.silenceTimeout)
					timerC = timer.C()
				}

			default:
				// Dead zone between the thresholds: no transition, and a
				// running silence timer keeps running.
			}
		}
	}
}
