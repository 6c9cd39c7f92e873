package vad

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/voice"
)

const (
	// modelFrameMs is the classifier's frame length. The WebRTC VAD accepts
	// 10, 20, or 30 ms; 20 ms balances latency against per-call overhead.
	modelFrameMs = 20

	// speechDebounceFrames is how many consecutive speech-classified frames
	// confirm a speech start. Filters out single-frame transients (clicks,
	// keyboard taps) that the classifier flags as speech.
	speechDebounceFrames = 3
)

// ModelDetector classifies speech with the WebRTC VAD frame model instead of
// raw energy. It satisfies the same event contract as [EnergyDetector]:
// strictly alternating start/end events and a full silence-timeout window
// before a segment ends.
//
// Sensitivity maps onto the classifier's aggressiveness mode: sensitivity 1.0
// selects the least aggressive filtering (detects the most speech), 0.0 the
// most aggressive.
type ModelDetector struct {
	cb             Callbacks
	clock          Clock
	silenceTimeout time.Duration
	sampleRate     int

	modeValue atomic.Int32

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// Compile-time assertion that ModelDetector satisfies Detector.
var _ Detector = (*ModelDetector)(nil)

// NewModelDetector constructs a WebRTC-VAD-backed detector. The sample rate
// must be one the classifier supports (8000, 16000, 32000, or 48000 Hz).
func NewModelDetector(cb Callbacks, sampleRate int, opts ...Option) (*ModelDetector, error) {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("vad: sample rate %d unsupported by frame classifier: %w",
			sampleRate, voice.ErrDeviceNotSupported)
	}

	o := applyOptions(opts)
	d := &ModelDetector{
		cb:             cb,
		clock:          o.clock,
		silenceTimeout: o.silenceTimeout,
		sampleRate:     sampleRate,
	}
	d.UpdateSensitivity(o.sensitivity)
	return d, nil
}

// Start begins consuming frames from stream on a dedicated goroutine. The
// classifier itself is created here so an unusable backend surfaces as
// [voice.ErrInitializationFailed] rather than a mid-stream error.
func (d *ModelDetector) Start(stream <-chan audio.AudioFrame) error {
	if err := checkStream(stream); err != nil {
		return err
	}

	classifier, err := webrtcvad.New()
	if err != nil {
		return fmt.Errorf("vad: create frame classifier: %w: %w", err, voice.ErrInitializationFailed)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errAlreadyStarted
	}
	d.running = true
	d.done = make(chan struct{})

	d.wg.Add(1)
	go d.loop(classifier, stream, d.done)
	return nil
}

// Stop cancels the timer, releases the tap, and resets to not-speaking.
func (d *ModelDetector) Stop() {
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

// UpdateSensitivity maps s in [0, 1] onto the classifier's mode 3‥0.
func (d *ModelDetector) UpdateSensitivity(s float64) {
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	d.modeValue.Store(int32(math.Round((1 - s) * 3)))
}

func (d *ModelDetector) loop(classifier *webrtcvad.VAD, stream <-chan audio.AudioFrame, done <-chan struct{}) {
	defer d.wg.Done()

	frameBytes := d.sampleRate * modelFrameMs / 1000 * 2

	var (
		buf       []byte
		speaking  bool
		speechRun int
		mode      int32 = -1
		timer     Timer
		timerC    <-chan time.Time
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
				speechRun = 0
				if d.cb.OnSpeechEnd != nil {
					d.cb.OnSpeechEnd()
				}
			}

		case frame, ok := <-stream:
			if !ok {
				return
			}
			if frame.Channels > 1 {
				if d.cb.OnError != nil {
					d.cb.OnError(fmt.Errorf("vad: frame classifier requires mono input, got %d channels", frame.Channels))
				}
				continue
			}

			if m := d.modeValue.Load(); m != mode {
				mode = m
				if err := classifier.SetMode(int(mode)); err != nil && d.cb.OnError != nil {
					d.cb.OnError(fmt.Errorf("vad: set classifier mode %d: %w", mode, err))
				}
			}

			buf = append(buf, frame.Data...)
			for len(buf) >= frameBytes {
				chunk := buf[:frameBytes]
				buf = buf[frameBytes:]

				active, err := classifier.Process(d.sampleRate, chunk)
				if err != nil {
					if d.cb.OnError != nil {
						d.cb.OnError(fmt.Errorf("vad: classify frame: %w", err))
					}
					continue
				}

				if active {
					cancelTimer()
					speechRun++
					if !speaking && speechRun >= speechDebounceFrames {
						speaking = true
						if d.cb.OnSpeechStart != nil {
							d.cb.OnSpeechStart()
						}
					}
				} else {
					speechRun = 0
					if speaking && timer == nil {
						timer = d.clock.NewTimer(d.silenceTimeout)
						timerC = timer.C()
					}
				}
			}
		}
	}
}
