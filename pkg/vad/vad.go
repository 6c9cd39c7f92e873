// Package vad implements voice activity detection: classifying a live audio
// stream into speech and silence segments and emitting speech-start and
// speech-end events.
//
// Two detector backends are provided behind the same [Detector] interface:
//
//   - [EnergyDetector] — RMS energy with dual-threshold hysteresis and a
//     silence timeout. No external dependencies; works everywhere.
//   - [ModelDetector] — the WebRTC VAD frame classifier, selected when the
//     platform capability probe reports it available.
//
// Both satisfy the same event contract: OnSpeechStart and OnSpeechEnd strictly
// alternate (never two consecutive starts or ends), and a speech segment ends
// only after a full silence-timeout window with no speech energy — brief dips
// below the speech threshold never flap the state.
//
// Frame processing and timer expiry are serialized on one goroutine per
// detector; callbacks are invoked on that goroutine and must not block.
package vad

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/voice"
)

// DefaultSilenceTimeout is how long the signal must stay below the silence
// threshold before a speech segment is considered ended. Tunable between
// [MinSilenceTimeout] and [MaxSilenceTimeout].
const (
	DefaultSilenceTimeout = 1 * time.Second
	MinSilenceTimeout     = 800 * time.Millisecond
	MaxSilenceTimeout     = 1500 * time.Millisecond
)

// Callbacks are the event hooks a detector drives. Nil hooks are skipped.
// Hooks run on the detector's processing goroutine and must return promptly.
type Callbacks struct {
	// OnSpeechStart fires when the user starts talking.
	OnSpeechStart func()

	// OnSpeechEnd fires after the silence timeout elapses with no speech.
	OnSpeechEnd func()

	// OnError receives mid-stream processing failures. The detector keeps
	// running; errors here are informational.
	OnError func(error)
}

// Detector is the stateful speech/silence classifier. One instance owns one
// stream tap at a time.
//
// Start and Stop may be called from any goroutine; UpdateSensitivity is safe
// to call concurrently with frame processing.
type Detector interface {
	// Start begins consuming frames from stream. It fails with
	// [voice.ErrInitializationFailed] if the stream is unusable, or an error
	// if the detector is already running.
	Start(stream <-chan audio.AudioFrame) error

	// Stop cancels any pending silence timer, releases the stream tap, and
	// resets the detector to not-speaking. No events are emitted for a
	// segment cut short by Stop. Safe to call when not running.
	Stop()

	// UpdateSensitivity adjusts detection aggressiveness, 0.0 (conservative)
	// to 1.0 (aggressive). Takes effect on the next frame.
	UpdateSensitivity(s float64)
}

// Thresholds derives the hysteresis pair from a sensitivity in [0, 1].
// Values outside the range are clamped. For every sensitivity the speech
// threshold is strictly above the silence threshold, leaving a dead zone in
// which no transition occurs.
func Thresholds(sensitivity float64) (speech, silence float64) {
	if sensitivity < 0 {
		sensitivity = 0
	}
	if sensitivity > 1 {
		sensitivity = 1
	}
	inverted := 1 - sensitivity
	speech = 0.015 + inverted*0.015  // 0.015‥0.030
	silence = 0.008 + inverted*0.002 // 0.008‥0.010
	return speech, silence
}

// errAlreadyStarted is returned by Start on a running detector.
var errAlreadyStarted = errors.New("vad: detector already started")

// clampSilenceTimeout bounds d to the supported window, defaulting when zero.
func clampSilenceTimeout(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultSilenceTimeout
	}
	if d < MinSilenceTimeout {
		return MinSilenceTimeout
	}
	if d > MaxSilenceTimeout {
		return MaxSilenceTimeout
	}
	return d
}

// checkStream validates the tap handed to Start.
func checkStream(stream <-chan audio.AudioFrame) error {
	if stream == nil {
		return fmt.Errorf("vad: nil audio stream: %w", voice.ErrInitializationFailed)
	}
	return nil
}
