// Package audio defines the frame types, device interfaces, and signal
// helpers shared by the capture, playback, and voice-activity-detection
// packages.
//
// The two primary abstractions are:
//
//   - [InputDevice] — negotiates microphone permission and opens a live
//     [InputStream] of PCM frames.
//   - [OutputDevice] — starts playback of a single audio blob and returns a
//     [Playback] handle for progress and control.
//
// Implementations of these interfaces are provided by platform-specific
// adapter packages (e.g., audio/portaudio). The interfaces are intentionally
// narrow to keep the controllers decoupled from device details.
//
// This package lives under pkg/ because external code (alternative device
// adapters) is expected to implement [InputDevice] and [OutputDevice].
package audio

import "time"

// AudioFrame represents a single frame of audio data flowing through the
// pipeline. Frames are the atomic unit of audio transport — captured from the
// microphone, classified by the voice activity detector, and written to
// recording files. A frame is immutable once delivered: consumers process it
// and let it go, never retaining or mutating the backing slice.
type AudioFrame struct {
	// Data is raw 16-bit signed little-endian PCM.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT-optimised capture).
	SampleRate int

	// Channels: 1 for mono (the capture path), 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the wall-clock length of the frame, or zero if the frame
// carries no format information.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// CaptureFormat is the canonical recording format: mono 16 kHz 16-bit PCM,
// the hand-off format expected by the transcription providers.
var CaptureFormat = Format{SampleRate: 16000, Channels: 1}
