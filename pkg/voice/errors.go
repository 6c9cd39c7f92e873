package voice

import (
	"errors"
	"fmt"
)

// Sentinel errors for failure conditions that carry no underlying cause.
// Match with errors.Is.
var (
	// ErrPermissionDenied indicates the user denied (or has previously denied)
	// microphone access.
	ErrPermissionDenied = errors.New("voice: microphone permission denied")

	// ErrDeviceNotSupported indicates the audio hardware cannot satisfy the
	// requested format (e.g., no 16 kHz mono input path).
	ErrDeviceNotSupported = errors.New("voice: audio device not supported")

	// ErrInterrupted indicates an operation was cut short by an explicit
	// cancellation (barge-in, CancelRecording, ClearQueue).
	ErrInterrupted = errors.New("voice: interrupted")

	// ErrInitializationFailed indicates a component could not start because
	// its underlying stream or device could not be opened.
	ErrInitializationFailed = errors.New("voice: initialization failed")
)

// ServiceUnavailableError reports that a named speech service cannot be
// reached or is not configured.
type ServiceUnavailableError struct {
	// Service is the provider or subsystem name (e.g., "elevenlabs").
	Service string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("voice: service %q unavailable", e.Service)
}

// NoAPIKeyError reports that a provider was selected but no API key was
// configured for it.
type NoAPIKeyError struct {
	// Provider is the provider name missing its credential.
	Provider string
}

func (e *NoAPIKeyError) Error() string {
	return fmt.Sprintf("voice: no API key configured for provider %q", e.Provider)
}

// RecordingError wraps a failure to start, continue, or finalise a recording.
type RecordingError struct {
	Cause error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("voice: recording failed: %v", e.Cause)
}

func (e *RecordingError) Unwrap() error { return e.Cause }

// TranscriptionError wraps a speech-to-text failure. When a fallback provider
// was attempted, Cause is the fallback's error; the primary's error is logged
// by the chain but not carried here.
type TranscriptionError struct {
	Cause error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("voice: transcription failed: %v", e.Cause)
}

func (e *TranscriptionError) Unwrap() error { return e.Cause }

// SynthesisError wraps a text-to-speech failure, with the same primary/fallback
// semantics as [TranscriptionError].
type SynthesisError struct {
	Cause error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("voice: synthesis failed: %v", e.Cause)
}

func (e *SynthesisError) Unwrap() error { return e.Cause }

// PlaybackError wraps a speaker output failure (decode error, device error).
type PlaybackError struct {
	Cause error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("voice: playback failed: %v", e.Cause)
}

func (e *PlaybackError) Unwrap() error { return e.Cause }

// NetworkError wraps a transport-level failure talking to a remote provider.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("voice: network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }
