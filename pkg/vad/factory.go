package vad

import (
	"fmt"

	"github.com/MrWong99/voxline/pkg/voice"
)

// Kind selects a detector backend.
type Kind string

const (
	// KindEnergy selects the RMS energy detector.
	KindEnergy Kind = "energy"

	// KindModel selects the WebRTC frame-classifier detector.
	KindModel Kind = "model"

	// KindAuto selects the frame classifier when the capability probe reports
	// it available, falling back to the energy detector otherwise.
	KindAuto Kind = "auto"
)

// IsValid reports whether k is a recognised detector kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindEnergy, KindModel, KindAuto:
		return true
	}
	return false
}

// Capabilities is the injected result of platform capability detection. The
// factory never probes the platform itself, so tests can exercise every
// selection branch.
type Capabilities struct {
	// FrameClassifier reports whether the WebRTC VAD backend is usable on
	// this platform for the given sample rate.
	FrameClassifier bool

	// SampleRate is the capture sample rate the detector will observe.
	SampleRate int
}

// New constructs the detector variant for kind given the platform
// capabilities. Explicitly requesting [KindModel] on a platform without the
// classifier fails with [voice.ErrDeviceNotSupported].
func New(kind Kind, caps Capabilities, cb Callbacks, opts ...Option) (Detector, error) {
	switch kind {
	case KindEnergy:
		return NewEnergyDetector(cb, opts...), nil

	case KindModel:
		if !caps.FrameClassifier {
			return nil, fmt.Errorf("vad: frame classifier not available: %w", voice.ErrDeviceNotSupported)
		}
		return NewModelDetector(cb, caps.SampleRate, opts...)

	case KindAuto, "":
		if caps.FrameClassifier {
			if d, err := NewModelDetector(cb, caps.SampleRate, opts...); err == nil {
				return d, nil
			}
		}
		return NewEnergyDetector(cb, opts...), nil

	default:
		return nil, fmt.Errorf("vad: unknown detector kind %q", kind)
	}
}
