package audio

import (
	"context"
	"errors"
)

// PermissionStatus is the microphone authorisation state reported by an
// [InputDevice].
type PermissionStatus int

const (
	// PermissionUndetermined means the user has not yet been asked.
	PermissionUndetermined PermissionStatus = iota

	// PermissionGranted means microphone access is allowed.
	PermissionGranted

	// PermissionDenied means the user has refused microphone access.
	PermissionDenied
)

// String returns the human-readable name of the permission status.
func (p PermissionStatus) String() string {
	switch p {
	case PermissionUndetermined:
		return "undetermined"
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// InputStream is a live microphone tap. Frames are delivered in capture order
// on the channel returned by Frames; the channel is closed when the stream is
// closed or the device fails.
//
// The stream goroutine never blocks on a slow consumer indefinitely — callers
// that cannot keep up should subscribe through a [Broadcaster] instead of
// reading the raw stream.
type InputStream interface {
	// Frames returns the read-only channel of captured frames. The channel is
	// closed when the stream ends.
	Frames() <-chan AudioFrame

	// Close releases the device tap. Safe to call more than once.
	Close() error
}

// InputDevice is the entry point for a microphone implementation.
//
// Implementations must be safe for concurrent use.
type InputDevice interface {
	// Permission reports the current authorisation state without prompting.
	Permission() PermissionStatus

	// RequestPermission prompts the user if the state is undetermined and
	// reports whether access is now granted. When the state is already
	// determined it returns immediately without prompting.
	RequestPermission(ctx context.Context) (bool, error)

	// Open starts capturing in the requested format and returns a live stream.
	// Returns an error if the device cannot satisfy the format or permission
	// has not been granted.
	Open(ctx context.Context, format Format) (InputStream, error)
}

// ErrPlaybackStopped is delivered on a [Playback] handle's Done channel when
// playback was cut short by an explicit Stop rather than by completion or a
// decode failure.
var ErrPlaybackStopped = errors.New("audio: playback stopped")

// Playback is an in-flight playback of a single audio blob.
//
// The Done channel delivers exactly one value over the playback's lifetime:
// nil on clean completion, [ErrPlaybackStopped] after Stop, or the decode or
// device error that ended playback early. Implementations must never leave
// Done unresolved.
type Playback interface {
	// Done returns the single-shot completion channel.
	Done() <-chan error

	// Pause suspends output without resolving Done.
	Pause() error

	// Resume continues output after Pause.
	Resume() error

	// Stop ends playback and resolves Done with [ErrPlaybackStopped]. Safe to
	// call more than once; subsequent calls are no-ops.
	Stop() error

	// Progress reports playback position in [0.0, 1.0].
	Progress() float64
}

// OutputDevice is the entry point for a speaker implementation.
//
// Implementations must be safe for concurrent use; whether concurrent
// playbacks mix or interleave is implementation-defined, so callers that need
// exclusive speaker access must serialise externally (the playback controller
// does this).
type OutputDevice interface {
	// Start begins playback of data (provider-native audio bytes) and returns
	// the in-flight handle. Returns an error if the blob cannot be decoded at
	// all or the device cannot be opened.
	Start(ctx context.Context, data []byte) (Playback, error)
}
