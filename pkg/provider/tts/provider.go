// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or OpenAI)
// behind a uniform interface: text plus a voice ID in, provider-native audio
// bytes out. Synthesize returns the whole clip at once; SynthesizeStream
// yields ordered chunks for providers with a streaming API, and adapters for
// non-streaming providers yield the full clip as a single chunk.
//
// Audio bytes are provider-native and are never transcoded by this layer; the
// playback side decodes whatever the provider produced.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Voice describes one synthesis voice offered by a provider.
type Voice struct {
	// ID is the provider-assigned voice identifier used in synthesis calls.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider is the owning provider's name (matches [Provider.Name]).
	Provider string

	// Metadata carries provider-specific labels (accent, gender, category).
	Metadata map[string]string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text to audio using the given voice and returns the
	// complete clip.
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)

	// SynthesizeStream converts text to audio and emits it as ordered chunks.
	// The returned channel is finite: the implementation closes it when the
	// clip is complete or ctx is cancelled. Non-streaming providers emit one
	// chunk holding the whole clip, then close.
	//
	// A non-nil error is returned only when the stream cannot be started.
	SynthesizeStream(ctx context.Context, text, voiceID string) (<-chan []byte, error)

	// ListVoices returns the provider's current voice catalogue.
	ListVoices(ctx context.Context) ([]Voice, error)

	// IsAvailable reports whether the provider is configured well enough to
	// attempt synthesis. It must be cheap: no network round-trips.
	IsAvailable(ctx context.Context) bool

	// Name identifies the provider in logs and metrics (e.g., "elevenlabs").
	Name() string
}
