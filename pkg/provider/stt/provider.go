// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (e.g., OpenAI Whisper,
// Deepgram, or a local whisper.cpp model) behind a uniform file-based
// interface: hand it a finished WAV recording, get the transcript back.
// Provider chaining (primary plus fallback) is layered on top of this
// interface and stays out of the individual adapters.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts the WAV file at wavPath to text. The file is mono
	// 16 kHz 16-bit PCM as produced by the capture controller. An empty
	// transcript with a nil error is a valid result (silence, noise).
	//
	// The provider must not delete or modify the file; the caller owns it.
	Transcribe(ctx context.Context, wavPath string) (string, error)

	// IsAvailable reports whether the provider is configured well enough to
	// attempt a transcription (credentials present, model loaded). It must be
	// cheap: no network round-trips.
	IsAvailable(ctx context.Context) bool

	// Name identifies the provider in logs and metrics (e.g., "openai").
	Name() string
}
