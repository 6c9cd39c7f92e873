// Package mock provides a scriptable tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxline/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize or SynthesizeStream.
type SynthesizeCall struct {
	// Text and VoiceID are the arguments the call was made with.
	Text    string
	VoiceID string

	// Streaming is true for SynthesizeStream calls.
	Streaming bool
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock" when empty.
	ProviderName string

	// Audio and SynthesizeErr are returned by Synthesize. SynthesizeStream
	// emits Audio as a single chunk unless StreamChunks is set.
	Audio         []byte
	SynthesizeErr error

	// SynthesizeFn, if set, overrides Audio/SynthesizeErr entirely.
	SynthesizeFn func(ctx context.Context, text, voiceID string) ([]byte, error)

	// StreamChunks, if non-nil, is emitted chunk by chunk from SynthesizeStream.
	StreamChunks [][]byte

	// Voices and ListVoicesErr are returned by ListVoices.
	Voices        []tts.Voice
	ListVoicesErr error

	// Available is returned by IsAvailable. Defaults to false; set explicitly.
	Available bool

	// SynthesizeCalls records every synthesis call in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns the scripted result.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, VoiceID: voiceID})
	fn := p.SynthesizeFn
	audio, err := p.Audio, p.SynthesizeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, voiceID)
	}
	return audio, err
}

// SynthesizeStream records the call and emits the scripted chunks.
func (p *Provider) SynthesizeStream(ctx context.Context, text, voiceID string) (<-chan []byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, VoiceID: voiceID, Streaming: true})
	chunks := p.StreamChunks
	audio, err := p.Audio, p.SynthesizeErr
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = [][]byte{audio}
	}
	ch := make(chan []byte, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

// ListVoices returns the scripted catalogue.
func (p *Provider) ListVoices(context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Voices, p.ListVoicesErr
}

// IsAvailable returns the scripted availability.
func (p *Provider) IsAvailable(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Available
}

// Name returns ProviderName, or "mock" when unset.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// CallCount reports how many synthesis calls were made.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
