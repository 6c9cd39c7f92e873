// Package openai provides an OpenAI-backed TTS provider using the audio
// speech API. It implements the tts.Provider interface.
//
// The speech endpoint is not chunk-streaming, so SynthesizeStream yields the
// complete clip as a single chunk and closes the channel.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/voxline/pkg/provider/tts"
)

const defaultModel = oai.SpeechModelTTS1

// builtinVoices is the fixed catalogue the speech API accepts. There is no
// list endpoint; the set is documented by OpenAI.
var builtinVoices = []string{"alloy", "ash", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}

// config holds optional configuration for the provider.
type config struct {
	model   oai.SpeechModel
	format  oai.AudioSpeechNewParamsResponseFormat
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel overrides the speech model (default tts-1).
func WithModel(model string) Option {
	return func(c *config) { c.model = oai.SpeechModel(model) }
}

// WithResponseFormat sets the audio container (default wav, which the
// playback side decodes without extra codecs).
func WithResponseFormat(format string) Option {
	return func(c *config) { c.format = oai.AudioSpeechNewParamsResponseFormat(format) }
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client    oai.Client
	model     oai.SpeechModel
	format    oai.AudioSpeechNewParamsResponseFormat
	hasAPIKey bool
}

// New constructs an OpenAI TTS provider. An empty apiKey yields a provider
// that reports itself unavailable rather than an error.
func New(apiKey string, opts ...Option) *Provider {
	cfg := &config{
		model:  defaultModel,
		format: oai.AudioSpeechNewParamsResponseFormatWAV,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client:    oai.NewClient(reqOpts...),
		model:     cfg.model,
		format:    cfg.format,
		hasAPIKey: apiKey != "",
	}
}

// Synthesize converts text to a complete audio clip with the given voice.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("openai: text must not be empty")
	}
	if voiceID == "" {
		return nil, fmt.Errorf("openai: voiceID must not be empty")
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          p.model,
		Voice:          oai.AudioSpeechNewParamsVoice(voiceID),
		Input:          text,
		ResponseFormat: p.format,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: synthesize: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read audio: %w", err)
	}
	return audio, nil
}

// SynthesizeStream yields the whole clip as one chunk, then closes.
func (p *Provider) SynthesizeStream(ctx context.Context, text, voiceID string) (<-chan []byte, error) {
	audio, err := p.Synthesize(ctx, text, voiceID)
	if err != nil {
		return nil, err
	}
	ch := make(chan []byte, 1)
	ch <- audio
	close(ch)
	return ch, nil
}

// ListVoices returns the speech API's fixed voice catalogue.
func (p *Provider) ListVoices(context.Context) ([]tts.Voice, error) {
	voices := make([]tts.Voice, 0, len(builtinVoices))
	for _, name := range builtinVoices {
		voices = append(voices, tts.Voice{ID: name, Name: name, Provider: p.Name()})
	}
	return voices, nil
}

// IsAvailable reports whether an API key is configured.
func (p *Provider) IsAvailable(context.Context) bool { return p.hasAPIKey }

// Name returns "openai".
func (p *Provider) Name() string { return "openai" }

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)
