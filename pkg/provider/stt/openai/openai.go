// Package openai provides an OpenAI Whisper-backed STT provider using the
// audio transcription API. It implements the stt.Provider interface.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/voxline/pkg/provider/stt"
)

const defaultModel = oai.AudioModelWhisper1

// config holds optional configuration for the provider.
type config struct {
	model    oai.AudioModel
	language string
	baseURL  string
	timeout  time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel overrides the transcription model (default whisper-1).
func WithModel(model string) Option {
	return func(c *config) { c.model = oai.AudioModel(model) }
}

// WithLanguage sets the ISO 639-1 input language hint (e.g., "en").
// Empty lets the model auto-detect.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Provider implements stt.Provider using the OpenAI transcription API.
type Provider struct {
	client    oai.Client
	model     oai.AudioModel
	language  string
	hasAPIKey bool
}

// New constructs an OpenAI STT provider. An empty apiKey yields a provider
// that reports itself unavailable rather than an error, so a half-configured
// chain can still start.
func New(apiKey string, opts ...Option) *Provider {
	cfg := &config{model: defaultModel}
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
		language:  cfg.language,
		hasAPIKey: apiKey != "",
	}
}

// Transcribe uploads the WAV file and returns the recognised text.
func (p *Provider) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return "", fmt.Errorf("openai: open recording: %w", err)
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		Model: p.model,
		File:  f,
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}

	result, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: transcribe: %w", err)
	}
	return result.Text, nil
}

// IsAvailable reports whether an API key is configured.
func (p *Provider) IsAvailable(context.Context) bool { return p.hasAPIKey }

// Name returns "openai".
func (p *Provider) Name() string { return "openai" }

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)
