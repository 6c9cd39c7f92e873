// Package coqui provides a local Coqui TTS-backed provider targeting the
// standard Coqui TTS server (ghcr.io/coqui-ai/tts-cpu). It implements the
// tts.Provider interface.
//
// Synthesis is performed via GET /api/tts with URL query parameters; the
// voice catalogue is retrieved from GET /details. The server operates in
// batch mode (one HTTP call per utterance), so SynthesizeStream yields the
// complete clip as a single chunk. Audio bytes are the server's WAV output,
// returned unmodified.
package coqui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/MrWong99/voxline/pkg/provider/tts"
)

const (
	apiTTSEndpoint  = "/api/tts"
	detailsEndpoint = "/details"
	defaultTimeout  = 30 * time.Second
)

// Option is a functional option for configuring the Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language_id query parameter for multilingual models.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithTimeout sets the HTTP request timeout. Defaults to 30 s; local Coqui
// servers on CPU can take several seconds per sentence.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements tts.Provider backed by a standard Coqui TTS server.
type Provider struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

// New creates a Coqui Provider for the server at serverURL (e.g.,
// "http://localhost:5002"). An empty serverURL yields a provider that reports
// itself unavailable rather than an error.
func New(serverURL string, opts ...Option) *Provider {
	p := &Provider{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize performs a single GET /api/tts request and returns the server's
// WAV response. voiceID selects the speaker for multi-speaker models; it may
// be empty for single-speaker models.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("coqui: text must not be empty")
	}

	params := url.Values{}
	params.Set("text", text)
	if voiceID != "" {
		params.Set("speaker_id", voiceID)
	}
	if p.language != "" {
		params.Set("language_id", p.language)
	}

	reqURL := p.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", apiTTSEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	return wav, nil
}

// SynthesizeStream yields the whole clip as one chunk, then closes. The
// standard Coqui server has no streaming endpoint.
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

// detailsResponse is the JSON body returned by GET /details. Speakers is nil
// for single-speaker models and non-nil for multi-speaker models.
type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// ListVoices retrieves model info via GET /details. For multi-speaker models
// it returns one Voice per speaker; for single-speaker models it returns a
// single Voice identified by the model name.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+detailsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create list-voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", detailsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", detailsEndpoint, resp.StatusCode)
	}

	var details detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("coqui: decode details response: %w", err)
	}
	return voicesFromDetails(details), nil
}

// voicesFromDetails maps a details response to the provider-neutral catalogue.
func voicesFromDetails(details detailsResponse) []tts.Voice {
	if len(details.Speakers) > 0 {
		speakers := make([]string, len(details.Speakers))
		copy(speakers, details.Speakers)
		sort.Strings(speakers)

		voices := make([]tts.Voice, 0, len(speakers))
		for _, spk := range speakers {
			voices = append(voices, tts.Voice{
				ID:       spk,
				Name:     spk,
				Provider: "coqui",
				Metadata: map[string]string{
					"type":       "speaker",
					"model_name": details.ModelName,
				},
			})
		}
		return voices
	}

	name := details.ModelName
	if name == "" {
		name = "default"
	}
	return []tts.Voice{{
		ID:       name,
		Name:     name,
		Provider: "coqui",
		Metadata: map[string]string{"type": "model"},
	}}
}

// IsAvailable reports whether a server URL is configured.
func (p *Provider) IsAvailable(context.Context) bool { return p.serverURL != "" }

// Name returns "coqui".
func (p *Provider) Name() string { return "coqui" }

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)
