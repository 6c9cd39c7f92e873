// Package speech orchestrates STT and TTS providers into primary/fallback
// chains.
//
// A chain tries its primary provider first. On any failure it logs the
// primary's error once and tries the fallback exactly once; if the fallback
// also fails the caller receives a typed error wrapping the fallback's error
// only. A provider that reports itself unavailable is skipped without
// counting as a failed attempt.
//
// Both chains implement the same provider interface they wrap, so callers
// never know whether they talk to a single provider or a chain.
package speech

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/voxline/internal/observe"
	"github.com/MrWong99/voxline/pkg/provider/stt"
	"github.com/MrWong99/voxline/pkg/provider/tts"
	"github.com/MrWong99/voxline/pkg/voice"
)

// chainOptions carries the ambient dependencies shared by both chain kinds.
type chainOptions struct {
	logger  *slog.Logger
	metrics *observe.Metrics
}

// Option configures a chain.
type Option func(*chainOptions)

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(o *chainOptions) { o.logger = l }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *chainOptions) { o.metrics = m }
}

func applyOptions(opts []Option) chainOptions {
	o := chainOptions{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// ─── STT chain ───────────────────────────────────────────────────────────────

// STTChain is a primary/fallback pair of STT providers. It implements
// stt.Provider itself.
type STTChain struct {
	primary  stt.Provider
	fallback stt.Provider
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// NewSTTChain builds a transcription chain. fallback may be nil.
func NewSTTChain(primary, fallback stt.Provider, opts ...Option) *STTChain {
	o := applyOptions(opts)
	return &STTChain{
		primary:  primary,
		fallback: fallback,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// Transcribe runs the chain policy over the WAV file at wavPath.
func (c *STTChain) Transcribe(ctx context.Context, wavPath string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "stt.transcribe")
	defer span.End()

	var candidates []stt.Provider
	for _, p := range []stt.Provider{c.primary, c.fallback} {
		if p == nil {
			continue
		}
		if !p.IsAvailable(ctx) {
			c.logger.Debug("skipping unavailable stt provider", "provider", p.Name())
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return "", &voice.ServiceUnavailableError{Service: "stt"}
	}

	try := func(p stt.Provider) (string, error) {
		start := time.Now()
		text, err := p.Transcribe(ctx, wavPath)
		if err != nil {
			c.metrics.RecordProviderRequest(ctx, p.Name(), "stt", "error")
			c.metrics.RecordProviderError(ctx, p.Name(), "stt")
			return "", err
		}
		c.metrics.STTDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("provider", p.Name())))
		c.metrics.RecordProviderRequest(ctx, p.Name(), "stt", "ok")
		return text, nil
	}

	text, err := try(candidates[0])
	if err == nil {
		return text, nil
	}
	if len(candidates) == 1 {
		return "", &voice.TranscriptionError{Cause: err}
	}

	// The first provider's error is logged once and then swallowed in favour
	// of the fallback's outcome.
	c.logger.Warn("stt provider failed, trying fallback",
		"provider", candidates[0].Name(), "error", err)

	text, err = try(candidates[1])
	if err != nil {
		return "", &voice.TranscriptionError{Cause: err}
	}
	return text, nil
}

// IsAvailable reports whether any provider in the chain is available.
func (c *STTChain) IsAvailable(ctx context.Context) bool {
	for _, p := range []stt.Provider{c.primary, c.fallback} {
		if p != nil && p.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

// Name returns "stt-chain".
func (c *STTChain) Name() string { return "stt-chain" }

// Compile-time assertion that STTChain satisfies stt.Provider.
var _ stt.Provider = (*STTChain)(nil)

// ─── TTS chain ───────────────────────────────────────────────────────────────

// TTSChain is a primary/fallback pair of TTS providers. It implements
// tts.Provider itself.
type TTSChain struct {
	primary  tts.Provider
	fallback tts.Provider
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// NewTTSChain builds a synthesis chain. fallback may be nil.
func NewTTSChain(primary, fallback tts.Provider, opts ...Option) *TTSChain {
	o := applyOptions(opts)
	return &TTSChain{
		primary:  primary,
		fallback: fallback,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// Synthesize runs the chain policy for a full-clip synthesis.
func (c *TTSChain) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	ctx, span := observe.StartSpan(ctx, "tts.synthesize")
	defer span.End()

	var out []byte
	err := c.attempt(ctx, func(p tts.Provider) error {
		start := time.Now()
		audio, err := p.Synthesize(ctx, text, voiceID)
		if err != nil {
			return err
		}
		c.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("provider", p.Name())))
		out = audio
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SynthesizeStream runs the chain policy for a streaming synthesis. Failures
// after the stream has started are the provider's to signal by closing the
// channel; the chain only falls back when the stream cannot be started.
func (c *TTSChain) SynthesizeStream(ctx context.Context, text, voiceID string) (<-chan []byte, error) {
	ctx, span := observe.StartSpan(ctx, "tts.synthesize_stream")
	defer span.End()

	var out <-chan []byte
	err := c.attempt(ctx, func(p tts.Provider) error {
		ch, err := p.SynthesizeStream(ctx, text, voiceID)
		if err != nil {
			return err
		}
		out = ch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListVoices returns the first available provider's catalogue, falling back
// on error.
func (c *TTSChain) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	var out []tts.Voice
	err := c.attempt(ctx, func(p tts.Provider) error {
		voices, err := p.ListVoices(ctx)
		if err != nil {
			return err
		}
		out = voices
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// attempt applies the chain policy to one operation: primary, then fallback
// once, wrapping only the fallback's error.
func (c *TTSChain) attempt(ctx context.Context, op func(tts.Provider) error) error {
	var candidates []tts.Provider
	for _, p := range []tts.Provider{c.primary, c.fallback} {
		if p == nil {
			continue
		}
		if !p.IsAvailable(ctx) {
			c.logger.Debug("skipping unavailable tts provider", "provider", p.Name())
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return &voice.ServiceUnavailableError{Service: "tts"}
	}

	try := func(p tts.Provider) error {
		err := op(p)
		if err != nil {
			c.metrics.RecordProviderRequest(ctx, p.Name(), "tts", "error")
			c.metrics.RecordProviderError(ctx, p.Name(), "tts")
			return err
		}
		c.metrics.RecordProviderRequest(ctx, p.Name(), "tts", "ok")
		return nil
	}

	err := try(candidates[0])
	if err == nil {
		return nil
	}
	if len(candidates) == 1 {
		return &voice.SynthesisError{Cause: err}
	}

	c.logger.Warn("tts provider failed, trying fallback",
		"provider", candidates[0].Name(), "error", err)

	if err := try(candidates[1]); err != nil {
		return &voice.SynthesisError{Cause: err}
	}
	return nil
}

// IsAvailable reports whether any provider in the chain is available.
func (c *TTSChain) IsAvailable(ctx context.Context) bool {
	for _, p := range []tts.Provider{c.primary, c.fallback} {
		if p != nil && p.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

// Name returns "tts-chain".
func (c *TTSChain) Name() string { return "tts-chain" }

// Compile-time assertion that TTSChain satisfies tts.Provider.
var _ tts.Provider = (*TTSChain)(nil)
