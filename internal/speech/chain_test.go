package speech_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/voxline/internal/observe"
	"github.com/MrWong99/voxline/internal/speech"
	sttmock "github.com/MrWong99/voxline/pkg/provider/stt/mock"
	"github.com/MrWong99/voxline/pkg/provider/tts"
	ttsmock "github.com/MrWong99/voxline/pkg/provider/tts/mock"
	"github.com/MrWong99/voxline/pkg/voice"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// ─── STT chain ───────────────────────────────────────────────────────────────

func TestSTTChain_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Available: true, Transcript: "hello"}
	fallback := &sttmock.Provider{Available: true, Transcript: "unused"}
	chain := speech.NewSTTChain(primary, fallback, speech.WithMetrics(testMetrics(t)))

	text, err := chain.Transcribe(context.Background(), "/tmp/clip.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello" {
		t.Errorf("transcript = %q, want %q", text, "hello")
	}
	if fallback.CallCount() != 0 {
		t.Error("fallback was called although primary succeeded")
	}
}

func TestSTTChain_FallsBackOnPrimaryFailure(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Available: true, TranscribeErr: errors.New("rate limited")}
	fallback := &sttmock.Provider{Available: true, Transcript: "recovered"}
	chain := speech.NewSTTChain(primary, fallback, speech.WithMetrics(testMetrics(t)))

	text, err := chain.Transcribe(context.Background(), "/tmp/clip.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "recovered" {
		t.Errorf("transcript = %q, want %q", text, "recovered")
	}
	if primary.CallCount() != 1 || fallback.CallCount() != 1 {
		t.Errorf("calls primary=%d fallback=%d, want 1/1", primary.CallCount(), fallback.CallCount())
	}
}

func TestSTTChain_BothFailSurfacesFallbackError(t *testing.T) {
	t.Parallel()

	primaryErr := errors.New("primary down")
	fallbackErr := errors.New("fallback down")
	primary := &sttmock.Provider{Available: true, TranscribeErr: primaryErr}
	fallback := &sttmock.Provider{Available: true, TranscribeErr: fallbackErr}
	chain := speech.NewSTTChain(primary, fallback, speech.WithMetrics(testMetrics(t)))

	_, err := chain.Transcribe(context.Background(), "/tmp/clip.wav")
	var tErr *voice.TranscriptionError
	if !errors.As(err, &tErr) {
		t.Fatalf("error = %v, want *voice.TranscriptionError", err)
	}
	if !errors.Is(err, fallbackErr) {
		t.Error("error does not wrap the fallback's error")
	}
	if errors.Is(err, primaryErr) {
		t.Error("error wraps the primary's error; it must be logged only")
	}
}

func TestSTTChain_FallbackTriedExactlyOnce(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Available: true, TranscribeErr: errors.New("x")}
	fallback := &sttmock.Provider{Available: true, TranscribeErr: errors.New("y")}
	chain := speech.NewSTTChain(primary, fallback, speech.WithMetrics(testMetrics(t)))

	chain.Transcribe(context.Background(), "/tmp/clip.wav")
	if primary.CallCount() != 1 || fallback.CallCount() != 1 {
		t.Errorf("calls primary=%d fallback=%d, want 1/1", primary.CallCount(), fallback.CallCount())
	}
}

func TestSTTChain_SkipsUnavailablePrimary(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Available: false, Transcript: "never"}
	fallback := &sttmock.Provider{Available: true, Transcript: "from fallback"}
	chain := speech.NewSTTChain(primary, fallback, speech.WithMetrics(testMetrics(t)))

	text, err := chain.Transcribe(context.Background(), "/tmp/clip.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "from fallback" {
		t.Errorf("transcript = %q", text)
	}
	if primary.CallCount() != 0 {
		t.Error("unavailable primary was still called")
	}
}

func TestSTTChain_UnavailablePrimaryFailingFallbackWrapsFallbackError(t *testing.T) {
	t.Parallel()

	fbErr := errors.New("boom")
	primary := &sttmock.Provider{Available: false}
	fallback := &sttmock.Provider{Available: true, TranscribeErr: fbErr}
	chain := speech.NewSTTChain(primary, fallback, speech.WithMetrics(testMetrics(t)))

	_, err := chain.Transcribe(context.Background(), "/tmp/clip.wav")
	if !errors.Is(err, fbErr) {
		t.Errorf("error = %v, want wrap of %v", err, fbErr)
	}
}

func TestSTTChain_NoProvidersAvailable(t *testing.T) {
	t.Parallel()

	chain := speech.NewSTTChain(
		&sttmock.Provider{Available: false},
		nil,
		speech.WithMetrics(testMetrics(t)),
	)

	_, err := chain.Transcribe(context.Background(), "/tmp/clip.wav")
	var suErr *voice.ServiceUnavailableError
	if !errors.As(err, &suErr) {
		t.Fatalf("error = %v, want *voice.ServiceUnavailableError", err)
	}
	if suErr.Service != "stt" {
		t.Errorf("service = %q, want stt", suErr.Service)
	}
	if chain.IsAvailable(context.Background()) {
		t.Error("IsAvailable = true with no available providers")
	}
}

// ─── TTS chain ───────────────────────────────────────────────────────────────

func TestTTSChain_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Available: true, Audio: []byte{1, 2, 3}}
	fallback := &ttsmock.Provider{Available: true, Audio: []byte{9}}
	chain := speech.NewTTSChain(primary, fallback, speech.WithMetrics(testMetrics(t)))

	audio, err := chain.Synthesize(context.Background(), "hi", "v1")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(audio, []byte{1, 2, 3}) {
		t.Errorf("audio = %v", audio)
	}
	if fallback.CallCount() != 0 {
		t.Error("fallback was called although primary succeeded")
	}
}

func TestTTSChain_FallsBackOnPrimaryFailure(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Available: true, SynthesizeErr: errors.New("quota")}
	fallback := &ttsmock.Provider{Available: true, Audio: []byte{7}}
	chain := speech.NewTTSChain(primary, fallback, speech.WithMetrics(testMetrics(t)))

	audio, err := chain.Synthesize(context.Background(), "hi", "v1")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(audio, []byte{7}) {
		t.Errorf("audio = %v, want fallback's clip", audio)
	}
}

func TestTTSChain_BothFailSurfacesFallbackError(t *testing.T) {
	t.Parallel()

	fbErr := errors.New("fallback down")
	primary := &ttsmock.Provider{Available: true, SynthesizeErr: errors.New("primary down")}
	fallback := &ttsmock.Provider{Available: true, SynthesizeErr: fbErr}
	chain := speech.NewTTSChain(primary, fallback, speech.WithMetrics(testMetrics(t)))

	_, err := chain.Synthesize(context.Background(), "hi", "v1")
	var sErr *voice.SynthesisError
	if !errors.As(err, &sErr) {
		t.Fatalf("error = %v, want *voice.SynthesisError", err)
	}
	if !errors.Is(err, fbErr) {
		t.Error("error does not wrap the fallback's error")
	}
}

func TestTTSChain_StreamFallsBack(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Available: true, SynthesizeErr: errors.New("no ws")}
	fallback := &ttsmock.Provider{Available: true, StreamChunks: [][]byte{{1}, {2}}}
	chain := speech.NewTTSChain(primary, fallback, speech.WithMetrics(testMetrics(t)))

	ch, err := chain.SynthesizeStream(context.Background(), "hi", "v1")
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	var chunks [][]byte
	for c := range ch {
		chunks = append(chunks, c)
	}
	if len(chunks) != 2 {
		t.Errorf("got %d chunks, want 2", len(chunks))
	}
}

func TestTTSChain_ListVoicesUsesFirstAvailable(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Available: false}
	fallback := &ttsmock.Provider{
		Available: true,
		Voices:    []tts.Voice{{ID: "v1", Name: "Voice One", Provider: "mock"}},
	}
	chain := speech.NewTTSChain(primary, fallback, speech.WithMetrics(testMetrics(t)))

	voices, err := chain.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "v1" {
		t.Errorf("voices = %+v", voices)
	}
}

func TestTTSChain_NoProvidersAvailable(t *testing.T) {
	t.Parallel()

	chain := speech.NewTTSChain(nil, nil, speech.WithMetrics(testMetrics(t)))
	_, err := chain.Synthesize(context.Background(), "hi", "v1")
	var suErr *voice.ServiceUnavailableError
	if !errors.As(err, &suErr) {
		t.Fatalf("error = %v, want *voice.ServiceUnavailableError", err)
	}
}
