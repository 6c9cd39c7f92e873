package elevenlabs

import (
	"context"
	"encoding/json"
	"testing"
)

func TestParseVoicesResponse(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"voices": [
			{"voice_id": "v1", "name": "Rachel", "category": "premade",
			 "labels": {"accent": "american", "gender": "female"}},
			{"voice_id": "v2", "name": "Custom"}
		]
	}`)

	voices, err := parseVoicesResponse(raw)
	if err != nil {
		t.Fatalf("parseVoicesResponse: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}

	first := voices[0]
	if first.ID != "v1" || first.Name != "Rachel" || first.Provider != "elevenlabs" {
		t.Errorf("first voice = %+v", first)
	}
	if first.Metadata["accent"] != "american" || first.Metadata["category"] != "premade" {
		t.Errorf("first voice metadata = %v", first.Metadata)
	}
	if voices[1].ID != "v2" || len(voices[1].Metadata) != 0 {
		t.Errorf("second voice = %+v", voices[1])
	}
}

func TestParseVoicesResponse_InvalidJSON(t *testing.T) {
	t.Parallel()

	if _, err := parseVoicesResponse([]byte("{not json")); err == nil {
		t.Error("want error for invalid JSON, got nil")
	}
}

func TestBuildURLs(t *testing.T) {
	t.Parallel()

	got := buildSynthesizeURL("abc", "pcm_16000")
	want := "https://api.elevenlabs.io/v1/text-to-speech/abc?output_format=pcm_16000"
	if got != want {
		t.Errorf("buildSynthesizeURL = %s, want %s", got, want)
	}

	got = buildWSURL("abc", "eleven_flash_v2_5", "pcm_16000")
	want = "wss://api.elevenlabs.io/v1/text-to-speech/abc/stream-input?model_id=eleven_flash_v2_5&output_format=pcm_16000"
	if got != want {
		t.Errorf("buildWSURL = %s, want %s", got, want)
	}
}

func TestSynthesizeRequestShape(t *testing.T) {
	t.Parallel()

	body, err := json.Marshal(synthesizeRequest{
		Text:          "hello",
		ModelID:       defaultModel,
		VoiceSettings: defaultVoiceSettings(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["text"] != "hello" || decoded["model_id"] != defaultModel {
		t.Errorf("request body = %s", body)
	}
	vs, ok := decoded["voice_settings"].(map[string]any)
	if !ok || vs["stability"] != 0.5 || vs["similarity_boost"] != 0.75 {
		t.Errorf("voice_settings = %v", decoded["voice_settings"])
	}
}

func TestInputValidation(t *testing.T) {
	t.Parallel()

	p := New("key")
	ctx := context.Background()

	if _, err := p.Synthesize(ctx, "", "voice"); err == nil {
		t.Error("Synthesize with empty text: want error")
	}
	if _, err := p.Synthesize(ctx, "hi", ""); err == nil {
		t.Error("Synthesize with empty voice: want error")
	}
	if _, err := p.SynthesizeStream(ctx, "", "voice"); err == nil {
		t.Error("SynthesizeStream with empty text: want error")
	}
	if _, err := p.SynthesizeStream(ctx, "hi", ""); err == nil {
		t.Error("SynthesizeStream with empty voice: want error")
	}
}

func TestAvailability(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if New("").IsAvailable(ctx) {
		t.Error("provider without key reports available")
	}
	if !New("key").IsAvailable(ctx) {
		t.Error("provider with key reports unavailable")
	}
	if got := New("key").Name(); got != "elevenlabs" {
		t.Errorf("Name() = %s", got)
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	p := New("key", WithModel("eleven_turbo_v2"), WithOutputFormat("pcm_24000"))
	if p.model != "eleven_turbo_v2" {
		t.Errorf("model = %s", p.model)
	}
	if p.outputFormat != "pcm_24000" {
		t.Errorf("outputFormat = %s", p.outputFormat)
	}
}
