package openai

import (
	"context"
	"testing"
)

func TestAvailability(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if New("").IsAvailable(ctx) {
		t.Error("provider without key reports available")
	}
	if !New("key").IsAvailable(ctx) {
		t.Error("provider with key reports unavailable")
	}
	if got := New("key").Name(); got != "openai" {
		t.Errorf("Name() = %s", got)
	}
}

func TestListVoices_FixedCatalogue(t *testing.T) {
	t.Parallel()

	voices, err := New("key").ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != len(builtinVoices) {
		t.Fatalf("got %d voices, want %d", len(voices), len(builtinVoices))
	}
	for i, v := range voices {
		if v.ID != builtinVoices[i] || v.Provider != "openai" {
			t.Errorf("voice %d = %+v", i, v)
		}
	}
}

func TestInputValidation(t *testing.T) {
	t.Parallel()

	p := New("key")
	ctx := context.Background()
	if _, err := p.Synthesize(ctx, "", "alloy"); err == nil {
		t.Error("Synthesize with empty text: want error")
	}
	if _, err := p.Synthesize(ctx, "hi", ""); err == nil {
		t.Error("Synthesize with empty voice: want error")
	}
}
