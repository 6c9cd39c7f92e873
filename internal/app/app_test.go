package app_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/voxline/internal/app"
	"github.com/MrWong99/voxline/internal/config"
	"github.com/MrWong99/voxline/internal/queue"
	audiomock "github.com/MrWong99/voxline/pkg/audio/mock"
	"github.com/MrWong99/voxline/pkg/provider/stt"
	sttmock "github.com/MrWong99/voxline/pkg/provider/stt/mock"
	"github.com/MrWong99/voxline/pkg/provider/tts"
	ttsmock "github.com/MrWong99/voxline/pkg/provider/tts/mock"
)

// testApp builds an App on mock devices and mock providers.
func testApp(t *testing.T, cfg *config.Config) (*app.App, *ttsmock.Provider, *audiomock.OutputDevice) {
	t.Helper()

	synth := &ttsmock.Provider{Available: true, Audio: []byte{0xAB}}
	trans := &sttmock.Provider{Available: true, Transcript: "hi"}

	reg := config.NewRegistry()
	reg.RegisterSTT("mock", func(config.ProviderEntry) (stt.Provider, error) { return trans, nil })
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) { return synth, nil })

	out := &audiomock.OutputDevice{AutoComplete: true}
	dev := app.Devices{
		Input:  &audiomock.InputDevice{},
		Output: out,
	}

	a, err := app.New(cfg, reg, dev, []app.Option{app.WithMetrics(sessionMetrics(t))})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Shutdown)
	return a, synth, out
}

func baseConfig() *config.Config {
	return &config.Config{
		Audio: config.AudioConfig{CacheDir: ""},
		VAD:   config.VADConfig{Engine: config.VADEnergy, Sensitivity: 0.5},
		Providers: config.ProvidersConfig{
			STT: config.ChainConfig{Primary: config.ProviderEntry{Name: "mock"}},
			TTS: config.ChainConfig{Primary: config.ProviderEntry{Name: "mock"}},
		},
		Speech: config.SpeechConfig{
			LocalPubkey:  "me",
			DefaultVoice: "alloy",
		},
	}
}

func TestApp_New_WiresPipeline(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Audio.CacheDir = t.TempDir()
	a, _, _ := testApp(t, cfg)

	if a.Session() == nil || a.Queue() == nil || a.Cache() == nil || a.Playback() == nil {
		t.Fatal("app left a subsystem nil")
	}
}

func TestApp_New_UnregisteredProviderFails(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Audio.CacheDir = t.TempDir()
	cfg.Providers.STT.Primary.Name = "nope"

	reg := config.NewRegistry()
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})

	_, err := app.New(cfg, reg, app.Devices{
		Input:  &audiomock.InputDevice{},
		Output: &audiomock.OutputDevice{},
	}, nil)
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestApp_ProcessMessagesSpeaksThroughDevice(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Audio.CacheDir = t.TempDir()
	a, _, out := testApp(t, cfg)

	a.ProcessMessages(nil) // latch
	a.ProcessMessages([]queue.Message{{ID: "m1", Content: "hello", Pubkey: "agent"}})

	poll(t, "device playback", func() bool { return len(out.Played()) == 1 })
}

func TestApp_ApplyDiffUpdatesQueue(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Audio.CacheDir = t.TempDir()
	a, synth, _ := testApp(t, cfg)

	a.ApplyDiff(config.ConfigDiff{
		AutoSpeakChanged:    true,
		NewAutoSpeak:        true,
		DefaultVoiceChanged: true,
		NewDefaultVoice:     "nova",
		SensitivityChanged:  true,
		NewSensitivity:      0.9,
	})

	a.ProcessMessages(nil)
	a.ProcessMessages([]queue.Message{{ID: "m1", Content: "hello", Pubkey: "agent"}})

	poll(t, "synthesis with new default voice", func() bool { return synth.CallCount() == 1 })
	if got := synth.SynthesizeCalls[0].VoiceID; got != "nova" {
		t.Errorf("voice = %q, want the hot-reloaded default", got)
	}
}

func TestApp_ApplyDiffDisablesAutoSpeak(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Audio.CacheDir = t.TempDir()
	a, _, out := testApp(t, cfg)

	a.ApplyDiff(config.ConfigDiff{AutoSpeakChanged: true, NewAutoSpeak: false})

	a.ProcessMessages(nil)
	a.ProcessMessages([]queue.Message{{ID: "m1", Content: "hello", Pubkey: "agent"}})

	if a.Queue().AutoSpeak() {
		t.Error("auto-speak still enabled after diff")
	}
	if got := len(out.Played()); got != 0 {
		t.Errorf("played %d messages with auto-speak disabled", got)
	}
}
