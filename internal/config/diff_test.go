package config_test

import (
	"testing"

	"github.com/MrWong99/voxline/internal/config"
)

func boolPtr(b bool) *bool { return &b }

func TestDiff_Empty(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		LogLevel: config.LogInfo,
		VAD:      config.VADConfig{Sensitivity: 0.5},
		Speech: config.SpeechConfig{
			DefaultVoice: "alloy",
			AgentVoices:  map[string]string{"pk": "rachel"},
		},
	}
	other := *cfg

	d := config.Diff(cfg, &other)
	if !d.Empty() {
		t.Errorf("diff of identical configs = %+v, want empty", d)
	}
}

func TestDiff_TracksHotReloadableFields(t *testing.T) {
	t.Parallel()

	old := &config.Config{
		LogLevel: config.LogInfo,
		VAD:      config.VADConfig{Sensitivity: 0.5},
		Speech: config.SpeechConfig{
			AutoSpeak:    boolPtr(true),
			DefaultVoice: "alloy",
			AgentVoices:  map[string]string{"pk": "rachel"},
		},
	}
	new := &config.Config{
		LogLevel: config.LogDebug,
		VAD:      config.VADConfig{Sensitivity: 0.8},
		Speech: config.SpeechConfig{
			AutoSpeak:    boolPtr(false),
			DefaultVoice: "nova",
			AgentVoices:  map[string]string{"pk": "adam"},
		},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %+v", d)
	}
	if !d.SensitivityChanged || d.NewSensitivity != 0.8 {
		t.Errorf("sensitivity diff = %+v", d)
	}
	if !d.AutoSpeakChanged || d.NewAutoSpeak {
		t.Errorf("auto-speak diff = %+v", d)
	}
	if !d.DefaultVoiceChanged || d.NewDefaultVoice != "nova" {
		t.Errorf("default voice diff = %+v", d)
	}
	if !d.AgentVoicesChanged || d.NewAgentVoices["pk"] != "adam" {
		t.Errorf("agent voices diff = %+v", d)
	}
}

func TestDiff_IgnoresNonReloadableChanges(t *testing.T) {
	t.Parallel()

	old := &config.Config{
		Audio:     config.AudioConfig{InputDevice: "mic-a"},
		Providers: config.ProvidersConfig{STT: config.ChainConfig{Primary: config.ProviderEntry{Name: "openai"}}},
	}
	new := &config.Config{
		Audio:     config.AudioConfig{InputDevice: "mic-b"},
		Providers: config.ProvidersConfig{STT: config.ChainConfig{Primary: config.ProviderEntry{Name: "deepgram"}}},
	}

	if d := config.Diff(old, new); !d.Empty() {
		t.Errorf("device/provider changes leaked into diff: %+v", d)
	}
}

func TestDiff_AutoSpeakDefaultVsExplicitTrue(t *testing.T) {
	t.Parallel()

	old := &config.Config{}                                                 // absent → enabled
	new := &config.Config{Speech: config.SpeechConfig{AutoSpeak: boolPtr(true)}} // explicit true

	if d := config.Diff(old, new); d.AutoSpeakChanged {
		t.Error("absent and explicit true should not diff")
	}
}
