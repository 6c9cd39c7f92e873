package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxline/internal/config"
)

const fullConfig = `
log_level: debug
audio:
  recordings_dir: /tmp/voxline-recordings
  cache_dir: /var/lib/voxline/cache
  input_device: "USB Microphone"
  output_device: ""
vad:
  engine: energy
  sensitivity: 0.5
  silence_timeout: 1s
providers:
  stt:
    primary:
      name: openai
      api_key: sk-test
      model: whisper-1
      options:
        language: en
    fallback:
      name: deepgram
      api_key: dg-test
  tts:
    primary:
      name: elevenlabs
      api_key: el-test
      model: eleven_flash_v2_5
    fallback:
      name: coqui
      base_url: http://localhost:5002
speech:
  local_pubkey: npub1localuser
  auto_speak: true
  default_voice: alloy
  agent_voices:
    npub1agenta: rachel
    npub1agentb: alloy
debug:
  listen_addr: 127.0.0.1:9090
`

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(fullConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	if cfg.VAD.Engine != config.VADEnergy || cfg.VAD.Sensitivity != 0.5 {
		t.Errorf("vad = %+v", cfg.VAD)
	}
	if cfg.VAD.SilenceTimeout != time.Second {
		t.Errorf("silence_timeout = %s", cfg.VAD.SilenceTimeout)
	}
	if cfg.Providers.STT.Primary.Name != "openai" || cfg.Providers.STT.Fallback.Name != "deepgram" {
		t.Errorf("stt providers = %+v", cfg.Providers.STT)
	}
	if got := cfg.Providers.STT.Primary.StringOption("language"); got != "en" {
		t.Errorf("language option = %q", got)
	}
	if cfg.Providers.TTS.Primary.Name != "elevenlabs" {
		t.Errorf("tts primary = %q", cfg.Providers.TTS.Primary.Name)
	}
	if cfg.Speech.LocalPubkey != "npub1localuser" || !cfg.Speech.AutoSpeakEnabled() {
		t.Errorf("speech = %+v", cfg.Speech)
	}
	if cfg.Speech.AgentVoices["npub1agenta"] != "rachel" {
		t.Errorf("agent_voices = %v", cfg.Speech.AgentVoices)
	}
	if cfg.Debug.ListenAddr != "127.0.0.1:9090" {
		t.Errorf("debug.listen_addr = %q", cfg.Debug.ListenAddr)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("log_levle: debug\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadFromReader_AutoSpeakDefaultsTrue(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("speech:\n  local_pubkey: pk\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if !cfg.Speech.AutoSpeakEnabled() {
		t.Error("auto_speak absent should default to enabled")
	}

	cfg, err = config.LoadFromReader(strings.NewReader("speech:\n  local_pubkey: pk\n  auto_speak: false\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Speech.AutoSpeakEnabled() {
		t.Error("auto_speak: false was not honoured")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		LogLevel: "loud",
		VAD: config.VADConfig{
			Engine:         "psychic",
			Sensitivity:    1.5,
			SilenceTimeout: 10 * time.Second,
		},
		Speech: config.SpeechConfig{
			AgentVoices: map[string]string{"pk": ""},
		},
	}

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_level", "vad.engine", "vad.sensitivity", "vad.silence_timeout", "agent_voices"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestSilenceTimeoutOrDefault(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, config.DefaultSilenceTimeout},
		{time.Second, time.Second},
		{100 * time.Millisecond, config.MinSilenceTimeout},
		{time.Minute, config.MaxSilenceTimeout},
	}
	for _, tc := range cases {
		if got := (config.VADConfig{SilenceTimeout: tc.in}).SilenceTimeoutOrDefault(); got != tc.want {
			t.Errorf("SilenceTimeoutOrDefault(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/voxline.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRegistry_CreateUnregistered(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	_, err := r.CreateSTT(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("error = %v, want ErrProviderNotRegistered", err)
	}
	_, err = r.CreateTTS(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("error = %v, want ErrProviderNotRegistered", err)
	}
}
