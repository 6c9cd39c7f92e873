// Package config provides the configuration schema, loader, provider
// registry, and hot-reload watcher for the voxline voice pipeline.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// VADEngine selects the voice activity detection backend.
type VADEngine string

const (
	// VADAuto picks the best backend the device supports.
	VADAuto VADEngine = "auto"

	// VADEnergy uses RMS energy thresholds with hysteresis.
	VADEnergy VADEngine = "energy"

	// VADModel uses a trained speech model when the device supports it.
	VADModel VADEngine = "model"
)

// IsValid reports whether e is a recognised VAD engine.
func (e VADEngine) IsValid() bool {
	switch e {
	case VADAuto, VADEnergy, VADModel:
		return true
	}
	return false
}

// Config is the root configuration structure for voxline.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Defaults to "info" when empty.
	LogLevel LogLevel `yaml:"log_level"`

	Audio     AudioConfig     `yaml:"audio"`
	VAD       VADConfig       `yaml:"vad"`
	Providers ProvidersConfig `yaml:"providers"`
	Speech    SpeechConfig    `yaml:"speech"`
	Debug     DebugConfig     `yaml:"debug"`
}

// AudioConfig holds device selection and filesystem locations for audio data.
type AudioConfig struct {
	// RecordingsDir is the transient directory recordings are written to.
	// Defaults to the OS temp directory when empty.
	RecordingsDir string `yaml:"recordings_dir"`

	// CacheDir is the durable directory for the synthesized-audio cache.
	CacheDir string `yaml:"cache_dir"`

	// InputDevice and OutputDevice name the audio devices to use. Empty
	// selects the system default.
	InputDevice  string `yaml:"input_device"`
	OutputDevice string `yaml:"output_device"`
}

// VADConfig tunes voice activity detection.
type VADConfig struct {
	// Engine selects the detection backend. Defaults to "auto" when empty.
	Engine VADEngine `yaml:"engine"`

	// Sensitivity in [0, 1]. 0 is conservative (high thresholds), 1 is
	// aggressive. Hot-reloadable.
	Sensitivity float64 `yaml:"sensitivity"`

	// SilenceTimeout is how long speech must stay quiet before a speech-end
	// event fires. Clamped to [800ms, 1500ms]; zero selects the default of 1s.
	SilenceTimeout time.Duration `yaml:"silence_timeout"`
}

// ProvidersConfig declares the primary/fallback provider pair for each
// speech capability. Fallback entries may be left empty.
type ProvidersConfig struct {
	STT ChainConfig `yaml:"stt"`
	TTS ChainConfig `yaml:"tts"`
}

// ChainConfig is a primary/fallback provider pair.
type ChainConfig struct {
	Primary  ProviderEntry `yaml:"primary"`
	Fallback ProviderEntry `yaml:"fallback"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "openai", "deepgram", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "whisper-1", "nova-3", "eleven_flash_v2_5").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above (e.g., "language", "model_path").
	Options map[string]any `yaml:"options"`
}

// StringOption returns the named option coerced to a string, or "" when the
// option is absent or not a string.
func (e ProviderEntry) StringOption(key string) string {
	if s, ok := e.Options[key].(string); ok {
		return s
	}
	return ""
}

// SpeechConfig controls how incoming messages are spoken.
type SpeechConfig struct {
	// LocalPubkey identifies the local user; their messages are never spoken.
	LocalPubkey string `yaml:"local_pubkey"`

	// AutoSpeak enables speaking new agent messages as they arrive.
	// Hot-reloadable. Defaults to true; use a pointer so "absent" is
	// distinguishable from "false".
	AutoSpeak *bool `yaml:"auto_speak"`

	// DefaultVoice is used when neither the message nor the agent names one.
	// Hot-reloadable.
	DefaultVoice string `yaml:"default_voice"`

	// AgentVoices maps agent pubkeys to voice IDs. Hot-reloadable.
	AgentVoices map[string]string `yaml:"agent_voices"`
}

// AutoSpeakEnabled resolves the AutoSpeak pointer, defaulting to true.
func (s SpeechConfig) AutoSpeakEnabled() bool {
	return s.AutoSpeak == nil || *s.AutoSpeak
}

// DebugConfig enables the optional local debug endpoint.
type DebugConfig struct {
	// ListenAddr is the TCP address for the /metrics and health endpoint
	// (e.g., "127.0.0.1:9090"). Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`
}
