package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Silence timeout bounds. Values outside this window make the detector feel
// either twitchy or unresponsive.
const (
	MinSilenceTimeout     = 800 * time.Millisecond
	MaxSilenceTimeout     = 1500 * time.Millisecond
	DefaultSilenceTimeout = time.Second
)

// ValidProviderNames lists known provider names per capability.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"openai", "deepgram", "whisper"},
	"tts": {"elevenlabs", "openai", "coqui"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.VAD.Engine != "" && !cfg.VAD.Engine.IsValid() {
		errs = append(errs, fmt.Errorf("vad.engine %q is invalid; valid values: auto, energy, model", cfg.VAD.Engine))
	}
	if cfg.VAD.Sensitivity < 0 || cfg.VAD.Sensitivity > 1 {
		errs = append(errs, fmt.Errorf("vad.sensitivity %.2f is out of range [0, 1]", cfg.VAD.Sensitivity))
	}
	if t := cfg.VAD.SilenceTimeout; t != 0 && (t < MinSilenceTimeout || t > MaxSilenceTimeout) {
		errs = append(errs, fmt.Errorf("vad.silence_timeout %s is out of range [%s, %s]",
			t, MinSilenceTimeout, MaxSilenceTimeout))
	}

	validateProviderName("stt", cfg.Providers.STT.Primary.Name)
	validateProviderName("stt", cfg.Providers.STT.Fallback.Name)
	validateProviderName("tts", cfg.Providers.TTS.Primary.Name)
	validateProviderName("tts", cfg.Providers.TTS.Fallback.Name)

	if cfg.Providers.STT.Primary.Name == "" && cfg.Providers.STT.Fallback.Name == "" {
		slog.Warn("no STT provider configured; speech will not be transcribed")
	}
	if cfg.Providers.TTS.Primary.Name == "" && cfg.Providers.TTS.Fallback.Name == "" {
		slog.Warn("no TTS provider configured; messages will not be spoken")
	}

	if cfg.Speech.LocalPubkey == "" {
		slog.Warn("speech.local_pubkey is empty; the user's own messages cannot be filtered out")
	}
	for pk, v := range cfg.Speech.AgentVoices {
		if v == "" {
			errs = append(errs, fmt.Errorf("speech.agent_voices[%q] must not be empty", pk))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// SilenceTimeoutOrDefault resolves the configured silence timeout, applying
// the default and clamping to the allowed window.
func (c VADConfig) SilenceTimeoutOrDefault() time.Duration {
	t := c.SilenceTimeout
	if t == 0 {
		return DefaultSilenceTimeout
	}
	if t < MinSilenceTimeout {
		return MinSilenceTimeout
	}
	if t > MaxSilenceTimeout {
		return MaxSilenceTimeout
	}
	return t
}
