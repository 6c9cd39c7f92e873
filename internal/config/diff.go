package config

import "maps"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; device and
// provider changes require a restart and are deliberately ignored here.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SensitivityChanged bool
	NewSensitivity     float64

	AutoSpeakChanged bool
	NewAutoSpeak     bool

	DefaultVoiceChanged bool
	NewDefaultVoice     string

	AgentVoicesChanged bool
	NewAgentVoices     map[string]string
}

// Empty reports whether the diff carries no changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SensitivityChanged && !d.AutoSpeakChanged &&
		!d.DefaultVoiceChanged && !d.AgentVoicesChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	if old.VAD.Sensitivity != new.VAD.Sensitivity {
		d.SensitivityChanged = true
		d.NewSensitivity = new.VAD.Sensitivity
	}

	if old.Speech.AutoSpeakEnabled() != new.Speech.AutoSpeakEnabled() {
		d.AutoSpeakChanged = true
		d.NewAutoSpeak = new.Speech.AutoSpeakEnabled()
	}

	if old.Speech.DefaultVoice != new.Speech.DefaultVoice {
		d.DefaultVoiceChanged = true
		d.NewDefaultVoice = new.Speech.DefaultVoice
	}

	if !maps.Equal(old.Speech.AgentVoices, new.Speech.AgentVoices) {
		d.AgentVoicesChanged = true
		d.NewAgentVoices = maps.Clone(new.Speech.AgentVoices)
	}

	return d
}
