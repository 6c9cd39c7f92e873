package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrWong99/voxline/internal/cache"
	"github.com/MrWong99/voxline/internal/config"
	"github.com/MrWong99/voxline/internal/observe"
	"github.com/MrWong99/voxline/internal/queue"
	"github.com/MrWong99/voxline/internal/speech"
	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/capture"
	"github.com/MrWong99/voxline/pkg/playback"
	"github.com/MrWong99/voxline/pkg/provider/stt"
	"github.com/MrWong99/voxline/pkg/provider/tts"
	"github.com/MrWong99/voxline/pkg/vad"
)

// Devices bundles the platform audio endpoints the app runs on.
type Devices struct {
	Input  audio.InputDevice
	Output audio.OutputDevice
}

// App owns the full voice pipeline: it builds the provider chains from the
// registry, the cache, the playback queue, and the capture session, and tears
// them down in order on Shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observe.Metrics

	store    *cache.Cache
	speaker  *playback.Controller
	queue    *queue.Queue
	session  *Session
	sttChain *speech.STTChain
	ttsChain *speech.TTSChain

	logLevel *slog.LevelVar

	stopOnce sync.Once
}

// Option is a functional option for [New].
type Option func(*App)

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar hands the app the level var backing the process logger so
// a hot-reloaded log_level takes effect.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// transcriptFn and stateFn are wired through to the session and queue.
type callbacks struct {
	onTranscript    func(text string)
	onPlaybackState func(playing bool)
	vadCaps         vad.Capabilities
}

// CallbackOption configures the app's outbound signals.
type CallbackOption func(*callbacks)

// OnTranscript registers the consumer of finished transcripts (typically the
// chat layer publishing the user's message).
func OnTranscript(fn func(text string)) CallbackOption {
	return func(c *callbacks) { c.onTranscript = fn }
}

// OnPlaybackState registers the playback-state-changed signal consumer.
func OnPlaybackState(fn func(playing bool)) CallbackOption {
	return func(c *callbacks) { c.onPlaybackState = fn }
}

// WithVADCapabilities injects the platform capability probe result used by
// the detector factory. Defaults to energy-only detection.
func WithVADCapabilities(caps vad.Capabilities) CallbackOption {
	return func(c *callbacks) { c.vadCaps = caps }
}

// New assembles the pipeline from cfg. Providers are instantiated through
// reg; a chain side with an empty provider name is simply absent. The
// returned app is idle until [App.Start].
func New(cfg *config.Config, reg *config.Registry, dev Devices,
	opts []Option, cbOpts ...CallbackOption) (*App, error) {

	a := &App{cfg: cfg, logger: slog.Default()}
	for _, fn := range opts {
		fn(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	cbs := callbacks{vadCaps: vad.Capabilities{SampleRate: audio.CaptureFormat.SampleRate}}
	for _, fn := range cbOpts {
		fn(&cbs)
	}

	sttPrimary, err := buildSTT(reg, cfg.Providers.STT.Primary)
	if err != nil {
		return nil, err
	}
	sttFallback, err := buildSTT(reg, cfg.Providers.STT.Fallback)
	if err != nil {
		return nil, err
	}
	ttsPrimary, err := buildTTS(reg, cfg.Providers.TTS.Primary)
	if err != nil {
		return nil, err
	}
	ttsFallback, err := buildTTS(reg, cfg.Providers.TTS.Fallback)
	if err != nil {
		return nil, err
	}
	chainOpts := []speech.Option{speech.WithLogger(a.logger), speech.WithMetrics(a.metrics)}
	a.sttChain = speech.NewSTTChain(sttPrimary, sttFallback, chainOpts...)
	a.ttsChain = speech.NewTTSChain(ttsPrimary, ttsFallback, chainOpts...)

	cacheDir := cfg.Audio.CacheDir
	if cacheDir == "" {
		cacheDir = defaultCacheDir()
	}
	a.store, err = cache.New(cacheDir, cache.WithLogger(a.logger), cache.WithMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("app: open audio cache: %w", err)
	}

	a.speaker = playback.NewController(dev.Output, playback.WithLogger(a.logger))

	queueOpts := []queue.Option{
		queue.WithLogger(a.logger),
		queue.WithMetrics(a.metrics),
		queue.WithDefaultVoice(cfg.Speech.DefaultVoice),
		queue.WithAgentVoices(cfg.Speech.AgentVoices),
	}
	if cbs.onPlaybackState != nil {
		queueOpts = append(queueOpts, queue.WithPlaybackStateFunc(cbs.onPlaybackState))
	}
	a.queue = queue.New(a.ttsChain, a.speaker, a.store, cfg.Speech.LocalPubkey, queueOpts...)
	a.queue.SetAutoSpeak(cfg.Speech.AutoSpeakEnabled())

	bcast := audio.NewBroadcaster(broadcastBuffer)
	captureOpts := []capture.ControllerOption{
		capture.WithFrameSource(bcast.Subscribe),
		capture.WithLogger(a.logger),
	}
	if cfg.Audio.RecordingsDir != "" {
		captureOpts = append(captureOpts, capture.WithDirectory(cfg.Audio.RecordingsDir))
	}
	recorder := capture.NewController(dev.Input, captureOpts...)

	factory := func(cb vad.Callbacks) (vad.Detector, error) {
		return vad.New(vad.Kind(cfg.VAD.Engine), cbs.vadCaps, cb,
			vad.WithSensitivity(cfg.VAD.Sensitivity),
			vad.WithSilenceTimeout(cfg.VAD.SilenceTimeoutOrDefault()),
		)
	}
	sessionOpts := []SessionOption{
		WithInterrupter(a.queue),
		WithSessionLogger(a.logger),
		WithSessionMetrics(a.metrics),
	}
	if cbs.onTranscript != nil {
		sessionOpts = append(sessionOpts, WithTranscriptFunc(cbs.onTranscript))
	}
	a.session, err = NewSession(dev.Input, bcast, factory, recorder, a.sttChain, sessionOpts...)
	if err != nil {
		return nil, err
	}

	return a, nil
}

func buildSTT(reg *config.Registry, entry config.ProviderEntry) (stt.Provider, error) {
	if entry.Name == "" {
		return nil, nil
	}
	p, err := reg.CreateSTT(entry)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return p, nil
}

func buildTTS(reg *config.Registry, entry config.ProviderEntry) (tts.Provider, error) {
	if entry.Name == "" {
		return nil, nil
	}
	p, err := reg.CreateTTS(entry)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return p, nil
}

// Session exposes the live voice session for the call controller.
func (a *App) Session() *Session { return a.session }

// Queue exposes the playback queue for the message layer.
func (a *App) Queue() *queue.Queue { return a.queue }

// Cache exposes the synthesized-audio cache.
func (a *App) Cache() *cache.Cache { return a.store }

// Playback exposes the playback controller.
func (a *App) Playback() *playback.Controller { return a.speaker }

// STT exposes the transcription chain, e.g. for readiness probes.
func (a *App) STT() stt.Provider { return a.sttChain }

// TTS exposes the synthesis chain, e.g. for readiness probes.
func (a *App) TTS() tts.Provider { return a.ttsChain }

// ProcessMessages forwards a message batch to the playback queue.
func (a *App) ProcessMessages(batch []queue.Message) {
	a.queue.ProcessMessages(batch)
}

// ApplyDiff applies a hot-reloaded configuration change to the running
// pipeline. Non-reloadable changes are ignored; the watcher's diff never
// carries them.
func (a *App) ApplyDiff(d config.ConfigDiff) {
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(d.NewLogLevel))
		a.logger.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SensitivityChanged {
		a.session.UpdateSensitivity(d.NewSensitivity)
		a.logger.Info("vad sensitivity changed", "sensitivity", d.NewSensitivity)
	}
	if d.AutoSpeakChanged {
		a.queue.SetAutoSpeak(d.NewAutoSpeak)
		a.logger.Info("auto-speak changed", "enabled", d.NewAutoSpeak)
	}
	if d.DefaultVoiceChanged {
		a.queue.SetDefaultVoice(d.NewDefaultVoice)
		a.logger.Info("default voice changed", "voice", d.NewDefaultVoice)
	}
	if d.AgentVoicesChanged {
		a.queue.SetAgentVoices(d.NewAgentVoices)
		a.logger.Info("agent voices changed", "count", len(d.NewAgentVoices))
	}
}

// Shutdown stops the session and the playback queue. Safe to call more than
// once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		if a.session.Running() {
			a.session.Stop()
		}
		a.queue.Close()
		a.logger.Info("voice pipeline shut down")
	})
}

// defaultCacheDir resolves the synthesized-audio cache location when the
// config names none.
func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "voxline-cache")
	}
	return filepath.Join(base, "voxline", "audio")
}

// slogLevel maps a config log level onto slog's scale.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
