// Command voxline runs the voice pipeline standalone: it listens on the
// microphone, transcribes detected speech segments, and speaks incoming chat
// messages fed as JSON lines on stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voxline/internal/app"
	"github.com/MrWong99/voxline/internal/config"
	"github.com/MrWong99/voxline/internal/health"
	"github.com/MrWong99/voxline/internal/observe"
	"github.com/MrWong99/voxline/internal/queue"
	"github.com/MrWong99/voxline/pkg/audio"
	audioportaudio "github.com/MrWong99/voxline/pkg/audio/portaudio"
	"github.com/MrWong99/voxline/pkg/provider/stt"
	"github.com/MrWong99/voxline/pkg/provider/stt/deepgram"
	sttopenai "github.com/MrWong99/voxline/pkg/provider/stt/openai"
	"github.com/MrWong99/voxline/pkg/provider/stt/whisper"
	"github.com/MrWong99/voxline/pkg/provider/tts"
	"github.com/MrWong99/voxline/pkg/provider/tts/coqui"
	"github.com/MrWong99/voxline/pkg/provider/tts/elevenlabs"
	ttsopenai "github.com/MrWong99/voxline/pkg/provider/tts/openai"
	"github.com/MrWong99/voxline/pkg/vad"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "voxline.yaml", "path to the YAML configuration file")
	noMic := flag.Bool("no-mic", false, "skip the microphone session (playback only)")
	flag.Parse()

	// Optional .env for API keys during development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "voxline: loading .env: %v\n", err)
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxline: config file %q not found (see -config)\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxline: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := &slog.LevelVar{}
	level.Set(slogLevel(cfg.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("voxline starting", "config", *configPath, "log_level", cfg.LogLevel)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxline",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Audio devices ─────────────────────────────────────────────────────────
	devices := app.Devices{
		Input:  audioportaudio.NewInput(),
		Output: audioportaudio.NewOutput(),
	}

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(cfg, reg, devices,
		[]app.Option{
			app.WithLogger(logger),
			app.WithLogLevelVar(level),
		},
		app.OnTranscript(func(text string) {
			// Standalone mode prints transcripts; an embedding chat client
			// would publish them as the user's message instead.
			fmt.Printf("you said: %s\n", text)
		}),
		app.OnPlaybackState(func(playing bool) {
			slog.Debug("playback state changed", "playing", playing)
		}),
		// The webrtcvad backend is compiled in on desktop builds, so the
		// model-based detector is always an option here.
		app.WithVADCapabilities(vad.Capabilities{
			FrameClassifier: true,
			SampleRate:      audio.CaptureFormat.SampleRate,
		}),
	)
	if err != nil {
		slog.Error("failed to initialise pipeline", "err", err)
		return 1
	}
	defer application.Shutdown()

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		application.ApplyDiff(config.Diff(old, new))
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── Debug endpoint ────────────────────────────────────────────────────────
	if cfg.Debug.ListenAddr != "" {
		go serveDebug(ctx, cfg.Debug.ListenAddr, application)
	}

	// ── Voice session ─────────────────────────────────────────────────────────
	if !*noMic {
		if err := application.Session().Start(ctx); err != nil {
			slog.Error("failed to start voice session", "err", err)
			return 1
		}
	}

	printStartupSummary(cfg)
	slog.Info("ready — press Ctrl+C to shut down")

	// ── Message feed ──────────────────────────────────────────────────────────
	go feedMessages(ctx, application)

	<-ctx.Done()
	slog.Info("shutdown signal received, stopping…")
	application.Shutdown()
	slog.Info("goodbye")
	return 0
}

// inboundMessage is the JSON-lines shape accepted on stdin.
type inboundMessage struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Pubkey      string `json:"pubkey"`
	VoiceID     string `json:"voice_id"`
	IsReasoning bool   `json:"is_reasoning"`
}

// feedMessages reads JSON lines from stdin and forwards them to the playback
// queue, one batch per line (single-element batches).
func feedMessages(ctx context.Context, application *app.App) {
	// The first (empty) batch consumes the history latch so stdin messages
	// are actually spoken in standalone mode.
	application.ProcessMessages(nil)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var in inboundMessage
		if err := json.Unmarshal(line, &in); err != nil {
			slog.Warn("skipping malformed message line", "err", err)
			continue
		}
		application.ProcessMessages([]queue.Message{{
			ID:          in.ID,
			Content:     in.Content,
			Pubkey:      in.Pubkey,
			VoiceID:     in.VoiceID,
			IsReasoning: in.IsReasoning,
			CreatedAt:   time.Now(),
		}})
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("reading message feed", "err", err)
	}
}

// serveDebug exposes Prometheus metrics plus liveness and readiness probes
// on addr. Readiness fails while neither speech chain has a usable provider.
func serveDebug(ctx context.Context, addr string, application *app.App) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(
		health.ProviderCheck("stt", application.STT().IsAvailable),
		health.ProviderCheck("tts", application.TTS().IsAvailable),
	).Register(mux)

	mw := observe.Middleware(observe.DefaultMetrics())
	srv := &http.Server{Addr: addr, Handler: mw(mux)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("debug endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("debug endpoint", "err", err)
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.Model != "" {
			opts = append(opts, sttopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.StringOption("language"); lang != "" {
			opts = append(opts, sttopenai.WithLanguage(lang))
		}
		return sttopenai.New(entry.APIKey, opts...), nil
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.StringOption("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...), nil
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.StringOption("model_path")
		}
		var opts []whisper.Option
		if lang := entry.StringOption("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := entry.StringOption("output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(entry.APIKey, opts...), nil
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if format := entry.StringOption("response_format"); format != "" {
			opts = append(opts, ttsopenai.WithResponseFormat(format))
		}
		return ttsopenai.New(entry.APIKey, opts...), nil
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.StringOption("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		return coqui.New(entry.BaseURL, opts...), nil
	})
}

// ── Startup summary ─────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         voxline — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT primary", cfg.Providers.STT.Primary.Name, cfg.Providers.STT.Primary.Model)
	printProvider("STT fallback", cfg.Providers.STT.Fallback.Name, cfg.Providers.STT.Fallback.Model)
	printProvider("TTS primary", cfg.Providers.TTS.Primary.Name, cfg.Providers.TTS.Primary.Model)
	printProvider("TTS fallback", cfg.Providers.TTS.Fallback.Name, cfg.Providers.TTS.Fallback.Model)
	printProvider("VAD engine", string(cfg.VAD.Engine), "")
	fmt.Printf("║  Agent voices    : %-19d ║\n", len(cfg.Speech.AgentVoices))
	if cfg.Debug.ListenAddr != "" {
		fmt.Printf("║  Debug addr      : %-19s ║\n", cfg.Debug.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
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
