// Package app wires the voice pipeline subsystems into a running application:
// microphone fan-out, voice activity detection, capture, transcription,
// synthesis, caching, and queued playback.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/MrWong99/voxline/internal/observe"
	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/provider/stt"
	"github.com/MrWong99/voxline/pkg/vad"
	"github.com/MrWong99/voxline/pkg/voice"
)

// broadcastBuffer is the per-subscriber frame buffer depth. At 20 ms frames
// this holds just over five seconds of audio.
const broadcastBuffer = 256

// Recorder is the capture surface the session drives. Satisfied by
// *capture.Controller.
type Recorder interface {
	RequestPermission(ctx context.Context) (bool, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (string, error)
	CancelRecording()
}

// Interrupter cancels in-flight agent speech when the user starts talking.
// Satisfied by *queue.Queue.
type Interrupter interface {
	ClearQueue()
}

// DetectorFactory builds the voice activity detector with the session's
// callbacks installed. Typically a closure over [vad.New] carrying the
// configured kind, capabilities, and silence timeout.
type DetectorFactory func(cb vad.Callbacks) (vad.Detector, error)

// Session runs one live voice interaction: it opens the microphone, fans
// frames out to the detector and the recorder, and turns each detected speech
// segment into a transcript.
//
// Speech-start interrupts agent playback (barge-in) and starts a recording;
// speech-end stops the recording, transcribes it, deletes the file, and hands
// the text to the OnTranscript callback.
type Session struct {
	device      audio.InputDevice
	bcast       *audio.Broadcaster
	detector    vad.Detector
	recorder    Recorder
	transcriber stt.Provider
	interrupt   Interrupter
	onSegment   func(text string)
	logger      *slog.Logger
	metrics     *observe.Metrics

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	stream    audio.InputStream
	vadCancel func() int
	events    chan eventKind
	workDone  chan struct{}
}

type eventKind int

const (
	eventSpeechStart eventKind = iota
	eventSpeechEnd
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithInterrupter registers the barge-in target, usually the playback queue.
func WithInterrupter(i Interrupter) SessionOption {
	return func(s *Session) { s.interrupt = i }
}

// WithTranscriptFunc registers the callback receiving each transcript. Empty
// transcripts are dropped before the callback.
func WithTranscriptFunc(fn func(text string)) SessionOption {
	return func(s *Session) { s.onSegment = fn }
}

// WithSessionLogger sets the structured logger. Defaults to [slog.Default].
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithSessionMetrics sets the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithSessionMetrics(m *observe.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// NewSession assembles a voice session. bcast must be the same broadcaster
// the recorder subscribes to, so both tap one microphone stream. The detector
// is built through factory with the session's event hooks installed.
func NewSession(device audio.InputDevice, bcast *audio.Broadcaster, factory DetectorFactory,
	recorder Recorder, transcriber stt.Provider, opts ...SessionOption) (*Session, error) {

	s := &Session{
		device:      device,
		bcast:       bcast,
		recorder:    recorder,
		transcriber: transcriber,
		logger:      slog.Default(),
	}
	for _, fn := range opts {
		fn(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	detector, err := factory(vad.Callbacks{
		OnSpeechStart: func() { s.post(eventSpeechStart) },
		OnSpeechEnd:   func() { s.post(eventSpeechEnd) },
		OnError: func(err error) {
			s.logger.Warn("voice activity detection", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("app: build detector: %w", err)
	}
	s.detector = detector
	return s, nil
}

// post hands a detector event to the worker without blocking the detector's
// processing goroutine.
func (s *Session) post(ev eventKind) {
	s.mu.Lock()
	events := s.events
	s.mu.Unlock()
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
		s.logger.Warn("dropping voice event, worker is behind", "event", ev)
	}
}

// Start negotiates microphone permission, opens the stream, and begins
// detection. It fails with [voice.ErrPermissionDenied] when access is
// refused and [voice.ErrInitializationFailed] when the device cannot open.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("app: session already started")
	}
	s.mu.Unlock()

	granted, err := s.recorder.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("app: microphone permission: %w", err)
	}
	if !granted {
		return fmt.Errorf("app: microphone access: %w", voice.ErrPermissionDenied)
	}

	stream, err := s.device.Open(ctx, audio.CaptureFormat)
	if err != nil {
		return fmt.Errorf("app: open microphone: %w: %v", voice.ErrInitializationFailed, err)
	}

	vadCh, vadCancel := s.bcast.Subscribe()
	if err := s.detector.Start(vadCh); err != nil {
		vadCancel()
		stream.Close()
		return fmt.Errorf("app: start detector: %w", err)
	}

	workCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.running = true
	s.cancel = cancel
	s.stream = stream
	s.vadCancel = vadCancel
	s.events = make(chan eventKind, 16)
	s.workDone = make(chan struct{})
	events, workDone := s.events, s.workDone
	s.mu.Unlock()

	go func() {
		dropped := s.bcast.Run(stream.Frames())
		if dropped > 0 {
			s.metrics.DroppedFrames.Add(context.Background(), int64(dropped))
			s.logger.Warn("microphone frames dropped", "count", dropped)
		}
	}()
	go s.work(workCtx, events, workDone)

	s.logger.Info("voice session started")
	return nil
}

// work serializes speech events so recording start/stop and transcription
// never interleave.
func (s *Session) work(ctx context.Context, events <-chan eventKind, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev {
			case eventSpeechStart:
				s.handleSpeechStart(ctx)
			case eventSpeechEnd:
				s.handleSpeechEnd(ctx)
			}
		}
	}
}

func (s *Session) handleSpeechStart(ctx context.Context) {
	s.metrics.RecordVADTransition(ctx, "start")

	// Barge-in: the user talking over agent audio cancels the queue first so
	// the recording does not pick up the tail of the agent's speech.
	if s.interrupt != nil {
		s.interrupt.ClearQueue()
	}

	s.metrics.ActiveRecordings.Add(ctx, 1)
	if err := s.recorder.StartRecording(ctx); err != nil {
		s.metrics.ActiveRecordings.Add(ctx, -1)
		s.logger.Error("starting recording", "error", err)
	}
}

func (s *Session) handleSpeechEnd(ctx context.Context) {
	s.metrics.RecordVADTransition(ctx, "end")
	s.metrics.ActiveRecordings.Add(ctx, -1)

	path, err := s.recorder.StopRecording(ctx)
	if err != nil {
		s.logger.Error("stopping recording", "error", err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			s.logger.Warn("removing recording", "path", path, "error", err)
		}
	}()

	ctx, span := observe.StartSpan(ctx, "session.transcribe")
	defer span.End()

	text, err := s.transcriber.Transcribe(ctx, path)
	if err != nil {
		s.logger.Error("transcribing recording", "error", err)
		return
	}
	if text == "" {
		s.logger.Debug("empty transcript, nothing spoken")
		return
	}
	if s.onSegment != nil {
		s.onSegment(text)
	}
}

// Stop tears the session down: the detector releases its tap, any in-flight
// recording is cancelled and its partial file deleted, and the microphone
// stream is closed. Safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	stream := s.stream
	vadCancel := s.vadCancel
	workDone := s.workDone
	s.events = nil
	s.mu.Unlock()

	s.detector.Stop()
	if n := vadCancel(); n > 0 {
		s.logger.Debug("detector tap dropped frames", "count", n)
	}
	s.recorder.CancelRecording()
	cancel()
	<-workDone
	if err := stream.Close(); err != nil {
		s.logger.Warn("closing microphone stream", "error", err)
	}
	s.logger.Info("voice session stopped")
}

// UpdateSensitivity forwards a hot-reloaded sensitivity to the detector.
func (s *Session) UpdateSensitivity(sensitivity float64) {
	s.detector.UpdateSensitivity(sensitivity)
}

// Running reports whether the session is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
