// Package capture records microphone audio into transient WAV files for
// transcription.
//
// A Controller owns at most one active recording. It negotiates microphone
// permission through the device, taps the live frame stream, and writes mono
// 16 kHz 16-bit PCM WAV. The caller owns the file returned by StopRecording
// and deletes it once the transcription provider is done with it.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/voice"
)

// DefaultMeterInterval is how often Level is refreshed during a recording.
const DefaultMeterInterval = 50 * time.Millisecond

// FrameSource taps a live frame stream. It returns the frame channel and a
// cancel function that releases the tap (closing the channel) and reports how
// many frames were dropped. [audio.Broadcaster.Subscribe] satisfies this
// signature, letting a recording share the microphone with the voice activity
// detector.
type FrameSource func() (<-chan audio.AudioFrame, func() int)

// Controller records microphone input to WAV files, one recording at a time.
type Controller struct {
	device audio.InputDevice
	source FrameSource
	dir    string
	meter  time.Duration
	logger *slog.Logger

	levelBits atomic.Uint64

	mu  sync.Mutex
	rec *recording
}

type recording struct {
	path    string
	file    *os.File
	writer  *audio.WAVWriter
	release func() int
	done    chan struct{}
	err     error
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithFrameSource records from an external tap (typically a broadcaster
// subscription) instead of opening the device exclusively per recording.
func WithFrameSource(src FrameSource) ControllerOption {
	return func(c *Controller) { c.source = src }
}

// WithDirectory sets the directory recordings are written to. Defaults to the
// OS temp dir.
func WithDirectory(dir string) ControllerOption {
	return func(c *Controller) { c.dir = dir }
}

// WithMeterInterval sets how often Level is refreshed. Values below 1 ms fall
// back to [DefaultMeterInterval].
func WithMeterInterval(d time.Duration) ControllerOption {
	return func(c *Controller) { c.meter = d }
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a capture controller for the given input device.
func NewController(device audio.InputDevice, opts ...ControllerOption) *Controller {
	c := &Controller{
		device: device,
		dir:    os.TempDir(),
		meter:  DefaultMeterInterval,
		logger: slog.Default(),
	}
	for _, fn := range opts {
		fn(c)
	}
	if c.meter < time.Millisecond {
		c.meter = DefaultMeterInterval
	}
	return c
}

// RequestPermission prompts for microphone access if it has not been decided
// yet and reports whether access is granted. A previous denial is returned
// as-is without prompting again.
func (c *Controller) RequestPermission(ctx context.Context) (bool, error) {
	switch c.device.Permission() {
	case audio.PermissionGranted:
		return true, nil
	case audio.PermissionDenied:
		return false, nil
	}
	granted, err := c.device.RequestPermission(ctx)
	if err != nil {
		return false, fmt.Errorf("capture: request microphone permission: %w", err)
	}
	return granted, nil
}

// StartRecording begins writing microphone frames to a fresh WAV file.
// It fails with [voice.ErrPermissionDenied] when microphone access is denied
// (prompting first if the decision is still pending), and rejects a second
// start while a recording is active.
func (c *Controller) StartRecording(ctx context.Context) error {
	granted, err := c.RequestPermission(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return fmt.Errorf("capture: microphone access: %w", voice.ErrPermissionDenied)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec != nil {
		return fmt.Errorf("capture: recording already in progress")
	}

	frames, release, err := c.openTap(ctx)
	if err != nil {
		return &voice.RecordingError{Cause: err}
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		release()
		return &voice.RecordingError{Cause: fmt.Errorf("create recording dir: %w", err)}
	}
	path := filepath.Join(c.dir, uuid.NewString()+".wav")
	file, err := os.Create(path)
	if err != nil {
		release()
		return &voice.RecordingError{Cause: fmt.Errorf("create recording file: %w", err)}
	}

	writer, err := audio.NewWAVWriter(file, audio.CaptureFormat)
	if err != nil {
		release()
		file.Close()
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			c.logger.Warn("removing unusable recording file", "path", path, "error", rmErr)
		}
		return &voice.RecordingError{Cause: err}
	}

	rec := &recording{
		path:    path,
		file:    file,
		writer:  writer,
		release: release,
		done:    make(chan struct{}),
	}
	c.rec = rec
	c.logger.Debug("recording started", "path", path)

	go c.drain(rec, frames)
	return nil
}

// openTap acquires the frame stream for one recording, from the shared source
// when configured, otherwise by opening the device.
func (c *Controller) openTap(ctx context.Context) (<-chan audio.AudioFrame, func() int, error) {
	if c.source != nil {
		frames, cancel := c.source()
		return frames, cancel, nil
	}
	stream, err := c.device.Open(ctx, audio.CaptureFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("open input device: %w", err)
	}
	cancel := func() int {
		if err := stream.Close(); err != nil {
			c.logger.Warn("closing input stream", "error", err)
		}
		return 0
	}
	return stream.Frames(), cancel, nil
}

// drain copies frames into the WAV writer until the tap is released, keeping
// the live level meter current.
func (c *Controller) drain(rec *recording, frames <-chan audio.AudioFrame) {
	defer close(rec.done)

	var lastMeter time.Time
	for frame := range frames {
		if rec.err == nil {
			if _, err := rec.writer.Write(frame.Data); err != nil {
				rec.err = fmt.Errorf("write frame: %w", err)
			}
		}
		if now := time.Now(); now.Sub(lastMeter) >= c.meter {
			lastMeter = now
			c.levelBits.Store(math.Float64bits(audio.RMS(frame.Data)))
		}
	}
	c.levelBits.Store(0)
}

// StopRecording ends the active recording and returns the finished WAV path.
// The caller owns the file.
func (c *Controller) StopRecording(ctx context.Context) (string, error) {
	rec, err := c.detach()
	if err != nil {
		return "", err
	}

	dropped := rec.release()
	<-rec.done
	if dropped > 0 {
		c.logger.Warn("frames dropped during recording", "dropped", dropped, "path", rec.path)
	}

	if rec.err != nil {
		c.discard(rec)
		return "", &voice.RecordingError{Cause: rec.err}
	}
	if err := rec.writer.Finalize(); err != nil {
		c.discard(rec)
		return "", &voice.RecordingError{Cause: fmt.Errorf("finalize wav: %w", err)}
	}
	if err := rec.file.Close(); err != nil {
		c.discard(rec)
		return "", &voice.RecordingError{Cause: fmt.Errorf("close recording file: %w", err)}
	}

	c.logger.Debug("recording stopped",
		"path", rec.path, "bytes", rec.writer.DataBytes())
	return rec.path, nil
}

// CancelRecording discards the active recording, deleting the partial file.
// Best effort: it never fails, and is a no-op when nothing is recording.
func (c *Controller) CancelRecording() {
	rec, err := c.detach()
	if err != nil {
		return
	}
	rec.release()
	<-rec.done
	c.discard(rec)
	c.logger.Debug("recording cancelled", "path", rec.path)
}

// Recording reports whether a recording is currently active.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec != nil
}

// Level returns the most recent input amplitude in [0, 1], refreshed on the
// metering interval while recording and zero otherwise.
func (c *Controller) Level() float64 {
	return math.Float64frombits(c.levelBits.Load())
}

// detach claims the active recording for teardown.
func (c *Controller) detach() (*recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec == nil {
		return nil, fmt.Errorf("capture: no recording in progress")
	}
	rec := c.rec
	c.rec = nil
	return rec, nil
}

// discard closes and removes a recording's file, logging failures.
func (c *Controller) discard(rec *recording) {
	rec.file.Close()
	if err := os.Remove(rec.path); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("removing partial recording", "path", rec.path, "error", err)
	}
	c.levelBits.Store(0)
}
