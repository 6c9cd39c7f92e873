// Package playback plays synthesized audio through an output device, one
// clip at a time.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/voice"
)

// Controller serializes playback on an output device. At most one clip plays
// at a time; starting a new one stops the current one first.
//
// Every Play call resolves exactly once: nil on completion or an explicit
// Stop, a [voice.PlaybackError] on a device or decode failure.
type Controller struct {
	device audio.OutputDevice
	logger *slog.Logger

	mu      sync.Mutex
	current audio.Playback
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a playback controller for the given output device.
func NewController(device audio.OutputDevice, opts ...ControllerOption) *Controller {
	c := &Controller{device: device, logger: slog.Default()}
	for _, fn := range opts {
		fn(c)
	}
	return c
}

// Play starts data on the device and blocks until the clip completes, fails,
// or is stopped. A clip already playing is stopped first. Cancelling ctx
// stops the clip and returns ctx's error.
func (c *Controller) Play(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return &voice.PlaybackError{Cause: errors.New("empty audio payload")}
	}

	c.mu.Lock()
	if c.current != nil {
		c.current.Stop()
	}
	pb, err := c.device.Start(ctx, data)
	if err != nil {
		c.current = nil
		c.mu.Unlock()
		return &voice.PlaybackError{Cause: err}
	}
	c.current = pb
	c.mu.Unlock()

	select {
	case err := <-pb.Done():
		c.clear(pb)
		if errors.Is(err, audio.ErrPlaybackStopped) {
			return nil
		}
		if err != nil {
			return &voice.PlaybackError{Cause: err}
		}
		return nil

	case <-ctx.Done():
		pb.Stop()
		<-pb.Done()
		c.clear(pb)
		return fmt.Errorf("playback: %w", ctx.Err())
	}
}

// Pause suspends the current clip. No-op when nothing is playing.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	if err := c.current.Pause(); err != nil {
		c.logger.Warn("pausing playback", "error", err)
	}
}

// Resume continues a paused clip. No-op when nothing is playing.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	if err := c.current.Resume(); err != nil {
		c.logger.Warn("resuming playback", "error", err)
	}
}

// Stop ends the current clip; its pending Play call returns nil. No-op when
// nothing is playing.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	if err := c.current.Stop(); err != nil {
		c.logger.Warn("stopping playback", "error", err)
	}
}

// Playing reports whether a clip is currently active.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Progress returns the current clip's position in [0, 1], or 0 when nothing
// is playing.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.current.Progress()
}

// clear forgets pb if it is still the active clip. A Play that was displaced
// by a newer clip must not clear the newcomer.
func (c *Controller) clear(pb audio.Playback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == pb {
		c.current = nil
	}
}
