package playback_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	audiomock "github.com/MrWong99/voxline/pkg/audio/mock"
	"github.com/MrWong99/voxline/pkg/playback"
	"github.com/MrWong99/voxline/pkg/voice"
)

const waitTimeout = 2 * time.Second

// play runs Play on a goroutine and returns a channel carrying its result.
func play(c *playback.Controller, data []byte) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- c.Play(context.Background(), data) }()
	return errCh
}

// awaitStartCalls polls until the device has seen n Start calls.
func awaitStartCalls(t *testing.T, device *audiomock.OutputDevice, n int) *audiomock.StartCall {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if calls := device.Played(); len(calls) >= n {
			return &device.StartCalls[n-1]
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for Start call %d", n)
	return nil
}

func awaitResult(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for Play to return")
		return nil
	}
}

func TestController_PlayCompletes(t *testing.T) {
	t.Parallel()

	device := &audiomock.OutputDevice{AutoComplete: true}
	c := playback.NewController(device)

	if err := c.Play(context.Background(), []byte{1, 2, 3}); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if c.Playing() {
		t.Error("Playing() = true after completion")
	}
	if got := device.Played(); len(got) != 1 || !bytes.Equal(got[0], []byte{1, 2, 3}) {
		t.Errorf("device played %v, want one call with [1 2 3]", got)
	}
}

func TestController_PlayEmptyPayload(t *testing.T) {
	t.Parallel()

	c := playback.NewController(&audiomock.OutputDevice{})
	err := c.Play(context.Background(), nil)
	var pbErr *voice.PlaybackError
	if !errors.As(err, &pbErr) {
		t.Fatalf("Play(nil) error = %v, want *voice.PlaybackError", err)
	}
}

func TestController_DeviceFailureWrapped(t *testing.T) {
	t.Parallel()

	device := &audiomock.OutputDevice{StartErr: errors.New("no output device")}
	c := playback.NewController(device)

	err := c.Play(context.Background(), []byte{1})
	var pbErr *voice.PlaybackError
	if !errors.As(err, &pbErr) {
		t.Fatalf("Play error = %v, want *voice.PlaybackError", err)
	}
}

func TestController_DecodeFailureWrapped(t *testing.T) {
	t.Parallel()

	device := &audiomock.OutputDevice{}
	c := playback.NewController(device)

	errCh := play(c, []byte{0xff})
	call := awaitStartCalls(t, device, 1)
	call.Playback.Fail(errors.New("unsupported codec"))

	err := awaitResult(t, errCh)
	var pbErr *voice.PlaybackError
	if !errors.As(err, &pbErr) {
		t.Fatalf("Play error = %v, want *voice.PlaybackError", err)
	}
	if c.Playing() {
		t.Error("Playing() = true after failure")
	}
}

func TestController_StopResolvesPlayWithNil(t *testing.T) {
	t.Parallel()

	device := &audiomock.OutputDevice{}
	c := playback.NewController(device)

	errCh := play(c, []byte{1, 2})
	awaitStartCalls(t, device, 1)

	c.Stop()
	if err := awaitResult(t, errCh); err != nil {
		t.Fatalf("stopped Play returned %v, want nil", err)
	}
	if c.Playing() {
		t.Error("Playing() = true after Stop")
	}

	// Stop with nothing active is a no-op.
	c.Stop()
}

func TestController_PlayWhilePlayingStopsCurrent(t *testing.T) {
	t.Parallel()

	device := &audiomock.OutputDevice{}
	c := playback.NewController(device)

	first := play(c, []byte{1})
	awaitStartCalls(t, device, 1)

	second := play(c, []byte{2})
	call2 := awaitStartCalls(t, device, 2)

	// The first Play was stopped by the second and resolves nil.
	if err := awaitResult(t, first); err != nil {
		t.Fatalf("displaced Play returned %v, want nil", err)
	}
	if device.StartCalls[0].Playback.StopCallCount != 1 {
		t.Errorf("first playback Stop called %d times, want 1", device.StartCalls[0].Playback.StopCallCount)
	}

	// The second clip is still live and completes normally.
	if !c.Playing() {
		t.Error("Playing() = false while second clip active")
	}
	call2.Playback.Complete()
	if err := awaitResult(t, second); err != nil {
		t.Fatalf("second Play returned %v, want nil", err)
	}
}

func TestController_PauseResumeForwarding(t *testing.T) {
	t.Parallel()

	device := &audiomock.OutputDevice{}
	c := playback.NewController(device)

	// No-ops when idle.
	c.Pause()
	c.Resume()

	errCh := play(c, []byte{1})
	call := awaitStartCalls(t, device, 1)

	c.Pause()
	c.Resume()
	if call.Playback.PauseCallCount != 1 || call.Playback.ResumeCallCount != 1 {
		t.Errorf("pause/resume forwarded %d/%d times, want 1/1",
			call.Playback.PauseCallCount, call.Playback.ResumeCallCount)
	}

	call.Playback.Complete()
	if err := awaitResult(t, errCh); err != nil {
		t.Fatalf("Play: %v", err)
	}
}

func TestController_ProgressReflectsActiveClip(t *testing.T) {
	t.Parallel()

	device := &audiomock.OutputDevice{}
	c := playback.NewController(device)

	if got := c.Progress(); got != 0 {
		t.Errorf("Progress() = %v when idle, want 0", got)
	}

	errCh := play(c, []byte{1})
	call := awaitStartCalls(t, device, 1)
	call.Playback.SetProgress(0.75)
	if got := c.Progress(); got != 0.75 {
		t.Errorf("Progress() = %v, want 0.75", got)
	}

	call.Playback.Complete()
	if err := awaitResult(t, errCh); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := c.Progress(); got != 0 {
		t.Errorf("Progress() = %v after completion, want 0", got)
	}
}

func TestController_ContextCancellationStopsClip(t *testing.T) {
	t.Parallel()

	device := &audiomock.OutputDevice{}
	c := playback.NewController(device)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Play(ctx, []byte{1}) }()
	call := awaitStartCalls(t, device, 1)

	cancel()
	err := awaitResult(t, errCh)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Play error = %v, want context.Canceled", err)
	}
	if call.Playback.StopCallCount == 0 {
		t.Error("cancelled Play did not stop the clip")
	}
}
