// Package mock provides test doubles for the audio package interfaces.
//
// Use InputDevice to script permission flows and feed synthetic PCM frames to
// the capture controller or the voice activity detector. Use OutputDevice to
// observe what the playback controller plays and to resolve playbacks
// manually (complete, fail, or leave pending until stopped).
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxline/pkg/audio"
)

// InputStream is a mock implementation of audio.InputStream backed by a
// caller-controlled channel.
type InputStream struct {
	// FrameCh is the channel returned by Frames. Tests push frames here and
	// close it to end the stream.
	FrameCh chan audio.AudioFrame

	mu             sync.Mutex
	closeCallCount int
}

// NewInputStream returns a stream with a buffered frame channel of depth n.
func NewInputStream(n int) *InputStream {
	return &InputStream{FrameCh: make(chan audio.AudioFrame, n)}
}

// Frames returns the scripted frame channel.
func (s *InputStream) Frames() <-chan audio.AudioFrame { return s.FrameCh }

// Close records the call. It does not close FrameCh — tests own that channel.
func (s *InputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCallCount++
	return nil
}

// CloseCallCount reports how many times Close was called.
func (s *InputStream) CloseCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCallCount
}

// Ensure InputStream implements audio.InputStream at compile time.
var _ audio.InputStream = (*InputStream)(nil)

// OpenCall records a single invocation of InputDevice.Open.
type OpenCall struct {
	// Format is the format passed to Open.
	Format audio.Format
}

// InputDevice is a mock implementation of audio.InputDevice.
type InputDevice struct {
	mu sync.Mutex

	// PermissionState is returned by Permission. Mutated by RequestPermission
	// according to GrantOnRequest.
	PermissionState audio.PermissionStatus

	// GrantOnRequest controls what an undetermined RequestPermission resolves
	// to: true → granted, false → denied.
	GrantOnRequest bool

	// Stream is returned by Open. If nil, Open returns a fresh InputStream.
	Stream audio.InputStream

	// OpenErr, if non-nil, is returned as the error from Open.
	OpenErr error

	// RequestPermissionErr, if non-nil, is returned by RequestPermission.
	RequestPermissionErr error

	// OpenCalls records every call to Open in order.
	OpenCalls []OpenCall

	// RequestPermissionCallCount counts RequestPermission invocations.
	RequestPermissionCallCount int
}

// Permission returns PermissionState.
func (d *InputDevice) Permission() audio.PermissionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.PermissionState
}

// RequestPermission records the call and resolves an undetermined state
// according to GrantOnRequest.
func (d *InputDevice) RequestPermission(_ context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.RequestPermissionCallCount++
	if d.RequestPermissionErr != nil {
		return false, d.RequestPermissionErr
	}
	if d.PermissionState == audio.PermissionUndetermined {
		if d.GrantOnRequest {
			d.PermissionState = audio.PermissionGranted
		} else {
			d.PermissionState = audio.PermissionDenied
		}
	}
	return d.PermissionState == audio.PermissionGranted, nil
}

// Open records the call and returns Stream, OpenErr.
func (d *InputDevice) Open(_ context.Context, format audio.Format) (audio.InputStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenCalls = append(d.OpenCalls, OpenCall{Format: format})
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if d.Stream != nil {
		return d.Stream, nil
	}
	return NewInputStream(16), nil
}

// Ensure InputDevice implements audio.InputDevice at compile time.
var _ audio.InputDevice = (*InputDevice)(nil)

// Playback is a mock implementation of audio.Playback. Resolve it from the
// test with Complete or Fail, or via Stop.
type Playback struct {
	mu       sync.Mutex
	done     chan error
	resolved bool
	progress float64

	// PauseCallCount and ResumeCallCount record control calls.
	PauseCallCount  int
	ResumeCallCount int
	StopCallCount   int
}

// NewPlayback returns an unresolved playback handle.
func NewPlayback() *Playback {
	return &Playback{done: make(chan error, 1)}
}

// Done returns the single-shot completion channel.
func (p *Playback) Done() <-chan error { return p.done }

// Complete resolves the playback successfully. No-op if already resolved.
func (p *Playback) Complete() { p.resolve(nil) }

// Fail resolves the playback with err. No-op if already resolved.
func (p *Playback) Fail(err error) { p.resolve(err) }

// Pause records the call.
func (p *Playback) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PauseCallCount++
	return nil
}

// Resume records the call.
func (p *Playback) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ResumeCallCount++
	return nil
}

// Stop records the call and resolves Done with audio.ErrPlaybackStopped.
func (p *Playback) Stop() error {
	p.mu.Lock()
	p.StopCallCount++
	p.mu.Unlock()
	p.resolve(audio.ErrPlaybackStopped)
	return nil
}

// SetProgress sets the value returned by Progress.
func (p *Playback) SetProgress(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = v
}

// Progress returns the scripted progress value.
func (p *Playback) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Playback) resolve(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return
	}
	p.resolved = true
	p.done <- err
}

// Ensure Playback implements audio.Playback at compile time.
var _ audio.Playback = (*Playback)(nil)

// StartCall records a single invocation of OutputDevice.Start.
type StartCall struct {
	// Data is a copy of the bytes passed to Start.
	Data []byte

	// Playback is the handle that was returned for this call.
	Playback *Playback
}

// OutputDevice is a mock implementation of audio.OutputDevice.
type OutputDevice struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned as the error from Start.
	StartErr error

	// AutoComplete, when true, resolves each returned playback successfully
	// as soon as it is started. Leave false to control resolution from the
	// test via StartCalls[i].Playback.
	AutoComplete bool

	// StartCalls records every call to Start in order.
	StartCalls []StartCall
}

// Start records the call and returns a fresh Playback handle.
func (d *OutputDevice) Start(_ context.Context, data []byte) (audio.Playback, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.StartErr != nil {
		return nil, d.StartErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	pb := NewPlayback()
	d.StartCalls = append(d.StartCalls, StartCall{Data: cp, Playback: pb})
	if d.AutoComplete {
		pb.Complete()
	}
	return pb, nil
}

// Played returns the payloads of all Start calls so far.
func (d *OutputDevice) Played() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.StartCalls))
	for i, c := range d.StartCalls {
		out[i] = c.Data
	}
	return out
}

// Ensure OutputDevice implements audio.OutputDevice at compile time.
var _ audio.OutputDevice = (*OutputDevice)(nil)
