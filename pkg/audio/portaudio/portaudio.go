// Package portaudio adapts the PortAudio host API to the audio device
// interfaces. It provides the default microphone [Input] and speaker
// [Output] used on desktop platforms.
//
// PortAudio has no OS-level permission prompt on most desktops; permission is
// modelled as a device probe — if a default input device exists and can be
// opened, access is granted.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/voice"
)

// initOnce guards global PortAudio initialisation. Terminate is intentionally
// never called — the host API stays up for the process lifetime.
var (
	initOnce sync.Once
	initErr  error
)

func ensureInit() error {
	initOnce.Do(func() {
		initErr = pa.Initialize()
	})
	if initErr != nil {
		return fmt.Errorf("portaudio: initialize: %w", initErr)
	}
	return nil
}

// Input implements audio.InputDevice on the default PortAudio input device.
type Input struct {
	mu     sync.Mutex
	status audio.PermissionStatus

	// framesPerBuffer is the capture block size in samples per channel.
	framesPerBuffer int
}

// InputOption configures an [Input].
type InputOption func(*Input)

// WithFramesPerBuffer sets the capture block size in samples per channel.
// The default is 480 (30 ms at 16 kHz).
func WithFramesPerBuffer(n int) InputOption {
	return func(i *Input) {
		if n > 0 {
			i.framesPerBuffer = n
		}
	}
}

// NewInput returns the default-microphone input device.
func NewInput(opts ...InputOption) *Input {
	in := &Input{framesPerBuffer: 480}
	for _, o := range opts {
		o(in)
	}
	return in
}

// Permission reports the probe result, or undetermined before the first
// RequestPermission or Open.
func (i *Input) Permission() audio.PermissionStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// RequestPermission probes for a usable default input device.
func (i *Input) RequestPermission(_ context.Context) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.status != audio.PermissionUndetermined {
		return i.status == audio.PermissionGranted, nil
	}
	if err := ensureInit(); err != nil {
		i.status = audio.PermissionDenied
		return false, err
	}
	if _, err := pa.DefaultInputDevice(); err != nil {
		i.status = audio.PermissionDenied
		return false, nil
	}
	i.status = audio.PermissionGranted
	return true, nil
}

// Open starts capturing from the default input device in the given format.
func (i *Input) Open(ctx context.Context, format audio.Format) (audio.InputStream, error) {
	granted, err := i.RequestPermission(ctx)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, voice.ErrPermissionDenied
	}

	dev, err := pa.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("portaudio: no input device: %w", err)
	}

	params := pa.LowLatencyParameters(dev, nil)
	params.Input.Channels = format.Channels
	params.Output.Device = nil
	params.Output.Channels = 0
	params.SampleRate = float64(format.SampleRate)
	params.FramesPerBuffer = i.framesPerBuffer

	buf := make([]int16, i.framesPerBuffer*format.Channels)
	stream, err := pa.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("portaudio: start capture: %w", err)
	}
	slog.Debug("portaudio capture started",
		"device", dev.Name,
		"rate", format.SampleRate,
		"channels", format.Channels,
	)

	s := &inputStream{
		stream: stream,
		buf:    buf,
		format: format,
		frames: make(chan audio.AudioFrame, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Ensure Input implements audio.InputDevice at compile time.
var _ audio.InputDevice = (*Input)(nil)

type inputStream struct {
	stream *pa.Stream
	buf    []int16
	format audio.Format

	frames chan audio.AudioFrame
	done   chan struct{}
	once   sync.Once
}

func (s *inputStream) Frames() <-chan audio.AudioFrame { return s.frames }

func (s *inputStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *inputStream) readLoop() {
	defer close(s.frames)
	defer func() {
		_ = s.stream.Stop()
		_ = s.stream.Close()
	}()

	start := time.Now()
	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			// Overflow means the host dropped input; keep reading.
			if errors.Is(err, pa.InputOverflowed) {
				continue
			}
			slog.Warn("portaudio capture read failed", "err", err)
			return
		}

		pcm := make([]byte, len(s.buf)*2)
		for i, sample := range s.buf {
			pcm[i*2] = byte(sample)
			pcm[i*2+1] = byte(sample >> 8)
		}
		frame := audio.AudioFrame{
			Data:       pcm,
			SampleRate: s.format.SampleRate,
			Channels:   s.format.Channels,
			Timestamp:  time.Since(start),
		}
		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
}

// Ensure inputStream implements audio.InputStream at compile time.
var _ audio.InputStream = (*inputStream)(nil)

// Output implements audio.OutputDevice on the default PortAudio output
// device. It accepts either a WAV container or raw 16-bit little-endian PCM;
// raw blobs are assumed to be in the fallback format (mono 16 kHz), which is
// what the bundled TTS providers emit.
type Output struct {
	// FallbackFormat applies to raw (non-WAV) blobs. Zero value means
	// audio.CaptureFormat.
	FallbackFormat audio.Format

	// framesPerBuffer is the output block size in samples per channel.
	framesPerBuffer int
}

// NewOutput returns the default-speaker output device.
func NewOutput() *Output {
	return &Output{FallbackFormat: audio.CaptureFormat, framesPerBuffer: 480}
}

// Start begins playback of data and returns the in-flight handle.
func (o *Output) Start(_ context.Context, data []byte) (audio.Playback, error) {
	if err := ensureInit(); err != nil {
		return nil, err
	}

	pcm, format := data, o.FallbackFormat
	if format.SampleRate == 0 {
		format = audio.CaptureFormat
	}
	if decoded, f, err := audio.DecodeWAV(data); err == nil {
		pcm, format = decoded, f
	}
	if len(pcm) < 2 {
		return nil, errors.New("portaudio: empty audio payload")
	}

	dev, err := pa.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("portaudio: no output device: %w", err)
	}
	params := pa.LowLatencyParameters(nil, dev)
	params.Input.Device = nil
	params.Input.Channels = 0
	params.Output.Channels = format.Channels
	params.SampleRate = float64(format.SampleRate)
	params.FramesPerBuffer = o.framesPerBuffer

	buf := make([]int16, o.framesPerBuffer*format.Channels)
	stream, err := pa.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("portaudio: start playback: %w", err)
	}

	p := &playback{
		stream:  stream,
		buf:     buf,
		pcm:     pcm,
		done:    make(chan error, 1),
		resume:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go p.writeLoop()
	return p, nil
}

// Ensure Output implements audio.OutputDevice at compile time.
var _ audio.OutputDevice = (*Output)(nil)

type playback struct {
	stream *pa.Stream
	buf    []int16
	pcm    []byte

	mu       sync.Mutex
	paused   bool
	written  int
	resolved bool

	done    chan error
	resume  chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func (p *playback) Done() <-chan error { return p.done }

func (p *playback) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	return nil
}

func (p *playback) Resume() error {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	select {
	case p.resume <- struct{}{}:
	default:
	}
	return nil
}

func (p *playback) Stop() error {
	p.once.Do(func() { close(p.stopped) })
	return nil
}

func (p *playback) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pcm) == 0 {
		return 1
	}
	return float64(p.written) / float64(len(p.pcm))
}

func (p *playback) resolve(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return
	}
	p.resolved = true
	p.done <- err
}

func (p *playback) writeLoop() {
	defer func() {
		_ = p.stream.Stop()
		_ = p.stream.Close()
	}()

	blockBytes := len(p.buf) * 2
	for off := 0; off < len(p.pcm); {
		select {
		case <-p.stopped:
			p.resolve(audio.ErrPlaybackStopped)
			return
		default:
		}

		p.mu.Lock()
		paused := p.paused
		p.mu.Unlock()
		if paused {
			select {
			case <-p.resume:
			case <-p.stopped:
				p.resolve(audio.ErrPlaybackStopped)
				return
			}
			continue
		}

		n := blockBytes
		if off+n > len(p.pcm) {
			n = len(p.pcm) - off
		}
		// Zero-pad the final partial block.
		for i := range p.buf {
			p.buf[i] = 0
		}
		for i := 0; i < n/2; i++ {
			p.buf[i] = int16(p.pcm[off+i*2]) | int16(p.pcm[off+i*2+1])<<8
		}

		if err := p.stream.Write(); err != nil && !errors.Is(err, pa.OutputUnderflowed) {
			p.resolve(fmt.Errorf("portaudio: write playback: %w", err))
			return
		}

		off += n
		p.mu.Lock()
		p.written = off
		p.mu.Unlock()
	}
	p.resolve(nil)
}

// Ensure playback implements audio.Playback at compile time.
var _ audio.Playback = (*playback)(nil)
