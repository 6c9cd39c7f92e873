package audio_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/voxline/pkg/audio"
)

func TestEncodeWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	pcm := pcmFromSamples([]int16{0, 100, -100, 32767, -32768})
	wav, err := audio.EncodeWAV(pcm, audio.CaptureFormat)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	got, format, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("decoded PCM differs from input")
	}
	if format != audio.CaptureFormat {
		t.Errorf("format = %+v, want %+v", format, audio.CaptureFormat)
	}
}

func TestWAVWriter_PatchesSizesOnFinalize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rec.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	ww, err := audio.NewWAVWriter(f, audio.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("NewWAVWriter: %v", err)
	}
	// Two incremental writes, as the capture controller does per frame.
	if _, err := ww.Write(pcmFromSamples([]int16{1, 2, 3})); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := ww.Write(pcmFromSamples([]int16{4, 5})); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := ww.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}

	if got := binary.LittleEndian.Uint32(b[40:44]); got != 10 {
		t.Errorf("data chunk size = %d, want 10", got)
	}
	if got := binary.LittleEndian.Uint32(b[4:8]); got != uint32(len(b)-8) {
		t.Errorf("riff chunk size = %d, want %d", got, len(b)-8)
	}
	if got := ww.DataBytes(); got != 10 {
		t.Errorf("DataBytes = %d, want 10", got)
	}

	if err := ww.Finalize(); err == nil {
		t.Error("second Finalize: want error, got nil")
	}
}

func TestDecodeWAV_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		blob []byte
	}{
		{name: "empty", blob: nil},
		{name: "not riff", blob: bytes.Repeat([]byte{0x42}, 64)},
		{name: "truncated header", blob: []byte("RIFF....WAVE")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := audio.DecodeWAV(tt.blob); err == nil {
				t.Error("DecodeWAV: want error, got nil")
			}
		})
	}
}
