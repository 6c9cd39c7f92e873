package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// wavHeaderSize is the byte length of the canonical 44-byte RIFF/WAVE header
// written by [WAVWriter] for 16-bit PCM.
const wavHeaderSize = 44

// WAVWriter writes a 16-bit PCM WAV file incrementally. It emits a
// placeholder header up front, appends raw PCM via Write, and patches the
// RIFF and data chunk sizes in Finalize. Create one per file; not safe for
// concurrent use.
type WAVWriter struct {
	w          io.WriteSeeker
	format     Format
	dataBytes  int
	headerDone bool
	finalized  bool
}

// NewWAVWriter returns a writer that produces a WAV file in the given format
// on w. The header is written lazily on the first Write (or in Finalize for
// an empty file).
func NewWAVWriter(w io.WriteSeeker, format Format) (*WAVWriter, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("audio: invalid wav format %d Hz / %d ch", format.SampleRate, format.Channels)
	}
	return &WAVWriter{w: w, format: format}, nil
}

// Write appends raw 16-bit little-endian PCM bytes to the data chunk.
func (ww *WAVWriter) Write(pcm []byte) (int, error) {
	if ww.finalized {
		return 0, errors.New("audio: wav writer already finalized")
	}
	if !ww.headerDone {
		if err := ww.writeHeader(); err != nil {
			return 0, err
		}
	}
	n, err := ww.w.Write(pcm)
	ww.dataBytes += n
	if err != nil {
		return n, fmt.Errorf("audio: write wav data: %w", err)
	}
	return n, nil
}

// Finalize patches the chunk sizes in the header. The writer is unusable
// afterwards; calling Finalize twice returns an error.
func (ww *WAVWriter) Finalize() error {
	if ww.finalized {
		return errors.New("audio: wav writer already finalized")
	}
	if !ww.headerDone {
		if err := ww.writeHeader(); err != nil {
			return err
		}
	}
	ww.finalized = true

	// RIFF chunk size at offset 4, data chunk size at offset 40.
	if _, err := ww.w.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("audio: seek wav header: %w", err)
	}
	if err := binary.Write(ww.w, binary.LittleEndian, uint32(wavHeaderSize-8+ww.dataBytes)); err != nil {
		return fmt.Errorf("audio: patch riff size: %w", err)
	}
	if _, err := ww.w.Seek(40, io.SeekStart); err != nil {
		return fmt.Errorf("audio: seek wav header: %w", err)
	}
	if err := binary.Write(ww.w, binary.LittleEndian, uint32(ww.dataBytes)); err != nil {
		return fmt.Errorf("audio: patch data size: %w", err)
	}
	if _, err := ww.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("audio: seek wav end: %w", err)
	}
	return nil
}

// DataBytes reports how many PCM bytes have been written so far.
func (ww *WAVWriter) DataBytes() int { return ww.dataBytes }

func (ww *WAVWriter) writeHeader() error {
	const bitsPerSample = 16
	byteRate := ww.format.SampleRate * ww.format.Channels * bitsPerSample / 8
	blockAlign := ww.format.Channels * bitsPerSample / 8

	var hdr [wavHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	// Sizes at offsets 4 and 40 are patched in Finalize.
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(ww.format.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(ww.format.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")

	if _, err := ww.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("audio: write wav header: %w", err)
	}
	ww.headerDone = true
	return nil
}

// EncodeWAV wraps raw 16-bit little-endian PCM in a complete WAV container.
func EncodeWAV(pcm []byte, format Format) ([]byte, error) {
	buf := newSeekBuffer(wavHeaderSize + len(pcm))
	ww, err := NewWAVWriter(buf, format)
	if err != nil {
		return nil, err
	}
	if _, err := ww.Write(pcm); err != nil {
		return nil, err
	}
	if err := ww.Finalize(); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// DecodeWAV extracts the raw PCM payload and format from a 16-bit PCM WAV
// blob. Only uncompressed PCM is supported; compressed containers return an
// error.
func DecodeWAV(b []byte) ([]byte, Format, error) {
	if len(b) < wavHeaderSize || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, Format{}, errors.New("audio: not a RIFF/WAVE file")
	}

	// Walk chunks; "fmt " and "data" may be separated by extension chunks.
	var format Format
	var bits uint16
	var data []byte
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if body+size > len(b) {
			size = len(b) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, errors.New("audio: truncated fmt chunk")
			}
			if audioFormat := binary.LittleEndian.Uint16(b[body : body+2]); audioFormat != 1 {
				return nil, Format{}, fmt.Errorf("audio: unsupported wav encoding %d (want PCM)", audioFormat)
			}
			format.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			bits = binary.LittleEndian.Uint16(b[body+14 : body+16])
		case "data":
			data = b[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if format.SampleRate == 0 {
		return nil, Format{}, errors.New("audio: missing fmt chunk")
	}
	if bits != 16 {
		return nil, Format{}, fmt.Errorf("audio: unsupported bit depth %d (want 16)", bits)
	}
	if data == nil {
		return nil, Format{}, errors.New("audio: missing data chunk")
	}
	return data, format, nil
}

// seekBuffer is a minimal in-memory io.WriteSeeker backing [EncodeWAV].
type seekBuffer struct {
	data []byte
	pos  int
}

func newSeekBuffer(capacity int) *seekBuffer {
	return &seekBuffer{data: make([]byte, 0, capacity)}
}

func (sb *seekBuffer) Write(p []byte) (int, error) {
	if sb.pos+len(p) > len(sb.data) {
		sb.data = append(sb.data, make([]byte, sb.pos+len(p)-len(sb.data))...)
	}
	copy(sb.data[sb.pos:], p)
	sb.pos += len(p)
	return len(p), nil
}

func (sb *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(sb.pos) + offset
	case io.SeekEnd:
		abs = int64(len(sb.data)) + offset
	default:
		return 0, errors.New("audio: invalid seek whence")
	}
	if abs < 0 {
		return 0, errors.New("audio: negative seek position")
	}
	sb.pos = int(abs)
	return abs, nil
}
