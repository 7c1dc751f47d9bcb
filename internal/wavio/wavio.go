// Package wavio reads and writes the 16 kHz 16-bit mono WAV files the
// detector consumes, converting between WAV containers and raw PCM bytes.
package wavio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ColonelBlimp/energyvad/internal/vad"
)

const pcmFormat = 1

var (
	// ErrInvalidWAV indicates the input is not a readable WAV file
	ErrInvalidWAV = errors.New("invalid wav file")
	// ErrUnsupportedFormat indicates a WAV that is not 16 kHz 16-bit mono PCM
	ErrUnsupportedFormat = errors.New("unsupported wav format")
	// ErrOddLength indicates raw PCM that does not hold whole 16-bit samples
	ErrOddLength = errors.New("pcm length must be a multiple of 2")
)

// ReadPCM decodes a WAV stream and returns its samples as little-endian
// 16-bit PCM bytes.
func ReadPCM(r io.ReadSeeker) ([]byte, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if dec.SampleRate != vad.SampleRate || dec.BitDepth != vad.SampleWidth*8 || dec.NumChans != 1 {
		return nil, fmt.Errorf("%w: %d Hz, %d-bit, %d channel(s)", ErrUnsupportedFormat,
			dec.SampleRate, dec.BitDepth, dec.NumChans)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}

	pcm := make([]byte, len(buf.Data)*vad.SampleWidth)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*vad.SampleWidth:], uint16(int16(s)))
	}
	return pcm, nil
}

// ReadFile opens path and returns its PCM bytes
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	pcm, err := ReadPCM(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pcm, nil
}

// Writer streams raw 16-bit LE PCM into a 16 kHz mono WAV. Samples are
// written as they arrive; the header sizes are fixed up by Close.
type Writer struct {
	enc    *wav.Encoder
	closer io.Closer
	buf    *audio.IntBuffer
	wrote  bool
}

// NewWriter wraps w. Close does not close w.
func NewWriter(w io.WriteSeeker) *Writer {
	return &Writer{
		enc: wav.NewEncoder(w, vad.SampleRate, vad.SampleWidth*8, 1, pcmFormat),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: vad.SampleRate},
			SourceBitDepth: vad.SampleWidth * 8,
		},
	}
}

// Create creates path and returns a Writer that closes the file on Close.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Write encodes pcm, which must hold whole samples.
func (w *Writer) Write(pcm []byte) (int, error) {
	if len(pcm)%vad.SampleWidth != 0 {
		return 0, ErrOddLength
	}

	n := len(pcm) / vad.SampleWidth
	if cap(w.buf.Data) < n {
		w.buf.Data = make([]int, n)
	}
	w.buf.Data = w.buf.Data[:n]
	for i := range w.buf.Data {
		w.buf.Data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*vad.SampleWidth:])))
	}

	if err := w.enc.Write(w.buf); err != nil {
		return 0, fmt.Errorf("encode wav: %w", err)
	}
	w.wrote = true
	return len(pcm), nil
}

// Close finalizes the WAV header and closes the underlying file, if any.
func (w *Writer) Close() error {
	var err error
	if !w.wrote {
		// The encoder only emits its header with the first buffer
		_, err = w.Write(nil)
	}
	if err == nil {
		if cerr := w.enc.Close(); cerr != nil {
			err = fmt.Errorf("finalize wav: %w", cerr)
		}
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// WritePCM encodes little-endian 16-bit PCM bytes as a 16 kHz mono WAV.
func WritePCM(w io.WriteSeeker, pcm []byte) error {
	if len(pcm)%vad.SampleWidth != 0 {
		return ErrOddLength
	}
	wr := NewWriter(w)
	if _, err := wr.Write(pcm); err != nil {
		return err
	}
	return wr.Close()
}

// WriteFile writes pcm to path as a WAV file
func WriteFile(path string, pcm []byte) error {
	w, err := Create(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		_ = w.closer.Close()
		return err
	}
	return w.Close()
}
