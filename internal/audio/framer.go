// internal/audio/framer.go
package audio

import (
	"errors"
	"fmt"
)

var ErrInvalidChunkSize = errors.New("chunk size must be a positive even number of bytes")

// Framer regroups arbitrarily sized capture buffers into fixed-size
// chunks. Leftover bytes are carried into the next Write.
type Framer struct {
	size    int
	pending []byte
}

// NewFramer returns a framer emitting chunks of chunkBytes bytes
func NewFramer(chunkBytes int) (*Framer, error) {
	if chunkBytes <= 0 || chunkBytes%2 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkBytes)
	}
	return &Framer{
		size:    chunkBytes,
		pending: make([]byte, 0, chunkBytes),
	}, nil
}

// Write appends pcm and calls emit for every complete chunk, in order.
// The chunk passed to emit is reused after emit returns.
// Processing stops at the first error from emit.
func (f *Framer) Write(pcm []byte, emit func(chunk []byte) error) error {
	for len(pcm) > 0 {
		// Fast path: nothing pending and a full chunk available
		if len(f.pending) == 0 && len(pcm) >= f.size {
			if err := emit(pcm[:f.size]); err != nil {
				return err
			}
			pcm = pcm[f.size:]
			continue
		}

		n := min(f.size-len(f.pending), len(pcm))
		f.pending = append(f.pending, pcm[:n]...)
		pcm = pcm[n:]

		if len(f.pending) == f.size {
			err := emit(f.pending)
			f.pending = f.pending[:0]
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Pending returns the number of buffered bytes not yet emitted
func (f *Framer) Pending() int {
	return len(f.pending)
}

// ChunkSize returns the emitted chunk length in bytes
func (f *Framer) ChunkSize() int {
	return f.size
}

// Reset discards buffered bytes
func (f *Framer) Reset() {
	f.pending = f.pending[:0]
}
