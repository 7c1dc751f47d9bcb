package vad

import (
	"fmt"
	"time"
)

// Segment is a contiguous run of Speech chunks.
type Segment struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns the length of the segment
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// ProcessAll splits pcm into whole chunks and processes them in order.
// A trailing partial chunk is ignored. Calibrating results are included so
// index i always corresponds to chunk i.
func (d *Detector) ProcessAll(pcm []byte) ([]Result, error) {
	results := make([]Result, 0, len(pcm)/d.bytesPerChunk)
	for offset := 0; offset+d.bytesPerChunk <= len(pcm); offset += d.bytesPerChunk {
		r, err := d.ProcessChunk(pcm[offset : offset+d.bytesPerChunk])
		if err != nil {
			return results, fmt.Errorf("chunk %d: %w", offset/d.bytesPerChunk, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// Decisions drops Calibrating results and returns true for Speech.
func Decisions(results []Result) []bool {
	out := make([]bool, 0, len(results))
	for _, r := range results {
		if speech, ok := r.IsSpeech(); ok {
			out = append(out, speech)
		}
	}
	return out
}

// Segments merges consecutive Speech results into time ranges, where
// results[i] covers [i*secondsPerChunk, (i+1)*secondsPerChunk).
func Segments(results []Result, secondsPerChunk float64) []Segment {
	at := func(i int) time.Duration {
		return time.Duration(float64(i) * secondsPerChunk * float64(time.Second))
	}

	var segments []Segment
	start := -1
	for i, r := range results {
		switch {
		case r == Speech && start < 0:
			start = i
		case r != Speech && start >= 0:
			segments = append(segments, Segment{Start: at(start), End: at(i)})
			start = -1
		}
	}
	if start >= 0 {
		segments = append(segments, Segment{Start: at(start), End: at(len(results))})
	}
	return segments
}
