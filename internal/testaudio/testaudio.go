// Package testaudio synthesizes deterministic 16 kHz 16-bit mono PCM for tests:
// a background hum standing in for room silence and voiced bursts standing in
// for speech. Every generator is periodic in whole chunks, so equal inputs
// always produce bit-identical chunk energies.
package testaudio

import (
	"encoding/binary"
	"math"
	"path/filepath"

	"github.com/ColonelBlimp/energyvad/internal/vad"
	"github.com/ColonelBlimp/energyvad/internal/wavio"
)

const (
	// HumPeriod is the hum period in samples (200 Hz); it divides DefaultSamplesPerChunk
	HumPeriod = 80
	// HumAmplitude is the peak hum level
	HumAmplitude = 40
	// VoicePeriod is the fundamental period of voiced audio in samples (~133 Hz)
	VoicePeriod = 120
	// VoiceAmplitude is the peak level of voiced audio
	VoiceAmplitude = 6000
)

// Samples returns the number of samples in seconds of audio
func Samples(seconds float64) int {
	return int(math.Round(seconds * vad.SampleRate))
}

// Zeros returns seconds of digital silence
func Zeros(seconds float64) []byte {
	return make([]byte, Samples(seconds)*vad.SampleWidth)
}

// Hum returns seconds of low-level 200 Hz hum
func Hum(seconds float64) []byte {
	n := Samples(seconds)
	out := make([]int16, n)
	for i := range out {
		phase := 2 * math.Pi * float64(i%HumPeriod) / HumPeriod
		out[i] = int16(math.Round(HumAmplitude * math.Sin(phase)))
	}
	return Encode(out)
}

// Voiced returns seconds of a harmonic-rich tone over the hum
func Voiced(seconds float64) []byte {
	n := Samples(seconds)
	out := make([]int16, n)
	for i := range out {
		phase := 2 * math.Pi * float64(i%VoicePeriod) / VoicePeriod
		v := math.Sin(phase) + 0.5*math.Sin(2*phase) + 0.25*math.Sin(3*phase)
		hum := HumAmplitude * math.Sin(2*math.Pi*float64(i%HumPeriod)/HumPeriod)
		out[i] = int16(math.Round(VoiceAmplitude/1.75*v + hum))
	}
	return Encode(out)
}

// Constant returns n samples all equal to level
func Constant(n int, level int16) []byte {
	out := make([]int16, n)
	for i := range out {
		out[i] = level
	}
	return Encode(out)
}

// Concat joins PCM buffers
func Concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// SilenceRecording is two seconds of hum
func SilenceRecording() []byte {
	return Hum(2)
}

// SpeechRecording starts with one second of hum for calibration, followed by
// three voiced bursts separated by hum.
func SpeechRecording() []byte {
	return Concat(
		Hum(1),
		Voiced(0.3), Hum(0.45),
		Voiced(0.3), Hum(0.45),
		Voiced(0.3), Hum(0.6),
	)
}

// WriteFixtures writes silence.wav and speech.wav into dir and returns their paths
func WriteFixtures(dir string) (silence, speech string, err error) {
	silence = filepath.Join(dir, "silence.wav")
	speech = filepath.Join(dir, "speech.wav")
	if err = wavio.WriteFile(silence, SilenceRecording()); err != nil {
		return "", "", err
	}
	if err = wavio.WriteFile(speech, SpeechRecording()); err != nil {
		return "", "", err
	}
	return silence, speech, nil
}

// Encode converts samples to little-endian PCM bytes
func Encode(samples []int16) []byte {
	out := make([]byte, len(samples)*vad.SampleWidth)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*vad.SampleWidth:], uint16(s))
	}
	return out
}
