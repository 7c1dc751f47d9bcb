// internal/vad/detector.go
// Package vad implements an energy-based voice activity detector for
// 16-bit mono PCM at 16 kHz with a self-calibrating silence threshold.
package vad

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Audio format constants. The chunk duration math depends on these being fixed.
const (
	// SampleRate is the only supported sample rate in Hz
	SampleRate = 16000
	// SampleWidth is the size of one sample in bytes (16-bit signed)
	SampleWidth = 2

	// DefaultSamplesPerChunk is 15 ms of audio at SampleRate
	DefaultSamplesPerChunk = 240
	// DefaultCalibrateSeconds is the amount of audio used to learn the threshold
	DefaultCalibrateSeconds = 0.5
	// DefaultZScoreThreshold excludes calibration energies at or above this median z-score
	DefaultZScoreThreshold = 1.0
)

var (
	// ErrInvalidInputSize indicates a chunk whose length differs from BytesPerChunk
	ErrInvalidInputSize = errors.New("chunk size does not match bytes per chunk")
	// ErrInsufficientCalibrationData indicates fewer than two calibration energies were collected
	ErrInsufficientCalibrationData = errors.New("at least 2 calibration energies are required")
	// ErrInvalidSamplesPerChunk indicates samples per chunk must be positive
	ErrInvalidSamplesPerChunk = errors.New("samples per chunk must be positive")
	// ErrInvalidCalibrateSeconds indicates calibration duration must be non-negative
	ErrInvalidCalibrateSeconds = errors.New("calibrate seconds must be non-negative")
	// ErrInvalidThreshold indicates a preset threshold must be non-negative
	ErrInvalidThreshold = errors.New("threshold must be non-negative")
	// ErrInvalidZScoreThreshold indicates the z-score cutoff must be a finite number
	ErrInvalidZScoreThreshold = errors.New("z-score threshold must be finite")
	// ErrInvalidPolicy indicates an unknown calibration policy
	ErrInvalidPolicy = errors.New("unknown calibration policy")
)

// Result is the outcome of processing one chunk.
type Result int

const (
	// Calibrating means the chunk was consumed by calibration and not classified
	Calibrating Result = iota
	// Silence means the chunk energy was at or below the threshold
	Silence
	// Speech means the chunk energy was above the threshold
	Speech
)

func (r Result) String() string {
	switch r {
	case Calibrating:
		return "calibrating"
	case Silence:
		return "silence"
	case Speech:
		return "speech"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// IsSpeech reports whether r is Speech. The second value is false while calibrating.
func (r Result) IsSpeech() (speech bool, ok bool) {
	return r == Speech, r != Calibrating
}

// State is the detector's calibration state.
type State int

const (
	// StateCalibrating collects energies until the threshold can be learned
	StateCalibrating State = iota
	// StateActive classifies every chunk against a fixed threshold
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "calibrating"
}

// Config holds configuration for the detector.
// Values normally come from the application config file.
type Config struct {
	// Threshold is a preset energy threshold (from config: threshold).
	// Nil means the threshold is learned by calibration.
	Threshold *float64
	// SamplesPerChunk fixes the size of every chunk (from config: samples_per_chunk)
	SamplesPerChunk int
	// CalibrateSeconds of audio are used to learn the threshold (from config: calibrate_seconds)
	CalibrateSeconds float64
	// Policy selects how the threshold is derived from calibration energies (from config: calibration_policy)
	Policy Policy
	// ZScoreThreshold is the median z-score cutoff for PolicyZScore (from config: calibrate_zscore_threshold)
	ZScoreThreshold float64
}

// DefaultConfig returns a calibrating configuration with outlier rejection.
func DefaultConfig() Config {
	return Config{
		SamplesPerChunk:  DefaultSamplesPerChunk,
		CalibrateSeconds: DefaultCalibrateSeconds,
		Policy:           PolicyZScore,
		ZScoreThreshold:  DefaultZScoreThreshold,
	}
}

// Detector classifies fixed-size PCM chunks as speech or silence.
// A Detector is not safe for concurrent use; use one per audio stream.
type Detector struct {
	config          Config
	bytesPerChunk   int
	secondsPerChunk float64

	state                State
	threshold            float64
	calibrateSecondsLeft float64
	calibrationEnergies  []float64

	samples    []int16 // reused decode buffer
	lastEnergy float64
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg Config) (*Detector, error) {
	if cfg.SamplesPerChunk <= 0 {
		return nil, ErrInvalidSamplesPerChunk
	}
	if cfg.CalibrateSeconds < 0 || math.IsNaN(cfg.CalibrateSeconds) {
		return nil, ErrInvalidCalibrateSeconds
	}
	if cfg.Threshold != nil && (*cfg.Threshold < 0 || math.IsNaN(*cfg.Threshold)) {
		return nil, ErrInvalidThreshold
	}
	if math.IsNaN(cfg.ZScoreThreshold) || math.IsInf(cfg.ZScoreThreshold, 0) {
		return nil, ErrInvalidZScoreThreshold
	}
	if !cfg.Policy.valid() {
		return nil, ErrInvalidPolicy
	}

	d := &Detector{
		config:               cfg,
		bytesPerChunk:        cfg.SamplesPerChunk * SampleWidth,
		secondsPerChunk:      float64(cfg.SamplesPerChunk) / SampleRate,
		calibrateSecondsLeft: cfg.CalibrateSeconds,
		samples:              make([]int16, cfg.SamplesPerChunk),
	}
	if cfg.Threshold != nil {
		d.threshold = *cfg.Threshold
		d.state = StateActive
	}
	return d, nil
}

// ProcessChunk classifies one chunk of 16-bit little-endian mono PCM.
// The chunk must be exactly BytesPerChunk bytes long.
func (d *Detector) ProcessChunk(chunk []byte) (Result, error) {
	if len(chunk) != d.bytesPerChunk {
		return Calibrating, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidInputSize, len(chunk), d.bytesPerChunk)
	}

	for i := range d.samples {
		d.samples[i] = int16(binary.LittleEndian.Uint16(chunk[i*SampleWidth:]))
	}
	energy := Energy(d.samples)
	d.lastEnergy = energy

	if d.state == StateCalibrating {
		if d.calibrateSecondsLeft > 0 {
			d.calibrationEnergies = append(d.calibrationEnergies, energy)
			d.calibrateSecondsLeft -= d.secondsPerChunk
			return Calibrating, nil
		}

		// The chunk that completes calibration is not classified.
		threshold, err := d.config.Policy.finalize(d.calibrationEnergies, d.config.ZScoreThreshold)
		if err != nil {
			return Calibrating, err
		}
		d.threshold = threshold
		d.state = StateActive
		return Calibrating, nil
	}

	if energy > d.threshold {
		return Speech, nil
	}
	return Silence, nil
}

// ResetCalibration discards the threshold and starts a new calibration cycle.
func (d *Detector) ResetCalibration() {
	d.calibrateSecondsLeft = d.config.CalibrateSeconds
	d.calibrationEnergies = d.calibrationEnergies[:0]
	d.threshold = 0
	d.state = StateCalibrating
}

// Energy returns the debiased RMS energy of samples: the chunk's RMS is
// added back to every sample as a negative bias and the RMS is recomputed.
func Energy(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	n := float64(len(samples))

	// Squares of int16 fit int64 exactly for any realistic chunk size.
	var sumSquares int64
	for _, s := range samples {
		sumSquares += int64(s) * int64(s)
	}
	bias := -math.Sqrt(float64(sumSquares) / n)

	var sum float64
	for _, s := range samples {
		centered := float64(s) + bias
		sum += centered * centered
	}
	return math.Sqrt(sum / n)
}

// State returns the current calibration state
func (d *Detector) State() State {
	return d.state
}

// Threshold returns the decision threshold and whether it is set
func (d *Detector) Threshold() (float64, bool) {
	return d.threshold, d.state == StateActive
}

// LastEnergy returns the debiased energy of the most recently processed chunk
func (d *Detector) LastEnergy() float64 {
	return d.lastEnergy
}

// CalibrationEnergies returns a copy of the energies collected in the current cycle
func (d *Detector) CalibrationEnergies() []float64 {
	out := make([]float64, len(d.calibrationEnergies))
	copy(out, d.calibrationEnergies)
	return out
}

// CalibrateSecondsLeft returns the remaining calibration countdown
func (d *Detector) CalibrateSecondsLeft() float64 {
	return d.calibrateSecondsLeft
}

// BytesPerChunk returns the required chunk length in bytes
func (d *Detector) BytesPerChunk() int {
	return d.bytesPerChunk
}

// SecondsPerChunk returns the duration of one chunk
func (d *Detector) SecondsPerChunk() float64 {
	return d.secondsPerChunk
}

// Config returns the detector configuration
func (d *Detector) Config() Config {
	return d.config
}
