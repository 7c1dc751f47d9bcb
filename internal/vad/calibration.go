package vad

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Policy selects how calibration energies become a threshold.
// Both policies use the sample (Bessel-corrected) standard deviation.
type Policy int

const (
	// PolicyZScore drops energies whose median z-score reaches ZScoreThreshold,
	// then uses mean + stdev of what remains
	PolicyZScore Policy = iota
	// PolicyPlain uses mean + stdev of all calibration energies
	PolicyPlain
)

func (p Policy) String() string {
	switch p {
	case PolicyZScore:
		return "zscore"
	case PolicyPlain:
		return "plain"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a config value ("zscore" or "plain") to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zscore", "z-score", "":
		return PolicyZScore, nil
	case "plain":
		return PolicyPlain, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

func (p Policy) valid() bool {
	return p == PolicyZScore || p == PolicyPlain
}

func (p Policy) finalize(energies []float64, zscoreThreshold float64) (float64, error) {
	switch p {
	case PolicyPlain:
		return PlainThreshold(energies)
	case PolicyZScore:
		return ZScoreThreshold(energies, zscoreThreshold)
	default:
		return 0, ErrInvalidPolicy
	}
}

// PlainThreshold returns mean(energies) + stdev(energies).
func PlainThreshold(energies []float64) (float64, error) {
	if len(energies) < 2 {
		return 0, fmt.Errorf("%w: have %d", ErrInsufficientCalibrationData, len(energies))
	}
	mean, stdev := meanStdDev(energies)
	return mean + stdev, nil
}

// ZScoreThreshold filters out energies with (x - median) / stdev >= cutoff and
// returns mean + stdev of the rest. If nothing survives the filter, all
// energies are used. A lone survivor has no standard deviation and is
// reported as ErrInsufficientCalibrationData.
func ZScoreThreshold(energies []float64, cutoff float64) (float64, error) {
	if len(energies) < 2 {
		return 0, fmt.Errorf("%w: have %d", ErrInsufficientCalibrationData, len(energies))
	}

	med := median(energies)
	_, stdev := meanStdDev(energies)

	kept := energies
	// Identical energies have no spread and therefore no outliers.
	if stdev > 0 {
		filtered := make([]float64, 0, len(energies))
		for _, x := range energies {
			if (x-med)/stdev < cutoff {
				filtered = append(filtered, x)
			}
		}
		if len(filtered) > 0 {
			kept = filtered
		}
	}

	if len(kept) < 2 {
		return 0, fmt.Errorf("%w: 1 of %d energies survived outlier rejection",
			ErrInsufficientCalibrationData, len(energies))
	}
	mean, keptStdev := meanStdDev(kept)
	return mean + keptStdev, nil
}

// meanStdDev returns the mean and sample standard deviation. Identical values
// yield exactly (value, 0) so a constant background learns its own level.
func meanStdDev(values []float64) (mean, stdev float64) {
	lo, hi := slices.Min(values), slices.Max(values)
	if lo == hi {
		return lo, 0
	}
	mean, variance := stat.MeanVariance(values, nil)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// median of a non-empty slice; averages the two middle values for even lengths.
func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
