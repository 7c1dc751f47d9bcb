package vad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainThreshold(t *testing.T) {
	// mean 2.5, sample variance 5/3
	got, err := PlainThreshold([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 2.5+math.Sqrt(5.0/3.0), got, 1e-12)
}

func TestPlainThreshold_Identical(t *testing.T) {
	got, err := PlainThreshold([]float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1})
	require.NoError(t, err)
	assert.Equal(t, 0.1, got)
}

func TestZScoreThreshold_DropsClick(t *testing.T) {
	energies := []float64{10, 11, 9, 10, 12, 10, 400}

	got, err := ZScoreThreshold(energies, 1.0)
	require.NoError(t, err)

	want, err := PlainThreshold([]float64{10, 11, 9, 10, 12, 10})
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)

	plain, err := PlainThreshold(energies)
	require.NoError(t, err)
	assert.Less(t, got, plain, "outlier rejection should lower the threshold")
}

func TestZScoreThreshold_FallsBackWhenEverythingFiltered(t *testing.T) {
	energies := []float64{3, 5, 8, 13, 21}

	got, err := ZScoreThreshold(energies, -100)
	require.NoError(t, err)

	want, err := PlainThreshold(energies)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestZScoreThreshold_SingleSurvivor(t *testing.T) {
	// median 3, stdev ~1.58: only 1 has a z-score below -1
	_, err := ZScoreThreshold([]float64{1, 2, 3, 4, 5}, -1)
	assert.ErrorIs(t, err, ErrInsufficientCalibrationData)
}

func TestZScoreThreshold_AllZero(t *testing.T) {
	got, err := ZScoreThreshold(make([]float64, 34), 1.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
	assert.False(t, math.IsNaN(got))
}

func TestZScoreThreshold_UsesMedianNotMean(t *testing.T) {
	// the outlier pulls the mean up to 21.6 while the median stays at 2
	energies := []float64{1, 2, 3, 2, 100}
	got, err := ZScoreThreshold(energies, 0.5)
	require.NoError(t, err)

	want, err := PlainThreshold([]float64{1, 2, 3, 2})
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestThresholds_InsufficientData(t *testing.T) {
	for _, energies := range [][]float64{nil, {}, {4.2}} {
		_, err := PlainThreshold(energies)
		assert.ErrorIs(t, err, ErrInsufficientCalibrationData)

		_, err = ZScoreThreshold(energies, 1.0)
		assert.ErrorIs(t, err, ErrInsufficientCalibrationData)
	}
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 3.0, median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 7.0, median([]float64{7}))

	values := []float64{9, 8, 7}
	median(values)
	assert.Equal(t, []float64{9, 8, 7}, values, "median must not reorder its input")
}

func TestDetector_PolicySelection(t *testing.T) {
	calibration := make([][]byte, 0, 40)
	for i := 0; i < 40; i++ {
		amplitude := int16(30 + i%5)
		if i == 7 {
			amplitude = 3000 // click
		}
		calibration = append(calibration, alternatingChunk(240, amplitude))
	}

	learn := func(policy Policy) float64 {
		cfg := DefaultConfig()
		cfg.Policy = policy
		d, err := NewDetector(cfg)
		require.NoError(t, err)
		for _, chunk := range calibration {
			if d.State() == StateActive {
				break
			}
			_, err := d.ProcessChunk(chunk)
			require.NoError(t, err)
		}
		threshold, ok := d.Threshold()
		require.True(t, ok)
		return threshold
	}

	zscore := learn(PolicyZScore)
	plain := learn(PolicyPlain)
	assert.Less(t, zscore, plain)
	assert.Less(t, zscore, 100.0, "click should not inflate the z-score threshold")
}

func TestParsePolicy(t *testing.T) {
	testCases := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"zscore", PolicyZScore, false},
		{"ZScore", PolicyZScore, false},
		{"z-score", PolicyZScore, false},
		{"", PolicyZScore, false},
		{"plain", PolicyPlain, false},
		{" Plain ", PolicyPlain, false},
		{"median", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParsePolicy(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPolicy_String(t *testing.T) {
	assert.Equal(t, "zscore", PolicyZScore.String())
	assert.Equal(t, "plain", PolicyPlain.String())
	assert.Equal(t, "Policy(5)", Policy(5).String())
}
