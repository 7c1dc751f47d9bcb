// cmd/calibrate.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/energyvad/internal/vad"
	"github.com/ColonelBlimp/energyvad/internal/wavio"
)

var ErrRecordingTooShort = errors.New("recording too short to calibrate")

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <background.wav>",
	Short: "Learn an energy threshold from a background recording",
	Long: `Run calibration over the start of a WAV recording and print the learned
threshold. The value can be pinned with the threshold config key or --threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	settings, logger, err := loadSettings()
	if err != nil {
		return err
	}

	// A configured threshold would skip calibration entirely
	settings.Threshold = nil
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	pcm, err := wavio.ReadFile(args[0])
	if err != nil {
		return err
	}

	detector, err := newDetector(settings)
	if err != nil {
		return err
	}

	threshold, err := calibrate(detector, pcm)
	if err != nil {
		return err
	}

	logger.Info("calibrated", "file", args[0], "policy", settings.CalibrationPolicy,
		"energies", len(detector.CalibrationEnergies()), "threshold", threshold)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", threshold)
	return err
}

// calibrate feeds pcm to d until it leaves the calibrating state
func calibrate(d *vad.Detector, pcm []byte) (float64, error) {
	size := d.BytesPerChunk()
	for offset := 0; offset+size <= len(pcm); offset += size {
		if _, err := d.ProcessChunk(pcm[offset : offset+size]); err != nil {
			return 0, err
		}
		if threshold, ok := d.Threshold(); ok {
			return threshold, nil
		}
	}
	return 0, fmt.Errorf("%w: %.3f s of calibration left", ErrRecordingTooShort, max(d.CalibrateSecondsLeft(), 0))
}
