// cmd/file.go
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/energyvad/internal/vad"
	"github.com/ColonelBlimp/energyvad/internal/wavio"
)

var fileCmd = &cobra.Command{
	Use:   "file <recording.wav>",
	Short: "Classify a WAV recording chunk by chunk",
	Long: `Classify a 16 kHz 16-bit mono WAV recording. Each chunk after calibration
is printed as "<start seconds>\t<speech|silence>". With --segments only the
speech ranges are printed as "<start>\t<end>".`,
	Args: cobra.ExactArgs(1),
	RunE: runFile,
}

func init() {
	fileCmd.Flags().Bool("segments", false, "print merged speech segments instead of per-chunk results")
	rootCmd.AddCommand(fileCmd)
}

func runFile(cmd *cobra.Command, args []string) error {
	settings, logger, err := loadSettings()
	if err != nil {
		return err
	}

	pcm, err := wavio.ReadFile(args[0])
	if err != nil {
		return err
	}

	detector, err := newDetector(settings)
	if err != nil {
		return err
	}

	results, err := detector.ProcessAll(pcm)
	if err != nil {
		return err
	}

	threshold, ok := detector.Threshold()
	if !ok {
		logger.Warn("recording ended during calibration", "file", args[0],
			"seconds_left", detector.CalibrateSecondsLeft())
	} else {
		logger.Info("classified recording", "file", args[0], "chunks", len(results),
			"threshold", threshold)
	}

	segments, _ := cmd.Flags().GetBool("segments")
	if segments {
		return writeSegments(cmd.OutOrStdout(), vad.Segments(results, detector.SecondsPerChunk()))
	}
	return writeResults(cmd.OutOrStdout(), results, detector.SecondsPerChunk())
}

func writeResults(w io.Writer, results []vad.Result, secondsPerChunk float64) error {
	for i, r := range results {
		if r == vad.Calibrating {
			continue
		}
		if _, err := fmt.Fprintf(w, "%.3f\t%s\n", float64(i)*secondsPerChunk, r); err != nil {
			return err
		}
	}
	return nil
}

func writeSegments(w io.Writer, segments []vad.Segment) error {
	for _, s := range segments {
		if _, err := fmt.Fprintf(w, "%.3f\t%.3f\n", s.Start.Seconds(), s.End.Seconds()); err != nil {
			return err
		}
	}
	return nil
}
