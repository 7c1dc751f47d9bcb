// cmd/root.go
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/energyvad/internal/config"
	"github.com/ColonelBlimp/energyvad/internal/logging"
	"github.com/ColonelBlimp/energyvad/internal/vad"
)

var rootCmd = &cobra.Command{
	Use:   "energyvad",
	Short: "Energy-based voice activity detection for 16 kHz PCM audio",
	Long: `energyvad classifies 16 kHz 16-bit mono audio into speech and silence.
The energy threshold is either fixed or learned from the first
calibrate_seconds of audio, dropping outliers by median z-score.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	flags := rootCmd.PersistentFlags()
	flags.IntP("samples", "s", vad.DefaultSamplesPerChunk, "samples per chunk")
	flags.Float64P("calibrate", "c", vad.DefaultCalibrateSeconds, "seconds of audio used to learn the threshold")
	flags.Float64P("zscore", "z", vad.DefaultZScoreThreshold, "median z-score cutoff for calibration outliers")
	flags.StringP("policy", "p", vad.PolicyZScore.String(), `calibration policy ("zscore" or "plain")`)
	flags.Float64P("threshold", "t", 0, "fixed energy threshold, skips calibration")
	flags.BoolP("debug", "D", false, "enable debug output")
}

// flagKeys maps persistent flags to their config keys. threshold is
// handled separately since an unset flag must leave the key unset.
var flagKeys = map[string]string{
	"samples":   "samples_per_chunk",
	"calibrate": "calibrate_seconds",
	"zscore":    "calibrate_zscore_threshold",
	"policy":    "calibration_policy",
	"debug":     "debug",
}

// bindFlags binds the flags of the running command to viper
func bindFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if f := cmd.Flags().Lookup("threshold"); f != nil && f.Changed {
		threshold, err := cmd.Flags().GetFloat64("threshold")
		if err != nil {
			return err
		}
		viper.Set("threshold", threshold)
	}
	return nil
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings reads validated settings and installs the logger
func loadSettings() (*config.Settings, *slog.Logger, error) {
	settings, err := config.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return settings, logging.Setup(settings.Debug), nil
}

// newDetector builds a detector from the settings
func newDetector(settings *config.Settings) (*vad.Detector, error) {
	cfg, err := settings.DetectorConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return vad.NewDetector(cfg)
}
