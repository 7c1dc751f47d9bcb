// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ColonelBlimp/energyvad/internal/vad"
)

const (
	AppName       = "energyvad"
	ConfigType    = "yaml"
	DefaultConfig = `# Energy VAD Configuration

# Audio input (16 kHz 16-bit mono PCM)
device_index: -1        # -1 for default capture device
buffer_size: 480        # Frames per capture callback

# Chunking
samples_per_chunk: 240  # Samples per decision (240 = 15 ms)

# Calibration
calibrate_seconds: 0.5          # Seconds of background audio used to learn the threshold
calibration_policy: "zscore"    # "zscore" drops loud outliers first, "plain" uses every chunk
calibrate_zscore_threshold: 1.0 # Median z-score cutoff for the zscore policy
# threshold: 350.0              # Fixed energy threshold, skips calibration when set

# Monitoring
metrics_addr: ""        # e.g. ":9090" to serve /metrics and /health

# Output
debug: false            # Enable debug output
`
)

// Settings holds all application configuration
type Settings struct {
	// Audio input
	DeviceIndex int `mapstructure:"device_index"`
	BufferSize  int `mapstructure:"buffer_size"`

	// Chunking
	SamplesPerChunk int `mapstructure:"samples_per_chunk"`

	// Calibration
	CalibrateSeconds         float64  `mapstructure:"calibrate_seconds"`
	CalibrationPolicy        string   `mapstructure:"calibration_policy"`
	CalibrateZScoreThreshold float64  `mapstructure:"calibrate_zscore_threshold"`
	Threshold                *float64 `mapstructure:"threshold"`

	// Monitoring
	MetricsAddr string `mapstructure:"metrics_addr"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/energyvad/
func Init() error {
	viper.SetDefault("device_index", -1)
	viper.SetDefault("buffer_size", 480)
	viper.SetDefault("samples_per_chunk", vad.DefaultSamplesPerChunk)
	viper.SetDefault("calibrate_seconds", vad.DefaultCalibrateSeconds)
	viper.SetDefault("calibration_policy", vad.PolicyZScore.String())
	viper.SetDefault("calibrate_zscore_threshold", vad.DefaultZScoreThreshold)
	viper.SetDefault("metrics_addr", "")
	viper.SetDefault("debug", false)

	viper.SetConfigType(ConfigType)
	viper.SetEnvPrefix("ENERGYVAD")
	viper.AutomaticEnv()
	// threshold has no default, so AutomaticEnv alone never surfaces it to Unmarshal
	if err := viper.BindEnv("threshold"); err != nil {
		return fmt.Errorf("bind env: %w", err)
	}

	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	if s.BufferSize < 16 || s.BufferSize > 16000 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 16 and 16000, got %d", s.BufferSize))
	}

	// One chunk must be between 1 ms and 1 s of audio
	if s.SamplesPerChunk < 16 || s.SamplesPerChunk > vad.SampleRate {
		errs = append(errs, fmt.Errorf("samples_per_chunk must be between 16 and %d, got %d", vad.SampleRate, s.SamplesPerChunk))
	}

	if s.CalibrateSeconds < 0 || s.CalibrateSeconds > 60 {
		errs = append(errs, fmt.Errorf("calibrate_seconds must be between 0 and 60, got %v", s.CalibrateSeconds))
	}
	if _, err := vad.ParsePolicy(s.CalibrationPolicy); err != nil {
		errs = append(errs, fmt.Errorf("calibration_policy must be \"zscore\" or \"plain\", got %q", s.CalibrationPolicy))
	}
	if math.IsNaN(s.CalibrateZScoreThreshold) || math.IsInf(s.CalibrateZScoreThreshold, 0) {
		errs = append(errs, fmt.Errorf("calibrate_zscore_threshold must be finite, got %v", s.CalibrateZScoreThreshold))
	}

	if s.Threshold != nil {
		if *s.Threshold < 0 || math.IsNaN(*s.Threshold) {
			errs = append(errs, fmt.Errorf("threshold must be non-negative, got %v", *s.Threshold))
		}
	} else {
		// Finalizing needs at least two calibration chunks
		secondsPerChunk := float64(s.SamplesPerChunk) / vad.SampleRate
		if s.SamplesPerChunk > 0 && s.CalibrateSeconds <= secondsPerChunk {
			errs = append(errs, fmt.Errorf("calibrate_seconds (%v) must exceed one chunk (%v s) when no threshold is set",
				s.CalibrateSeconds, secondsPerChunk))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DetectorConfig maps the settings onto a detector configuration
func (s *Settings) DetectorConfig() (vad.Config, error) {
	policy, err := vad.ParsePolicy(s.CalibrationPolicy)
	if err != nil {
		return vad.Config{}, err
	}
	cfg := vad.Config{
		SamplesPerChunk:  s.SamplesPerChunk,
		CalibrateSeconds: s.CalibrateSeconds,
		Policy:           policy,
		ZScoreThreshold:  s.CalibrateZScoreThreshold,
	}
	if s.Threshold != nil {
		threshold := *s.Threshold
		cfg.Threshold = &threshold
	}
	return cfg, nil
}
