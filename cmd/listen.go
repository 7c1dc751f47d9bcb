// cmd/listen.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/ColonelBlimp/energyvad/internal/audio"
	"github.com/ColonelBlimp/energyvad/internal/metrics"
	"github.com/ColonelBlimp/energyvad/internal/recovery"
	"github.com/ColonelBlimp/energyvad/internal/vad"
	"github.com/ColonelBlimp/energyvad/internal/wavio"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Detect speech on a live capture device",
	Long: `Capture 16 kHz mono audio, calibrate on the first calibrate_seconds and
log every transition between speech and silence until interrupted.
Send SIGHUP to discard the threshold and calibrate again.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().IntP("device", "d", -1, "audio device index (-1 for default)")
	listenCmd.Flags().String("metrics-addr", "", `serve /metrics and /health on this address (e.g. ":9090")`)
	listenCmd.Flags().String("record", "", "stream the captured audio to this WAV file")
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlag("device_index", cmd.Flags().Lookup("device")); err != nil {
		return err
	}
	if err := viper.BindPFlag("metrics_addr", cmd.Flags().Lookup("metrics-addr")); err != nil {
		return err
	}

	settings, logger, err := loadSettings()
	if err != nil {
		return err
	}

	detector, err := newDetector(settings)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capture := audio.New(audio.Config{
		DeviceIndex: settings.DeviceIndex,
		SampleRate:  vad.SampleRate,
		Channels:    1,
		BufferSize:  uint32(settings.BufferSize),
	})
	if err := capture.Init(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer func() {
		if err := capture.Close(); err != nil {
			logger.Warn("close audio", "err", err)
		}
	}()

	m := metrics.New()
	mon, err := newMonitor(detector, m, logger)
	if err != nil {
		return err
	}

	record, _ := cmd.Flags().GetString("record")
	if record != "" {
		rec, err := wavio.Create(record)
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("close recording", "file", record, "err", err)
				return
			}
			logger.Info("recording saved", "file", record)
		}()
		mon.recording = rec
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	capture.SetCallback(m.ObserveInput)
	if err := capture.Start(ctx); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	logger.Info("listening", "device", settings.DeviceIndex, "calibrate_seconds", settings.CalibrateSeconds,
		"policy", settings.CalibrationPolicy)

	g, gctx := errgroup.WithContext(ctx)
	if settings.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, settings.MetricsAddr, m, logger)
		})
	}
	g.Go(func() error {
		return recovery.Call(func() error {
			return mon.run(gctx, capture.Samples, hup)
		})
	})

	return g.Wait()
}

// monitor drives a detector from a stream of capture buffers and reports
// speech/silence transitions
type monitor struct {
	detector  *vad.Detector
	framer    *audio.Framer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	chunks    int
	last      vad.Result
	recording io.Writer
}

func newMonitor(d *vad.Detector, m *metrics.Metrics, logger *slog.Logger) (*monitor, error) {
	framer, err := audio.NewFramer(d.BytesPerChunk())
	if err != nil {
		return nil, err
	}
	mon := &monitor{
		detector: d,
		framer:   framer,
		metrics:  m,
		logger:   logger,
		last:     vad.Calibrating,
	}
	if threshold, ok := d.Threshold(); ok {
		m.SetThreshold(threshold, false)
	}
	return mon, nil
}

// run consumes buffers until ctx is cancelled or in is closed. Each value
// on recalibrate starts a new calibration cycle; a nil channel disables it.
func (mon *monitor) run(ctx context.Context, in <-chan []byte, recalibrate <-chan os.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-recalibrate:
			mon.recalibrate()
		case pcm, ok := <-in:
			if !ok {
				return nil
			}
			if err := mon.write(pcm); err != nil {
				return err
			}
		}
	}
}

// recalibrate drops the threshold and any partial chunk so the next
// calibrate_seconds of audio set a new one
func (mon *monitor) recalibrate() {
	mon.detector.ResetCalibration()
	mon.framer.Reset()
	mon.metrics.ResetThreshold()
	mon.last = vad.Calibrating
	mon.logger.Info("recalibrating", "at_chunk", mon.chunks)
}

func (mon *monitor) write(pcm []byte) error {
	if mon.recording != nil {
		if _, err := mon.recording.Write(pcm); err != nil {
			// Detection outlives a failed recording.
			mon.logger.Error("recording stopped", "err", err)
			mon.recording = nil
		}
	}
	return mon.framer.Write(pcm, mon.process)
}

func (mon *monitor) process(chunk []byte) error {
	result, err := mon.detector.ProcessChunk(chunk)
	mon.metrics.Observe(result, mon.detector.LastEnergy(), err)
	if err != nil {
		return fmt.Errorf("chunk %d: %w", mon.chunks, err)
	}
	at := float64(mon.chunks) * mon.detector.SecondsPerChunk()
	mon.chunks++

	if mon.last == vad.Calibrating && result == vad.Calibrating {
		if threshold, ok := mon.detector.Threshold(); ok {
			mon.metrics.SetThreshold(threshold, true)
			mon.logger.Info("calibrated", "threshold", threshold,
				"energies", len(mon.detector.CalibrationEnergies()))
		}
	}

	mon.logger.Debug("chunk", "index", mon.chunks-1, "energy", mon.detector.LastEnergy(), "result", result)

	if result != vad.Calibrating && result != mon.last {
		mon.logger.Info(result.String(), "at", fmt.Sprintf("%.3fs", at), "energy", mon.detector.LastEnergy())
	}
	mon.last = result
	return nil
}
