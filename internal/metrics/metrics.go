// internal/metrics/metrics.go
package metrics

import (
	"encoding/binary"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ColonelBlimp/energyvad/internal/vad"
)

// Metrics contains the Prometheus collectors for a running detector
type Metrics struct {
	registry *prometheus.Registry

	ChunksProcessed *prometheus.CounterVec
	ChunkErrors     prometheus.Counter
	Calibrations    prometheus.Counter
	Threshold       prometheus.Gauge
	ChunkEnergy     prometheus.Histogram
	InputPeak       prometheus.Gauge
}

// New creates the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChunksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "energyvad_chunks_processed_total",
			Help: "Total number of chunks processed, by result",
		}, []string{"result"}),
		ChunkErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "energyvad_chunk_errors_total",
			Help: "Total number of chunks rejected by the detector",
		}),
		Calibrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "energyvad_calibrations_total",
			Help: "Total number of completed threshold calibrations",
		}),
		Threshold: factory.NewGauge(prometheus.GaugeOpts{
			Name: "energyvad_threshold",
			Help: "Current energy threshold, 0 while calibrating",
		}),
		ChunkEnergy: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "energyvad_chunk_energy",
			Help:    "Debiased RMS energy of processed chunks",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}),
		InputPeak: factory.NewGauge(prometheus.GaugeOpts{
			Name: "energyvad_input_peak",
			Help: "Peak absolute sample of the last capture buffer",
		}),
	}
}

// Registry exposes the private registry for serving or gathering
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records the outcome of one ProcessChunk call
func (m *Metrics) Observe(result vad.Result, energy float64, err error) {
	if err != nil {
		m.ChunkErrors.Inc()
		return
	}
	m.ChunksProcessed.WithLabelValues(result.String()).Inc()
	m.ChunkEnergy.Observe(energy)
}

// SetThreshold records a newly learned or preset threshold
func (m *Metrics) SetThreshold(threshold float64, calibrated bool) {
	m.Threshold.Set(threshold)
	if calibrated {
		m.Calibrations.Inc()
	}
}

// ResetThreshold clears the gauge when the detector returns to calibrating
func (m *Metrics) ResetThreshold() {
	m.Threshold.Set(0)
}

// ObserveInput records the peak level of a raw 16-bit LE capture buffer.
// It is cheap enough to run on the audio thread.
func (m *Metrics) ObserveInput(pcm []byte) {
	var peak int32
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int32(int16(binary.LittleEndian.Uint16(pcm[i:])))
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}
	m.InputPeak.Set(float64(peak))
}
