package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	zonesDetected    *prometheus.CounterVec
	activeZones      *prometheus.GaugeVec
	signalsGenerated *prometheus.CounterVec
	signalsRejected  *prometheus.CounterVec
	scanDuration     *prometheus.HistogramVec
	lastPrice        *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		zonesDetected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaphizix_zones_detected_total",
				Help: "Total number of structural zones detected",
			},
			[]string{"symbol", "timeframe"},
		),
		activeZones: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "metaphizix_zones_active",
				Help: "Number of non-terminal zones currently stored",
			},
			[]string{"symbol", "timeframe"},
		),
		signalsGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaphizix_signals_generated_total",
				Help: "Total number of trade signals generated",
			},
			[]string{"symbol", "type"},
		),
		signalsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaphizix_signals_rejected_total",
				Help: "Total number of candidate signals rejected by filters",
			},
			[]string{"symbol", "reason"},
		),
		scanDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metaphizix_scan_duration_seconds",
				Help:    "Duration of zone scans in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "metaphizix_last_price",
				Help: "Last observed mid price for a symbol",
			},
			[]string{"symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaphizix_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordZoneDetected(symbol, timeframe string) {
	r.zonesDetected.WithLabelValues(symbol, timeframe).Inc()
}

func (r *Recorder) RecordActiveZones(symbol, timeframe string, n int) {
	r.activeZones.WithLabelValues(symbol, timeframe).Set(float64(n))
}

func (r *Recorder) RecordSignalGenerated(symbol, kind string) {
	r.signalsGenerated.WithLabelValues(symbol, kind).Inc()
}

func (r *Recorder) RecordSignalRejected(symbol, reason string) {
	r.signalsRejected.WithLabelValues(symbol, reason).Inc()
}

func (r *Recorder) RecordScanDuration(symbol string, seconds float64) {
	r.scanDuration.WithLabelValues(symbol).Observe(seconds)
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
