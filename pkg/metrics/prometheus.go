package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the scanner's Metrics port on Prometheus.
type Recorder struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	cycleAssets   *prometheus.GaugeVec
	outcomes      *prometheus.CounterVec
	confirmed     *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	duplicates    prometheus.Counter
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsescan_cycles_total",
			Help: "Completed scan cycles by result",
		}, []string{"result"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulsescan_cycle_duration_seconds",
			Help:    "Wall time of one scan cycle",
			Buckets: []float64{5, 15, 30, 60, 120, 180, 240, 300, 600},
		}),
		cycleAssets: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulsescan_cycle_assets",
			Help: "Assets expected and analyzed in the last cycle",
		}, []string{"kind"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsescan_asset_outcomes_total",
			Help: "Per-asset analysis outcomes",
		}, []string{"kind"}),
		confirmed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsescan_signals_confirmed_total",
			Help: "Signals that passed both indicators",
		}, []string{"tier", "direction"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsescan_alerts_total",
			Help: "Alert deliveries by tier and result",
		}, []string{"tier", "result"}),
		duplicates: f.NewCounter(prometheus.CounterOpts{
			Name: "pulsescan_duplicates_suppressed_total",
			Help: "Confirmed signals suppressed by the dedup window",
		}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsescan_errors_total",
			Help: "Errors by kind",
		}, []string{"kind"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulsescan_operation_duration_seconds",
			Help:    "Duration of internal operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordCycle(d time.Duration, expected, analyzed int, degraded bool) {
	result := "ok"
	if degraded {
		result = "degraded"
	}
	r.cycles.WithLabelValues(result).Inc()
	r.cycleDuration.Observe(d.Seconds())
	r.cycleAssets.WithLabelValues("expected").Set(float64(expected))
	r.cycleAssets.WithLabelValues("analyzed").Set(float64(analyzed))
}

func (r *Recorder) RecordOutcome(kind string) {
	r.outcomes.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordConfirmed(tier, direction string) {
	r.confirmed.WithLabelValues(tier, direction).Inc()
}

func (r *Recorder) RecordAlert(tier string, ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	r.alerts.WithLabelValues(tier, result).Inc()
}

func (r *Recorder) RecordDuplicate() {
	r.duplicates.Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordCycle(time.Duration, int, int, bool) {}
func (Nop) RecordOutcome(string)                      {}
func (Nop) RecordConfirmed(string, string)            {}
func (Nop) RecordAlert(string, bool)                  {}
func (Nop) RecordDuplicate()                          {}
func (Nop) RecordError(string)                        {}
func (Nop) RecordLatency(string, float64)             {}
