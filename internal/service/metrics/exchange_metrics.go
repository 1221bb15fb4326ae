package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ExchangeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pulsescan",
			Subsystem: "exchange",
			Name:      "request_seconds",
			Help:      "Latency of exchange REST calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source", "endpoint"},
	)

	ExchangeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulsescan",
			Subsystem: "exchange",
			Name:      "errors_total",
			Help:      "Failed exchange calls after retries",
		},
		[]string{"source", "endpoint"},
	)

	ExchangeRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulsescan",
			Subsystem: "exchange",
			Name:      "retries_total",
			Help:      "Retried exchange calls",
		},
		[]string{"source", "endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(ExchangeLatency, ExchangeErrors, ExchangeRetries)
	})
}
