package lrs

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBuckets covers typical LRS round trips, from 10ms to 30s.
var LatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics records LRS exchanges. A nil *Metrics records nothing.
type Metrics struct {
	// Requests counts exchanges by operation and status class
	// ("2xx", "4xx", ... or "error" when the transport failed).
	Requests *prometheus.CounterVec

	// Duration records exchange latency in seconds by operation.
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xapi_lrs_requests_total",
				Help: "LRS requests",
			},
			[]string{"operation", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "xapi_lrs_request_duration_seconds",
				Help:    "LRS request duration",
				Buckets: LatencyBuckets,
			},
			[]string{"operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}
	return m
}

func (m *Metrics) observe(operation string, status int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(operation, statusClass(status, err)).Inc()
	m.Duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func statusClass(status int, err error) string {
	if err != nil || status == 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
