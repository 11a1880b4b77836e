package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports payment counters and latencies under the
// paygate namespace.
type PrometheusRecorder struct {
	events    *prometheus.CounterVec
	latencies *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the collectors on the default registry.
// It must be constructed at most once per process.
func NewPrometheusRecorder() Recorder {
	r := &PrometheusRecorder{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "paygate",
				Name:      "payment_events_total",
				Help:      "Payment flow events by type and network.",
			},
			[]string{"type", "network"},
		),
		latencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "paygate",
				Name:      "latency_seconds",
				Help:      "Latency of payment operations by network.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "network"},
		),
	}
	prometheus.MustRegister(r.events, r.latencies)
	return r
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.events.With(prometheus.Labels{
		"type":    name,
		"network": labels["network"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.latencies.With(prometheus.Labels{
		"operation": name,
		"network":   labels["network"],
	}).Observe(d.Seconds())
}
