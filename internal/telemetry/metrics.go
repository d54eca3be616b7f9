package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/pointshop/core/metrics"
)

// RegisterQueueFailures exposes the failed-job count of a background send
// queue. failed is read on every scrape.
func RegisterQueueFailures(reg prometheus.Registerer, queue string, failed func() uint64) error {
	return reg.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   metrics.Namespace,
		Subsystem:   "sender",
		Name:        "failed_jobs_total",
		Help:        "Jobs dropped by a send queue after exhausting retries.",
		ConstLabels: prometheus.Labels{"queue": queue},
	}, func() float64 { return float64(failed()) }))
}
