// Package telemetry holds the storefront Prometheus counters. A nil *Metrics
// is valid and records nothing, so services can run without a registry.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/pointshop/core/metrics"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics groups the counters incremented by the provider client, checkout
// and notification paths.
type Metrics struct {
	providerCalls *prometheus.CounterVec
	orders        *prometheus.CounterVec
	postDebit     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	replies       *prometheus.CounterVec
}

// New registers the counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "points",
			Name:      "provider_calls_total",
			Help:      "Calls to the points provider by operation and outcome.",
		}, []string{"op", "outcome"}),
		orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "checkout",
			Name:      "orders_total",
			Help:      "Order attempts by result code.",
		}, []string{"result"}),
		postDebit: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "checkout",
			Name:      "post_debit_failures_total",
			Help:      "Failures after points were debited, by saga step.",
		}, []string{"step"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Order notifications by channel and outcome.",
		}, []string{"channel", "outcome"}),
		replies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "tg",
			Name:      "replies_total",
			Help:      "Replies made by handlers by kind and keyboard presence.",
		}, []string{"kind", "keyboard"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// ProviderCall counts one provider request.
func (m *Metrics) ProviderCall(op string, err error) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(op, outcome(err)).Inc()
}

// Order counts a finished checkout attempt. result is "placed" or an error code.
func (m *Metrics) Order(result string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(result).Inc()
}

// PostDebitFailure counts a swallowed failure after the debit.
func (m *Metrics) PostDebitFailure(step string) {
	if m == nil {
		return
	}
	m.postDebit.WithLabelValues(step).Inc()
}

// Notification counts one delivery attempt on channel ("chat" or "email").
func (m *Metrics) Notification(channel string, err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, outcome(err)).Inc()
}

// Reply counts one handler reply. It matches middleware.ReplyObserver.
func (m *Metrics) Reply(kind string, keyboard bool) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(kind, strconv.FormatBool(keyboard)).Inc()
}
