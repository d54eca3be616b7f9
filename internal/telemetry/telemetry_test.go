package telemetry

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ProviderCall("token", nil)
		m.Order("placed")
		m.PostDebitFailure("stock_decrement")
		m.Notification("chat", errors.New("x"))
		m.Reply("send", true)
	})
}

func TestCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ProviderCall("withdraw", nil)
	m.ProviderCall("withdraw", errors.New("boom"))
	m.ProviderCall("withdraw", errors.New("boom"))
	m.PostDebitFailure("cart_clear")
	m.Reply("respond", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("withdraw", OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("withdraw", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.postDebit.WithLabelValues("cart_clear")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replies.WithLabelValues("respond", "false")))
}

func TestQueueFailuresReadOnScrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	var failed uint64
	assert.NoError(t, RegisterQueueFailures(reg, "notify", func() uint64 { return failed }))
	failed = 3

	n, err := testutil.GatherAndCount(reg, "pointshop_sender_failed_jobs_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, RegisterQueueFailures(reg, "notify", func() uint64 { return 0 }), "duplicate queue")
}
