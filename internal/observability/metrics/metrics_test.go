package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchLabels(metric, labels) {
				if metric.GetCounter() != nil {
					return metric.GetCounter().GetValue()
				}
				return metric.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range metric.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want == lp.GetValue() {
			found++
		}
	}
	return found == len(labels)
}

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveTransition("slots", "details")
	m.ObserveTransition("slots", "details")
	m.ObserveRejection("past_date")
	m.ObserveSlotLoad("ok", 120*time.Millisecond)
	m.ObservePayment("failed")
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 2.0, counterValue(t, reg, "booking_flow_transitions_total", map[string]string{"from": "slots", "to": "details"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "booking_flow_guard_rejections_total", map[string]string{"reason": "past_date"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "booking_availability_slot_loads_total", map[string]string{"status": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "booking_payments_attempts_total", map[string]string{"status": "failed"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "booking_sessions_active", nil))
}

func TestBookingMetricsDefaultRegistry(t *testing.T) {
	m := NewBookingMetrics(nil)
	m.ObservePayment("succeeded")
	prometheus.DefaultRegisterer.Unregister(m.transitions)
	prometheus.DefaultRegisterer.Unregister(m.rejections)
	prometheus.DefaultRegisterer.Unregister(m.slotLoads)
	prometheus.DefaultRegisterer.Unregister(m.slotLoadTime)
	prometheus.DefaultRegisterer.Unregister(m.payments)
	prometheus.DefaultRegisterer.Unregister(m.activeSessions)
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveTransition("a", "b")
	m.ObserveRejection("r")
	m.ObserveSlotLoad("error", time.Second)
	m.ObservePayment("ok")
	m.SessionOpened()
	m.SessionClosed()
}
