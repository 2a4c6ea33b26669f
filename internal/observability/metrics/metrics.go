package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	transitions    *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	slotLoads      *prometheus.CounterVec
	slotLoadTime   prometheus.Histogram
	payments       *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "flow",
			Name:      "transitions_total",
			Help:      "Booking flow step changes",
		}, []string{"from", "to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "flow",
			Name:      "guard_rejections_total",
			Help:      "User actions rejected by a flow guard",
		}, []string{"reason"}),
		slotLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "slot_loads_total",
			Help:      "Availability loads by outcome",
		}, []string{"status"}),
		slotLoadTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "slot_load_seconds",
			Help:      "Latency of availability loads including the calendar fetch",
			Buckets:   prometheus.DefBuckets,
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "payments",
			Name:      "attempts_total",
			Help:      "Payment attempts by outcome",
		}, []string{"status"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "booking",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Sessions currently held in memory",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.rejections, m.slotLoads, m.slotLoadTime, m.payments, m.activeSessions)
	return m
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *BookingMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *BookingMetrics) ObserveSlotLoad(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.slotLoads.WithLabelValues(status).Inc()
	m.slotLoadTime.Observe(elapsed.Seconds())
}

func (m *BookingMetrics) ObservePayment(status string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *BookingMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
