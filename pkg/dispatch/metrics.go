package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 分发器指标，nil 时所有方法为空操作
type Metrics struct {
	events   *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics 创建分发器指标，registerer 为 nil 时不注册
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatecord",
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Total number of events delivered to handlers",
		}, []string{"event"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatecord",
			Subsystem: "dispatch",
			Name:      "handler_failures_total",
			Help:      "Total number of handler errors and panics",
		}, []string{"event"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gatecord",
			Subsystem: "dispatch",
			Name:      "delivery_seconds",
			Help:      "Time from receipt to completion of all handlers for an event",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
	}

	if registerer != nil {
		registerer.MustRegister(m.events, m.failures, m.duration)
	}
	return m
}

func (m *Metrics) OnDelivered(event string, since time.Time) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
	m.duration.WithLabelValues(event).Observe(time.Since(since).Seconds())
}

func (m *Metrics) OnFailure(event string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(event).Inc()
}
