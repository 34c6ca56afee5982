// pkg/gateway/metrics.go
package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 会话指标，nil 时所有方法为空操作
type Metrics struct {
	// 状态指标
	state      prometheus.Gauge
	connects   prometheus.Counter
	identifies prometheus.Counter
	resumes    prometheus.Counter

	// 重连指标
	reconnectAttempts *prometheus.CounterVec

	// 心跳指标
	heartbeatSent    prometheus.Counter
	heartbeatAcked   prometheus.Counter
	zombies          prometheus.Counter
	heartbeatLatency prometheus.Histogram

	// 消息指标
	malformed  prometheus.Counter
	dispatched *prometheus.CounterVec
}

// NewMetrics 创建会话指标，registerer 为 nil 时不注册
func NewMetrics(registerer prometheus.Registerer, constLabels prometheus.Labels) *Metrics {
	const (
		namespace = "gatecord"
		subsystem = "gateway"
	)

	m := &Metrics{
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "state",
			Help:        "Current session state (0=disconnected, 1=handshaking, 2=identifying, 3=connected, 4=resuming, 5=closed)",
			ConstLabels: constLabels,
		}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "connects_total",
			Help:        "Total number of transport connections established",
			ConstLabels: constLabels,
		}),
		identifies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "identifies_total",
			Help:        "Total number of Identify payloads sent",
			ConstLabels: constLabels,
		}),
		resumes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "resumes_total",
			Help:        "Total number of Resume payloads sent",
			ConstLabels: constLabels,
		}),
		reconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "reconnect_attempts_total",
			Help:        "Total number of reconnect attempts by reason",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		heartbeatSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "heartbeat_sent_total",
			Help:        "Total number of heartbeats sent",
			ConstLabels: constLabels,
		}),
		heartbeatAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "heartbeat_acked_total",
			Help:        "Total number of heartbeat acknowledgements received",
			ConstLabels: constLabels,
		}),
		zombies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "zombie_connections_total",
			Help:        "Total number of connections dropped for missing heartbeat acknowledgements",
			ConstLabels: constLabels,
		}),
		heartbeatLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "heartbeat_latency_seconds",
			Help:        "Round trip time between heartbeat and acknowledgement",
			Buckets:     []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "malformed_payloads_total",
			Help:        "Total number of dropped frames that failed to decode",
			ConstLabels: constLabels,
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "events_total",
			Help:        "Total number of dispatch events received by name",
			ConstLabels: constLabels,
		}, []string{"event"}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.state,
			m.connects,
			m.identifies,
			m.resumes,
			m.reconnectAttempts,
			m.heartbeatSent,
			m.heartbeatAcked,
			m.zombies,
			m.heartbeatLatency,
			m.malformed,
			m.dispatched,
		)
	}

	return m
}

func (m *Metrics) OnState(s Status) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}

func (m *Metrics) OnConnect() {
	if m == nil {
		return
	}
	m.connects.Inc()
}

func (m *Metrics) OnIdentify() {
	if m == nil {
		return
	}
	m.identifies.Inc()
}

func (m *Metrics) OnResume() {
	if m == nil {
		return
	}
	m.resumes.Inc()
}

func (m *Metrics) OnReconnectAttempt(reason string) {
	if m == nil {
		return
	}
	m.reconnectAttempts.WithLabelValues(reason).Inc()
}

func (m *Metrics) OnHeartbeatSent() {
	if m == nil {
		return
	}
	m.heartbeatSent.Inc()
}

func (m *Metrics) OnHeartbeatAck(latency time.Duration) {
	if m == nil {
		return
	}
	m.heartbeatAcked.Inc()
	if latency > 0 {
		m.heartbeatLatency.Observe(latency.Seconds())
	}
}

func (m *Metrics) OnZombie() {
	if m == nil {
		return
	}
	m.zombies.Inc()
}

func (m *Metrics) OnMalformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Metrics) OnDispatch(event string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(event).Inc()
}
