package gateway

import (
	"github.com/lk2023060901/gatecord/pkg/logger"
	"github.com/lk2023060901/gatecord/pkg/transport"
	"go.opentelemetry.io/otel/trace"
)

// Option 会话选项
type Option func(*Session)

// WithDialer 设置传输层，默认使用 gorilla websocket
func WithDialer(d transport.Dialer) Option {
	return func(s *Session) {
		s.dialer = d
	}
}

// WithDispatcher 设置事件分发器
func WithDispatcher(d Dispatcher) Option {
	return func(s *Session) {
		s.dispatcher = d
	}
}

// WithSessionStore 设置恢复信息存储
func WithSessionStore(store SessionStore) Option {
	return func(s *Session) {
		s.store = store
	}
}

// WithCloseCodePolicy 设置关闭码策略
func WithCloseCodePolicy(policy CloseCodePolicy) Option {
	return func(s *Session) {
		s.policy = policy
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithMetrics 设置指标
func WithMetrics(m *Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithTracer 每条网关连接记录一个 span
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) {
		s.tracer = t
	}
}
