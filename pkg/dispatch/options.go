package dispatch

import (
	"github.com/lk2023060901/gatecord/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// Option 分发器选项
type Option func(*Dispatcher)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithMetrics 设置指标
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithFailureHook 处理函数失败时回调，用于上报错误
func WithFailureHook(fn func(ev *Event, err error)) Option {
	return func(d *Dispatcher) {
		d.onFailure = fn
	}
}

// WithTracer 每次处理函数调用创建一个 span
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}
