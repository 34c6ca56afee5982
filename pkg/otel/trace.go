package otel

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopTracer 未配置追踪时使用
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("")
}

// TracerOrNoop tp 为 nil 时返回 noop Tracer
func TracerOrNoop(tp trace.TracerProvider, name string) trace.Tracer {
	if tp == nil {
		return NoopTracer()
	}
	return tp.Tracer(name)
}

// EndWithError 记录错误后结束 span，err 为 nil 时状态为 Ok
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
