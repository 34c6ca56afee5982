package logger

import "context"

// redactingLogger 包装任意 Logger，写入前抹掉指定键的值
type redactingLogger struct {
	inner Logger
	keys  map[string]struct{}
}

// Redact 返回一个会抹掉 keys 对应值的 Logger
// 适用于外部传入、无法再安装 SensitiveDataHook 的实例
func Redact(l Logger, keys ...string) Logger {
	if l == nil || len(keys) == 0 {
		return l
	}
	if r, ok := l.(*redactingLogger); ok {
		merged := make(map[string]struct{}, len(r.keys)+len(keys))
		for k := range r.keys {
			merged[k] = struct{}{}
		}
		for _, k := range keys {
			merged[k] = struct{}{}
		}
		return &redactingLogger{inner: r.inner, keys: merged}
	}

	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return &redactingLogger{inner: l, keys: set}
}

func (r *redactingLogger) scrub(kv []interface{}) []interface{} {
	var out []interface{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if _, hit := r.keys[key]; !hit {
			continue
		}
		if out == nil {
			out = make([]interface{}, len(kv))
			copy(out, kv)
		}
		out[i+1] = redacted
	}
	if out == nil {
		return kv
	}
	return out
}

func (r *redactingLogger) Debug(msg string, kv ...interface{}) { r.inner.Debug(msg, r.scrub(kv)...) }
func (r *redactingLogger) Info(msg string, kv ...interface{})  { r.inner.Info(msg, r.scrub(kv)...) }
func (r *redactingLogger) Warn(msg string, kv ...interface{})  { r.inner.Warn(msg, r.scrub(kv)...) }
func (r *redactingLogger) Error(msg string, kv ...interface{}) { r.inner.Error(msg, r.scrub(kv)...) }

func (r *redactingLogger) DebugContext(ctx context.Context, msg string, kv ...interface{}) {
	r.inner.DebugContext(ctx, msg, r.scrub(kv)...)
}

func (r *redactingLogger) InfoContext(ctx context.Context, msg string, kv ...interface{}) {
	r.inner.InfoContext(ctx, msg, r.scrub(kv)...)
}

func (r *redactingLogger) WarnContext(ctx context.Context, msg string, kv ...interface{}) {
	r.inner.WarnContext(ctx, msg, r.scrub(kv)...)
}

func (r *redactingLogger) ErrorContext(ctx context.Context, msg string, kv ...interface{}) {
	r.inner.ErrorContext(ctx, msg, r.scrub(kv)...)
}

func (r *redactingLogger) Named(name string) Logger {
	return &redactingLogger{inner: r.inner.Named(name), keys: r.keys}
}

func (r *redactingLogger) WithFields(kv ...interface{}) Logger {
	return &redactingLogger{inner: r.inner.WithFields(r.scrub(kv)...), keys: r.keys}
}

func (r *redactingLogger) Sync() error {
	return r.inner.Sync()
}
