package bot

import (
	"context"
	"encoding/json"
	"time"
)

// ResourceClient REST 资源访问，由应用提供实现
// 网关核心不主动调用，只在命令同步和交互响应时使用
type ResourceClient interface {
	Fetch(ctx context.Context, resourceType, id string) (json.RawMessage, error)
	Post(ctx context.Context, path string, payload any) (json.RawMessage, error)
}

// ErrorReporter 错误上报，pkg/sentry 的 Client 满足该接口
type ErrorReporter interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
	Flush(timeout time.Duration) bool
}
