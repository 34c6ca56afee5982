package bot

import (
	"github.com/lk2023060901/gatecord/pkg/gateway"
	"github.com/lk2023060901/gatecord/pkg/logger"
	"github.com/lk2023060901/gatecord/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Option 客户端选项
type Option func(*Client)

// WithLogger 设置日志，token 字段总会被抹掉
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithDialer 替换网关连接方式
func WithDialer(d transport.Dialer) Option {
	return func(c *Client) {
		c.gatewayOpts = append(c.gatewayOpts, gateway.WithDialer(d))
	}
}

// WithSessionStore 设置恢复信息存储
func WithSessionStore(store gateway.SessionStore) Option {
	return func(c *Client) {
		c.gatewayOpts = append(c.gatewayOpts, gateway.WithSessionStore(store))
	}
}

// WithCloseCodePolicy 覆盖关闭码处理策略
func WithCloseCodePolicy(policy gateway.CloseCodePolicy) Option {
	return func(c *Client) {
		c.gatewayOpts = append(c.gatewayOpts, gateway.WithCloseCodePolicy(policy))
	}
}

// WithRegisterer 注册网关和分发器指标
func WithRegisterer(r prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = r
	}
}

// WithTracerProvider 为网关连接和处理函数调用记录 span
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracing = tp
	}
}

// WithErrorReporter 上报会话致命错误和处理函数失败
func WithErrorReporter(r ErrorReporter) Option {
	return func(c *Client) {
		c.reporter = r
	}
}

// WithResourceClient 设置 REST 资源访问
func WithResourceClient(rc ResourceClient) Option {
	return func(c *Client) {
		c.resources = rc
	}
}
