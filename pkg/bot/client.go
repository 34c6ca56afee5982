// pkg/bot/client.go
package bot

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/dispatch"
	"github.com/lk2023060901/gatecord/pkg/gateway"
	"github.com/lk2023060901/gatecord/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// tracerName 网关和分发器 span 的 instrumentation 名称
const tracerName = "github.com/lk2023060901/gatecord"

// Client 组合网关会话、事件分发和命令路由
type Client struct {
	config      *Config
	logger      logger.Logger
	reporter    ErrorReporter
	resources   ResourceClient
	registerer  prometheus.Registerer
	tracing     trace.TracerProvider
	gatewayOpts []gateway.Option

	session    *gateway.Session
	dispatcher *dispatch.Dispatcher
	commands   *CommandRegistry

	mu        sync.Mutex
	connected bool

	closeOnce sync.Once
	closeErr  error
}

// New 创建客户端，处理函数和命令可以在 Connect 之前注册
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "config is nil")
	}
	copied := *cfg
	cfg = &copied
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	c := &Client{
		config:   cfg,
		commands: NewCommandRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.Redact(logger.OrNoop(c.logger), "token")

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(c.logger),
		dispatch.WithFailureHook(c.onHandlerFailure),
	}
	gatewayOpts := []gateway.Option{gateway.WithLogger(c.logger)}
	if c.registerer != nil {
		labels := prometheus.Labels{"shard": strconv.Itoa(cfg.Gateway.ShardID)}
		gatewayOpts = append(gatewayOpts, gateway.WithMetrics(gateway.NewMetrics(c.registerer, labels)))
		dispatchOpts = append(dispatchOpts, dispatch.WithMetrics(dispatch.NewMetrics(c.registerer)))
	}
	if c.tracing != nil {
		tracer := c.tracing.Tracer(tracerName)
		gatewayOpts = append(gatewayOpts, gateway.WithTracer(tracer))
		dispatchOpts = append(dispatchOpts, dispatch.WithTracer(tracer))
	}

	d, err := dispatch.New(&cfg.Dispatch, dispatchOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create dispatcher")
	}
	c.dispatcher = d

	gatewayOpts = append(gatewayOpts, c.gatewayOpts...)
	gatewayOpts = append(gatewayOpts, gateway.WithDispatcher(d))
	s, err := gateway.NewSession(&cfg.Gateway, gatewayOpts...)
	if err != nil {
		_ = d.Close(cfg.ShutdownTimeout)
		return nil, errors.Mark(err, ErrInvalidConfig)
	}
	c.session = s

	d.Register(EventInteractionCreate, c.handleInteraction)
	if cfg.SyncCommands {
		d.Register(EventReady, c.syncCommands)
	}
	return c, nil
}

// On 注册事件处理函数，event 为 "*" 时接收全部事件
func (c *Client) On(event string, h dispatch.Handler) {
	c.dispatcher.Register(event, h)
}

// Command 注册命令
func (c *Client) Command(spec *CommandSpec, h CommandHandler) error {
	return c.commands.Add(spec, h)
}

// Commands 已注册的命令
func (c *Client) Commands() *CommandRegistry {
	return c.commands
}

// Connect 连接网关并等待就绪，只能调用一次
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.connected = true
	c.mu.Unlock()

	if err := c.session.Open(ctx); err != nil {
		if errors.Is(err, gateway.ErrSessionClosed) {
			return errors.Mark(err, ErrClosed)
		}
		c.report(ctx, err, "connect")
		return errors.Wrap(err, "open gateway session")
	}

	go c.watch()
	return nil
}

// Run 连接后阻塞直到 ctx 结束或会话失败，返回前关闭客户端
func (c *Client) Run(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		_ = c.Close()
		return err
	}

	select {
	case <-ctx.Done():
	case <-c.session.Done():
	}

	closeErr := c.Close()
	if err := c.session.Err(); err != nil {
		return errors.CombineErrors(err, closeErr)
	}
	return closeErr
}

// Close 关闭会话并等待事件处理完成，每一步都会执行，错误合并返回，可重复调用
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs error
		if err := c.session.Close(); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrap(err, "close session"))
		}
		if err := c.dispatcher.Close(c.config.ShutdownTimeout); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrap(err, "close dispatcher"))
		}
		if c.reporter != nil && !c.reporter.Flush(c.config.ShutdownTimeout) {
			c.logger.Warn("error reporter flush timed out", "timeout", c.config.ShutdownTimeout)
		}
		c.closeErr = errs
		c.logger.Info("client closed")
	})
	return c.closeErr
}

// UpdatePresence 更新在线状态
func (c *Client) UpdatePresence(ctx context.Context, presence Presence) error {
	return c.session.UpdatePresence(ctx, presence)
}

// Fetch 通过 ResourceClient 读取资源
func (c *Client) Fetch(ctx context.Context, resourceType, id string) (json.RawMessage, error) {
	if c.resources == nil {
		return nil, ErrNoResourceClient
	}
	return c.resources.Fetch(ctx, resourceType, id)
}

// Session 底层网关会话
func (c *Client) Session() *gateway.Session {
	return c.session
}

// Dispatcher 底层事件分发器
func (c *Client) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

// ApplicationID 配置优先，否则取 READY 中的值
func (c *Client) ApplicationID() string {
	if c.config.ApplicationID != "" {
		return c.config.ApplicationID
	}
	return c.session.ApplicationID()
}

// watch 会话因致命错误结束时上报
func (c *Client) watch() {
	<-c.session.Done()
	if err := c.session.Err(); err != nil {
		c.logger.Error("gateway session failed", "error", err)
		c.report(context.Background(), err, "session")
	}
}

func (c *Client) handleInteraction(ctx context.Context, ev *dispatch.Event) error {
	var in interaction
	if err := ev.Decode(&in); err != nil {
		return err
	}
	if in.Type != interactionApplicationCommand {
		return nil
	}

	typ := in.Data.Type
	if typ == 0 {
		typ = CommandChatInput
	}
	_, handler, ok := c.commands.Lookup(typ, in.Data.Name)
	if !ok {
		c.logger.Warn("unknown command", "name", in.Data.Name, "type", typ.String())
		return nil
	}

	cmd := newCommandContext(&in, c.resources)
	if err := handler(ctx, cmd); err != nil {
		return errors.Wrapf(err, "command %s", in.Data.Name)
	}
	return nil
}

// syncCommands 上传全部命令，同名命令由平台覆盖
func (c *Client) syncCommands(ctx context.Context, _ *dispatch.Event) error {
	if c.resources == nil || c.commands.Len() == 0 {
		return nil
	}
	appID := c.ApplicationID()
	if appID == "" {
		return ErrNoApplicationID
	}

	path := "/applications/" + appID + "/commands"
	var errs error
	for _, spec := range c.commands.Specs() {
		if _, err := c.resources.Post(ctx, path, spec); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "upsert command %s", spec.Name))
		}
	}
	if errs == nil {
		c.logger.Info("commands synced", "count", c.commands.Len())
	}
	return errs
}

func (c *Client) onHandlerFailure(ev *dispatch.Event, err error) {
	c.report(context.Background(), err, "dispatch", "event", ev.Name)
}

func (c *Client) report(ctx context.Context, err error, component string, kv ...string) {
	if c.reporter == nil {
		return
	}
	tags := map[string]string{
		"component": component,
		"shard_id":  strconv.Itoa(c.session.ShardID()),
	}
	for i := 0; i+1 < len(kv); i += 2 {
		tags[kv[i]] = kv[i+1]
	}
	c.reporter.CaptureError(ctx, err, tags)
}

