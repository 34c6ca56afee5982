package app

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/logger"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAppAlreadyRunning = errors.New("application is already running")
)

// Application 定义了框架级应用的接口
type Application interface {
	Run() error
	Shutdown() error
	Logger(name string) logger.Logger
	AppLogger() logger.Logger
	SetAppLogger(l logger.Logger)
}

// Server 定义了服务接口（如 HTTP 指标端点、网关客户端）
type Server interface {
	Start() error
	Stop() error
}

// GracefulServer 定义了支持优雅停止的服务器
type GracefulServer interface {
	Server
	GracefulStop() error
}

// Closer 定义了资源清理接口（如 Redis、错误上报）
type Closer interface {
	Close() error
}

// Task 后台任务，返回非 nil 错误时应用退出
type Task func(ctx context.Context) error

// BaseApp 提供了 Application 接口的基础实现
type BaseApp struct {
	opts     Options
	logger   logger.Logger
	registry *LoggerRegistry
	servers  []Server
	closers  []Closer
	tasks    []Task
	initErr  error

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex

	// 状态管理
	started atomic.Bool
	closed  atomic.Bool
}

// NewBaseApp 创建一个新的 BaseApp 实例
func NewBaseApp(opts ...Option) *BaseApp {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &BaseApp{
		opts:     o,
		logger:   logger.OrNoop(o.Logger).Named(o.Name),
		registry: NewLoggerRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}

	// 如果配置中已经带了日志定义，立即执行初始化
	if o.LogConfig != nil {
		if l, err := logger.New(o.LogConfig); err == nil {
			a.logger = l.Named(o.Name)
		}
	}

	// 具名日志对象在构造时初始化，组件装配阶段即可通过 Logger(name) 获取
	if len(o.NamedLoggers) > 0 {
		if err := a.registry.InitLoggers(o.NamedLoggers); err != nil {
			a.logger.Error("failed to initialize named loggers from config", "error", err)
			a.initErr = err
		}
	}

	return a
}

// Context 应用生命周期 context，Shutdown 时取消
func (a *BaseApp) Context() context.Context {
	return a.ctx
}

// SetAppLogger 替换应用主日志对象
func (a *BaseApp) SetAppLogger(l logger.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = l
}

// AppLogger 获取应用主日志对象
func (a *BaseApp) AppLogger() logger.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.logger
}

// Logger 获取具名 Logger，未注册时返回主日志对象的子日志
func (a *BaseApp) Logger(name string) logger.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if l := a.registry.Get(name); l != nil {
		return l
	}
	return a.logger.Named(name)
}

// RegisterLogger 注册具名 Logger
func (a *BaseApp) RegisterLogger(name string, l logger.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registry.Register(name, l)
}

// Run 启动应用程序并阻塞，直到收到信号、Shutdown 被调用或后台任务失败
func (a *BaseApp) Run() error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAppAlreadyRunning
	}

	if a.initErr != nil {
		return a.initErr
	}

	info := GetInfo()
	fmt.Println(info.String())

	a.logger.Info("application starting",
		"name", info.AppName,
		"version", info.Version,
		"commit", info.GitCommit,
		"build_date", info.BuildDate,
		"go_version", info.GoVersion,
		"id", a.opts.ID,
	)

	// 按注册顺序启动，失败时停止已启动的服务
	a.mu.RLock()
	servers := append([]Server(nil), a.servers...)
	tasks := append([]Task(nil), a.tasks...)
	a.mu.RUnlock()
	for _, srv := range servers {
		if err := srv.Start(); err != nil {
			a.logger.Error("failed to start server", "error", err)
			return errors.CombineErrors(errors.Wrap(err, "start server"), a.Shutdown())
		}
	}

	sigCtx, stop := signal.NotifyContext(a.ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}

	<-gctx.Done()
	switch {
	case a.ctx.Err() != nil:
		a.logger.Info("context cancelled, shutting down")
	case sigCtx.Err() != nil:
		a.logger.Info("received signal, shutting down")
	default:
		a.logger.Warn("background task failed, shutting down")
	}

	shutdownErr := a.Shutdown()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return errors.CombineErrors(err, shutdownErr)
	}
	return shutdownErr
}

// Shutdown 停止应用程序并清理资源
func (a *BaseApp) Shutdown() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancel()
	a.logger.Info("application shutting down")

	var errMu sync.Mutex
	var errs error
	collect := func(err error) {
		errMu.Lock()
		errs = errors.CombineErrors(errs, err)
		errMu.Unlock()
	}

	// 并发停止所有服务器
	var wg conc.WaitGroup
	for _, srv := range a.servers {
		s := srv
		wg.Go(func() {
			var err error
			if gs, ok := s.(GracefulServer); ok {
				err = gs.GracefulStop()
			} else {
				err = s.Stop()
			}
			if err != nil {
				a.logger.Error("failed to stop server", "error", err)
				collect(errors.Wrap(err, "stop server"))
			}
		})
	}

	stopped := make(chan struct{})
	go func() {
		if r := wg.WaitAndRecover(); r != nil {
			a.logger.Error("server stop panicked", "panic", r.String())
			collect(r.AsError())
		}
		close(stopped)
	}()

	select {
	case <-stopped:
		a.logger.Info("all servers stopped")
	case <-time.After(a.opts.StopTimeout):
		a.logger.Warn("shutdown timeout, forcing exit", "timeout", a.opts.StopTimeout)
	}

	// 逆序关闭所有 Closer 组件（LIFO）
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("failed to close component", "error", err)
			collect(errors.Wrap(err, "close component"))
		}
	}

	// 同步所有日志
	a.registry.SyncAll()
	_ = a.logger.Sync()

	a.logger.Info("application exited")
	errMu.Lock()
	defer errMu.Unlock()
	return errs
}

// AppendServer 添加服务器
func (a *BaseApp) AppendServer(srv ...Server) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.servers = append(a.servers, srv...)
}

// AppendCloser 添加资源清理组件
func (a *BaseApp) AppendCloser(closer ...Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer...)
}

// Go 添加后台任务，Run 时启动
func (a *BaseApp) Go(task Task) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks = append(a.tasks, task)
}
