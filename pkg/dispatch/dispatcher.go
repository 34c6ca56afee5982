// pkg/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/config"
	"github.com/lk2023060901/gatecord/pkg/logger"
	"github.com/lk2023060901/gatecord/pkg/otel"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AnyEvent 注册到该名称的处理函数接收所有事件
const AnyEvent = "*"

// Event 一条待分发的事件
type Event struct {
	Name       string
	Data       json.RawMessage
	ReceivedAt time.Time
}

// Decode 将事件数据解析到 v
func (e *Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.Wrapf(err, "decode %s event", e.Name)
	}
	return nil
}

// Handler 事件处理函数
type Handler func(ctx context.Context, ev *Event) error

// lane 同名事件的串行队列
type lane struct {
	queue   []*Event
	running bool
}

// Dispatcher 按事件名分发到已注册的处理函数
//
// 同名事件按到达顺序串行处理，同一事件的处理函数按注册顺序执行；
// 不同事件名之间没有顺序保证
type Dispatcher struct {
	config    *Config
	logger    logger.Logger
	metrics   *Metrics
	onFailure func(ev *Event, err error)
	tracer    trace.Tracer
	pool      *ants.Pool

	ctx    context.Context
	cancel context.CancelFunc

	regMu    sync.RWMutex
	handlers map[string][]Handler

	laneMu sync.Mutex
	lanes  map[string]*lane
	closed bool
	wg     sync.WaitGroup
}

// New 创建分发器
func New(cfg *Config, opts ...Option) (*Dispatcher, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		config:   merged,
		handlers: make(map[string][]Handler),
		lanes:    make(map[string]*lane),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logger.OrNoop(d.logger).Named("dispatch")
	if d.tracer == nil {
		d.tracer = otel.NoopTracer()
	}

	pool, err := ants.NewPool(merged.PoolSize,
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(merged.ExpiryDuration),
		ants.WithLogger(antsLogger{d.logger}),
		ants.WithPanicHandler(func(r any) {
			d.logger.Error("dispatch worker panic", "panic", fmt.Sprint(r))
		}),
	)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "create dispatch pool")
	}
	d.pool = pool
	return d, nil
}

// Register 追加处理函数，可在任意时刻调用，对之后开始处理的事件生效
func (d *Dispatcher) Register(event string, h Handler) {
	if h == nil {
		return
	}
	d.regMu.Lock()
	defer d.regMu.Unlock()

	existing := d.handlers[event]
	next := make([]Handler, len(existing), len(existing)+1)
	copy(next, existing)
	d.handlers[event] = append(next, h)
}

// Handlers 返回已注册的处理函数数量
func (d *Dispatcher) Handlers(event string) int {
	d.regMu.RLock()
	defer d.regMu.RUnlock()
	return len(d.handlers[event])
}

// Dispatch 将事件放入对应队列后立即返回
func (d *Dispatcher) Dispatch(event string, data json.RawMessage) {
	if !d.hasHandlers(event) {
		return
	}

	ev := &Event{Name: event, Data: data, ReceivedAt: time.Now()}

	d.laneMu.Lock()
	if d.closed {
		d.laneMu.Unlock()
		d.logger.Debug("dropping event after close", "event", event)
		return
	}
	l, ok := d.lanes[event]
	if !ok {
		l = &lane{}
		d.lanes[event] = l
	}
	l.queue = append(l.queue, ev)
	d.wg.Add(1)
	if l.running {
		d.laneMu.Unlock()
		return
	}
	l.running = true
	d.laneMu.Unlock()

	if err := d.pool.Submit(func() { d.drain(event, l) }); err != nil {
		d.logger.Debug("dispatch pool unavailable, running lane on its own goroutine", "event", event, "error", err)
		go d.drain(event, l)
	}
}

// Wait 阻塞直到已入队的事件全部处理完
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close 停止接收事件，等待队列处理完后释放工作池，可重复调用
func (d *Dispatcher) Close(timeout time.Duration) error {
	d.laneMu.Lock()
	if d.closed {
		d.laneMu.Unlock()
		return nil
	}
	d.closed = true
	d.laneMu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	var errs error
	select {
	case <-drained:
	case <-time.After(timeout):
		errs = errors.Wrapf(ErrDrainTimeout, "after %s", timeout)
	}
	d.cancel()

	if err := d.pool.ReleaseTimeout(timeout); err != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "release dispatch pool"))
	}
	return errs
}

func (d *Dispatcher) hasHandlers(event string) bool {
	d.regMu.RLock()
	defer d.regMu.RUnlock()
	return len(d.handlers[event]) > 0 || len(d.handlers[AnyEvent]) > 0
}

// snapshot 先返回同名处理函数，再返回通配处理函数
func (d *Dispatcher) snapshot(event string) []Handler {
	d.regMu.RLock()
	defer d.regMu.RUnlock()
	named, wildcard := d.handlers[event], d.handlers[AnyEvent]
	if len(wildcard) == 0 || event == AnyEvent {
		return named
	}
	out := make([]Handler, 0, len(named)+len(wildcard))
	out = append(out, named...)
	return append(out, wildcard...)
}

// drain 串行处理一条队列直到为空
func (d *Dispatcher) drain(event string, l *lane) {
	for {
		d.laneMu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			if d.lanes[event] == l {
				delete(d.lanes, event)
			}
			d.laneMu.Unlock()
			return
		}
		ev := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		d.laneMu.Unlock()

		d.deliver(ev)
		d.wg.Done()
	}
}

func (d *Dispatcher) deliver(ev *Event) {
	for i, h := range d.snapshot(ev.Name) {
		if err := d.invoke(h, i, ev); err != nil {
			d.metrics.OnFailure(ev.Name)
			d.logger.Error("event handler failed",
				"event", ev.Name,
				"handler", i,
				"error", err,
			)
			if d.onFailure != nil {
				d.onFailure(ev, err)
			}
		}
	}
	d.metrics.OnDelivered(ev.Name, ev.ReceivedAt)
}

// invoke 执行单个处理函数，错误和 panic 都标记为 ErrHandlerFailure
func (d *Dispatcher) invoke(h Handler, index int, ev *Event) (err error) {
	ctx := d.ctx
	if d.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.HandlerTimeout)
		defer cancel()
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.handler",
		trace.WithAttributes(
			attribute.String("event", ev.Name),
			attribute.Int("handler", index),
		),
	)
	defer func() {
		if r := recover(); r != nil {
			err = errors.Mark(errors.Newf("handler panic: %v", r), ErrHandlerFailure)
		}
		otel.EndWithError(span, err)
	}()

	if herr := h(ctx, ev); herr != nil {
		return errors.Mark(herr, ErrHandlerFailure)
	}
	return nil
}

// Handle 注册带类型的处理函数，事件数据按 JSON 解析到 T
func Handle[T any](d *Dispatcher, event string, fn func(ctx context.Context, data *T) error) {
	d.Register(event, func(ctx context.Context, ev *Event) error {
		v := new(T)
		if err := ev.Decode(v); err != nil {
			return err
		}
		return fn(ctx, v)
	})
}

// antsLogger 将工作池日志接入 logger
type antsLogger struct {
	l logger.Logger
}

func (a antsLogger) Printf(format string, args ...any) {
	a.l.Warn(fmt.Sprintf(format, args...))
}
