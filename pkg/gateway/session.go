// pkg/gateway/session.go
package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/logger"
	"github.com/lk2023060901/gatecord/pkg/otel"
	"github.com/lk2023060901/gatecord/pkg/transport"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Dispatcher 接收 Dispatch 事件，实现不能阻塞读循环
type Dispatcher interface {
	Dispatch(event string, data json.RawMessage)
}

// Session 网关会话状态机
//
// 一个 Session 只能 Open 一次；Close 之后进入终态 Closed
type Session struct {
	config     *Config
	dialer     transport.Dialer
	dispatcher Dispatcher
	store      SessionStore
	policy     CloseCodePolicy
	limiter    *rate.Limiter
	logger     logger.Logger
	metrics    *Metrics
	heartbeat  *Heartbeat
	backoff    *Backoff
	tracer     trace.Tracer

	// connSpan 当前连接的 span，只在 run 协程中访问
	connSpan trace.Span

	mu             sync.Mutex
	state          sessionState
	conn           transport.Conn
	zombie         bool
	resumeAttempts int
	presence       *Presence
	applicationID  string
	err            error

	opened    atomic.Bool
	closed    atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	readyCh   chan struct{}
	readyOnce sync.Once
}

// NewSession 创建会话
func NewSession(cfg *Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		config:   cfg,
		presence: cfg.Presence,
		backoff:  NewBackoff(cfg.Reconnect),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		readyCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger = logger.OrNoop(s.logger).Named("gateway").WithFields("shard_id", cfg.ShardID)
	if s.dialer == nil {
		s.dialer = transport.NewWebsocketDialer(&cfg.Transport, s.logger)
	}
	if s.store == nil {
		s.store = NewMemoryStore()
	}
	if s.policy == nil {
		s.policy = DefaultCloseCodePolicy()
	}
	if s.tracer == nil {
		s.tracer = otel.NoopTracer()
	}
	if cfg.SendRate.Events > 0 {
		s.limiter = rate.NewLimiter(rate.Every(cfg.SendRate.Per/time.Duration(cfg.SendRate.Events)), cfg.SendRate.Events)
	} else {
		s.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	s.heartbeat = NewHeartbeat(s.sendHeartbeat, s.onZombie, s.logger, s.metrics, cfg.HeartbeatJitter)
	s.metrics.OnState(StatusDisconnected)

	return s, nil
}

// Open 连接网关并等待会话就绪（READY 或恢复成功）
// 有已保存的恢复信息时直接 Resume
func (s *Session) Open(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if !s.opened.CompareAndSwap(false, true) {
		return ErrAlreadyOpen
	}

	if s.config.OpenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.OpenTimeout)
		defer cancel()
	}

	rs, err := s.store.Load(ctx, s.config.ShardID, s.config.ShardCount)
	if err != nil {
		s.logger.Warn("load resume state failed, starting fresh session", "error", err)
		rs = nil
	}

	s.mu.Lock()
	s.state.restore(rs)
	if s.state.resumable() {
		s.transition(StatusResuming)
	} else {
		s.transition(StatusHandshaking)
	}
	s.mu.Unlock()

	go s.run()

	select {
	case <-s.readyCh:
		return nil
	case <-s.done:
		if err := s.Err(); err != nil {
			return err
		}
		return ErrSessionClosed
	case <-ctx.Done():
		_ = s.Close()
		return errors.Wrap(ctx.Err(), "wait for session ready")
	}
}

// Close 关闭会话，可重复调用
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.cancel()
	s.heartbeat.Stop()

	s.mu.Lock()
	conn := s.conn
	rs := s.state.resumeState()
	s.transition(StatusClosed)
	s.mu.Unlock()

	var errs error
	if conn != nil {
		code := transport.CloseNormalClosure
		if s.config.PreserveSessionOnClose {
			code = closeCodeKeepSession
		}
		if err := conn.Close(code, "client closing"); err != nil && !errors.Is(err, transport.ErrConnectionClosed) {
			errs = errors.CombineErrors(errs, errors.Wrap(err, "close transport"))
		}
	}

	timeout := s.config.Transport.CloseTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.config.PreserveSessionOnClose && rs != nil {
		if err := s.store.Save(ctx, s.config.ShardID, s.config.ShardCount, rs); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrap(err, "save resume state"))
		}
	} else if err := s.store.Delete(ctx, s.config.ShardID, s.config.ShardCount); err != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "delete resume state"))
	}

	if s.opened.Load() {
		select {
		case <-s.done:
		case <-ctx.Done():
			s.logger.Warn("session loop did not stop in time", "timeout", timeout)
		}
	}

	s.logger.Info("session closed")
	return errs
}

// Done 会话循环结束时关闭
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err 会话因致命错误结束时返回该错误
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State 返回状态快照
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.snapshot()
}

// Heartbeat 返回心跳状态快照
func (s *Session) Heartbeat() HeartbeatState {
	return s.heartbeat.Snapshot()
}

// ApplicationID READY 中的应用 id
func (s *Session) ApplicationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applicationID
}

// ShardID 分片 id
func (s *Session) ShardID() int {
	return s.config.ShardID
}

// sequence 供心跳使用
func (s *Session) sequence() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.lastSequence, s.state.hasSequence
}

// transition 调用方持有 s.mu；Closed 是终态
func (s *Session) transition(to Status) bool {
	from := s.state.status
	if from == StatusClosed || from == to {
		return false
	}
	s.state.status = to
	s.metrics.OnState(to)
	s.logger.Debug("session state changed", "from", from.String(), "to", to.String())
	return true
}

// fail 记录致命错误，会话循环随后退出
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.state.discard()
	s.transition(StatusDisconnected)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if derr := s.store.Delete(ctx, s.config.ShardID, s.config.ShardCount); derr != nil {
		s.logger.Warn("delete resume state failed", "error", derr)
	}
	s.logger.Error("session failed", "error", err)
}
