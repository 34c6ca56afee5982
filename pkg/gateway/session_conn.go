// pkg/gateway/session_conn.go
package gateway

import (
	"context"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/otel"
	"github.com/lk2023060901/gatecord/pkg/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// run 连接循环：连接、读取直到断开、按断开原因决定恢复方式、退避后重连
func (s *Session) run() {
	defer close(s.done)

	for {
		err := s.runConnection()
		if s.closed.Load() {
			return
		}
		if !s.handleDisconnect(err) {
			return
		}

		delay, ok := s.backoff.Next()
		if !ok {
			s.fail(errors.Wrapf(ErrResumeBudgetExceeded, "gave up after %d consecutive attempts", s.config.Reconnect.MaxAttempts))
			return
		}
		s.metrics.OnReconnectAttempt(disconnectReason(err))
		s.logger.Info("reconnecting",
			"delay", delay,
			"attempt", s.backoff.Attempts(),
			"status", s.State().Status.String(),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// runConnection 建立一条连接并运行读循环，返回断开原因
func (s *Session) runConnection() (err error) {
	s.mu.Lock()
	target := s.config.URL
	status := s.state.status
	if status == StatusResuming {
		target = resumeURL(s.config.URL, s.state.resumeURL)
	}
	s.zombie = false
	s.mu.Unlock()

	_, span := s.tracer.Start(s.ctx, "gateway.connection",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("shard_id", s.config.ShardID),
			attribute.String("status", status.String()),
		),
	)
	s.connSpan = span
	defer func() {
		s.connSpan = nil
		if errors.Is(err, ErrSessionClosed) {
			otel.EndWithError(span, nil)
			return
		}
		span.SetAttributes(attribute.String("disconnect_reason", disconnectReason(err)))
		otel.EndWithError(span, err)
	}()

	conn, err := s.dialer.Dial(s.ctx, target, nil)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "connect gateway"), ErrTransportClosed)
	}
	span.SetAttributes(attribute.String("conn_id", conn.ID()))

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		_ = conn.Close(transport.CloseNormalClosure, "client closing")
		return ErrSessionClosed
	}
	s.conn = conn
	s.mu.Unlock()

	s.metrics.OnConnect()
	s.logger.Debug("gateway connected", "conn_id", conn.ID(), "url", target)

	defer func() {
		s.heartbeat.Stop()
		// 读失败时连接仍未释放，已关闭时为空操作
		_ = conn.Close(transport.CloseAbnormal, "connection lost")
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
	}()

	for {
		frame, err := conn.Receive()
		if err != nil {
			return s.classifyReadError(err)
		}

		p, err := DecodeFrame(frame)
		if err != nil {
			s.metrics.OnMalformed()
			s.logger.Warn("dropping malformed payload", "error", err, "size", len(frame.Data))
			continue
		}

		if err := s.handlePayload(conn, p); err != nil {
			_ = conn.Close(closeCodeKeepSession, "reconnecting")
			return err
		}
	}
}

// handlePayload 按操作码处理一条 payload，返回非 nil 表示需要断开当前连接
func (s *Session) handlePayload(conn transport.Conn, p *Payload) error {
	switch p.Op {
	case OpHello:
		return s.handleHello(conn, p)

	case OpHeartbeat:
		if err := s.heartbeat.Beat(s.ctx); err != nil {
			s.logger.Debug("requested heartbeat failed", "error", err)
		}

	case OpHeartbeatAck:
		s.heartbeat.OnAck()

	case OpDispatch:
		s.handleDispatch(p)

	case OpReconnect:
		s.logger.Info("server requested reconnect")
		return ErrReconnectRequested

	case OpInvalidSession:
		return &InvalidSessionError{Resumable: invalidSessionResumable(p.Data)}

	default:
		if !p.Op.Known() {
			s.logger.Debug("ignoring unknown opcode", "op", p.Op.String())
		} else {
			s.logger.Debug("ignoring payload", "op", p.Op.String())
		}
	}
	return nil
}

func (s *Session) handleHello(conn transport.Conn, p *Payload) error {
	var hello Hello
	if err := p.Unmarshal(&hello); err != nil {
		return errors.Wrap(err, "decode hello")
	}
	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond

	s.mu.Lock()
	s.state.heartbeatInterval = interval
	status := s.state.status
	var payload any
	var op Opcode
	switch status {
	case StatusHandshaking:
		op = OpIdentify
		payload = Identify{
			Token:          s.config.Token,
			Properties:     s.config.Properties,
			Compress:       s.config.Compress,
			LargeThreshold: s.config.LargeThreshold,
			Shard:          s.config.shard(),
			Presence:       s.presence,
			Intents:        s.config.Intents,
		}
		s.transition(StatusIdentifying)
	case StatusResuming:
		op = OpResume
		payload = Resume{
			Token:     s.config.Token,
			SessionID: s.state.sessionID,
			Sequence:  s.state.lastSequence,
		}
		s.resumeAttempts++
	}
	s.mu.Unlock()

	s.heartbeat.Start(interval, s.sequence)

	if payload == nil {
		s.logger.Debug("unexpected hello", "status", status.String())
		return nil
	}
	if err := s.sendOn(s.ctx, conn, op, payload); err != nil {
		return errors.Mark(errors.Wrapf(err, "send %s", op), ErrTransportClosed)
	}

	s.spanEvent(op.String(), attribute.Int64("heartbeat_interval_ms", interval.Milliseconds()))
	if op == OpIdentify {
		s.metrics.OnIdentify()
		s.logger.Info("identifying", "heartbeat_interval", interval)
	} else {
		s.metrics.OnResume()
		s.logger.Info("resuming", "heartbeat_interval", interval)
	}
	return nil
}

func (s *Session) handleDispatch(p *Payload) {
	var ready *Ready
	if p.Event == EventReady {
		ready = &Ready{}
		if err := p.Unmarshal(ready); err != nil {
			s.metrics.OnMalformed()
			s.logger.Warn("dropping malformed READY", "error", err)
			return
		}
	}

	s.mu.Lock()
	if p.Sequence != nil {
		s.state.observeSequence(*p.Sequence)
	}
	if ready != nil {
		s.state.sessionID = ready.SessionID
		s.state.resumeURL = ready.ResumeGatewayURL
		s.applicationID = ready.Application.ID
	}

	becameReady := ready != nil || s.state.status == StatusResuming
	var rs *ResumeState
	if becameReady {
		s.transition(StatusConnected)
		s.resumeAttempts = 0
		rs = s.state.resumeState()
	}
	s.mu.Unlock()

	if becameReady {
		s.backoff.Reset()
		s.readyOnce.Do(func() { close(s.readyCh) })
		if ready != nil {
			s.spanEvent("ready", attribute.String("session_id", ready.SessionID))
			s.logger.Info("session ready", "session_id", ready.SessionID, "user", ready.User.Username)
		} else {
			s.spanEvent("resumed", attribute.String("event", p.Event))
			s.logger.Info("session resumed", "event", p.Event)
		}
		s.saveResumeState(rs)
	}

	s.metrics.OnDispatch(p.Event)
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(p.Event, p.Data)
	}
}

// spanEvent 在当前连接的 span 上记录事件
func (s *Session) spanEvent(name string, attrs ...attribute.KeyValue) {
	if s.connSpan != nil {
		s.connSpan.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// classifyReadError 将读错误映射为断开原因
func (s *Session) classifyReadError(err error) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.mu.Lock()
	zombie := s.zombie
	s.mu.Unlock()
	if zombie {
		return errors.Mark(errors.Wrap(err, "zombie connection"), ErrZombieConnection)
	}

	code, ok := transport.CloseCode(err)
	if !ok {
		return errors.Mark(errors.Wrap(err, "receive"), ErrTransportClosed)
	}
	switch s.policy.Classify(code) {
	case CloseActionReidentify:
		return errors.Mark(errors.Wrapf(err, "close code %d", code), errReidentify)
	case CloseActionAuthFailure:
		return errors.Mark(errors.Wrapf(err, "close code %d", code), ErrAuthenticationFailed)
	case CloseActionFatal:
		return errors.Mark(errors.Wrapf(err, "close code %d", code), ErrFatalClose)
	default:
		return errors.Mark(errors.Wrapf(err, "close code %d", code), ErrTransportClosed)
	}
}

// handleDisconnect 决定下一次连接走 Resume 还是 Identify，返回 false 表示会话结束
func (s *Session) handleDisconnect(err error) bool {
	if errors.Is(err, ErrSessionClosed) {
		return false
	}
	if errors.IsAny(err, ErrAuthenticationFailed, ErrFatalClose) {
		s.fail(err)
		return false
	}

	resume := true
	var invalid *InvalidSessionError
	switch {
	case errors.As(err, &invalid):
		resume = invalid.Resumable
	case errors.Is(err, errReidentify):
		resume = false
	}

	s.mu.Lock()
	if resume && s.config.Reconnect.MaxResumeAttempts > 0 && s.resumeAttempts >= s.config.Reconnect.MaxResumeAttempts {
		s.logger.Warn("resume attempts exhausted, starting fresh session", "attempts", s.resumeAttempts)
		resume = false
	}

	var rs *ResumeState
	if resume && s.state.resumable() {
		s.transition(StatusResuming)
		rs = s.state.resumeState()
	} else {
		s.state.discard()
		s.resumeAttempts = 0
		s.transition(StatusHandshaking)
	}
	next := s.state.status
	s.mu.Unlock()

	s.logger.Warn("gateway connection lost",
		"error", err,
		"reason", disconnectReason(err),
		"next", next.String(),
	)

	if rs != nil {
		s.saveResumeState(rs)
	} else {
		ctx, cancel := context.WithTimeout(s.ctx, time.Second)
		defer cancel()
		if derr := s.store.Delete(ctx, s.config.ShardID, s.config.ShardCount); derr != nil {
			s.logger.Warn("delete resume state failed", "error", derr)
		}
	}
	return true
}

func (s *Session) saveResumeState(rs *ResumeState) {
	if rs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()
	if err := s.store.Save(ctx, s.config.ShardID, s.config.ShardCount, rs); err != nil {
		s.logger.Warn("save resume state failed", "error", err)
	}
}

// onZombie 心跳未被确认，断开当前连接，由读循环进入重连
func (s *Session) onZombie() {
	s.mu.Lock()
	conn := s.conn
	if conn != nil {
		s.zombie = true
	}
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close(closeCodeKeepSession, "heartbeat not acknowledged")
	}
}

// disconnectReason 指标标签
func disconnectReason(err error) string {
	var invalid *InvalidSessionError
	switch {
	case errors.Is(err, ErrZombieConnection):
		return "zombie"
	case errors.Is(err, ErrReconnectRequested):
		return "reconnect_requested"
	case errors.As(err, &invalid):
		return "invalid_session"
	case errors.Is(err, errReidentify):
		return "reidentify"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed"
	default:
		return "transport_closed"
	}
}

// resumeURL resume_gateway_url 不带查询参数，沿用初始地址的版本和编码
func resumeURL(base, resume string) string {
	if resume == "" {
		return base
	}
	u, err := url.Parse(resume)
	if err != nil {
		return base
	}
	if u.RawQuery == "" {
		if b, err := url.Parse(base); err == nil {
			u.RawQuery = b.RawQuery
		}
	}
	return u.String()
}
