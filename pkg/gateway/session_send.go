package gateway

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/lk2023060901/gatecord/pkg/transport"
)

// sendHeartbeat 心跳不经过限速
func (s *Session) sendHeartbeat(ctx context.Context, seq *int64) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return s.sendOn(ctx, conn, OpHeartbeat, seq)
}

func (s *Session) sendOn(ctx context.Context, conn transport.Conn, op Opcode, data any) error {
	raw, err := EncodePayload(op, data, nil)
	if err != nil {
		return err
	}
	return conn.Send(ctx, transport.Frame{Type: transport.FrameText, Data: raw})
}

// sendLimited 应用层发送，需要会话处于 Connected 并经过限速
func (s *Session) sendLimited(ctx context.Context, op Opcode, data any) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.mu.Lock()
	conn := s.conn
	status := s.state.status
	s.mu.Unlock()
	if conn == nil || status != StatusConnected {
		return errors.Wrapf(ErrNotConnected, "send %s in state %s", op, status)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "wait send rate for %s", op)
	}
	if err := s.sendOn(ctx, conn, op, data); err != nil {
		return errors.Wrapf(err, "send %s", op)
	}
	return nil
}

// UpdatePresence 更新在线状态，之后的 Identify 也会携带该状态
func (s *Session) UpdatePresence(ctx context.Context, presence Presence) error {
	presence.normalize()

	s.mu.Lock()
	p := presence
	s.presence = &p
	s.mu.Unlock()

	return s.sendLimited(ctx, OpStatusUpdate, presence)
}

// RequestGuildMembers 请求成员列表，结果通过 GUILD_MEMBERS_CHUNK 事件返回
// 返回本次请求使用的 nonce
func (s *Session) RequestGuildMembers(ctx context.Context, req RequestGuildMembers) (string, error) {
	if req.GuildID == "" {
		return "", errors.New("gateway: guild id is required")
	}
	if req.Query == nil && len(req.UserIDs) == 0 {
		empty := ""
		req.Query = &empty
	}
	if req.Nonce == "" {
		req.Nonce = uuid.NewString()[:32]
	}
	if err := s.sendLimited(ctx, OpRequestGuildMembers, req); err != nil {
		return "", err
	}
	return req.Nonce, nil
}

// UpdateVoiceState 加入、移动或离开语音频道，ChannelID 为 nil 表示离开
func (s *Session) UpdateVoiceState(ctx context.Context, update VoiceStateUpdate) error {
	if update.GuildID == "" {
		return errors.New("gateway: guild id is required")
	}
	return s.sendLimited(ctx, OpVoiceStateUpdate, update)
}
