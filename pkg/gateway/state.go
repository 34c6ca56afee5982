package gateway

import "time"

// Status 会话状态
type Status int32

const (
	StatusDisconnected Status = iota
	StatusHandshaking
	StatusIdentifying
	StatusConnected
	StatusResuming
	StatusClosed
)

// String 返回状态名称
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusHandshaking:
		return "handshaking"
	case StatusIdentifying:
		return "identifying"
	case StatusConnected:
		return "connected"
	case StatusResuming:
		return "resuming"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// State 会话状态快照
type State struct {
	Status            Status
	SessionID         string
	LastSequence      int64
	HasSequence       bool
	HeartbeatInterval time.Duration
	ResumeURL         string
}

// Resumable session_id 和 last_sequence 都已知
func (s State) Resumable() bool {
	return s.SessionID != "" && s.HasSequence
}

// sessionState 会话状态，只由 Session 修改，调用方持有 Session.mu
type sessionState struct {
	status            Status
	sessionID         string
	lastSequence      int64
	hasSequence       bool
	heartbeatInterval time.Duration
	resumeURL         string
}

func (s *sessionState) snapshot() State {
	return State{
		Status:            s.status,
		SessionID:         s.sessionID,
		LastSequence:      s.lastSequence,
		HasSequence:       s.hasSequence,
		HeartbeatInterval: s.heartbeatInterval,
		ResumeURL:         s.resumeURL,
	}
}

func (s *sessionState) resumable() bool {
	return s.sessionID != "" && s.hasSequence
}

// observeSequence last_sequence 只增不减
func (s *sessionState) observeSequence(seq int64) {
	if !s.hasSequence || seq > s.lastSequence {
		s.lastSequence = seq
		s.hasSequence = true
	}
}

// discard 丢弃会话，下次连接重新 Identify
func (s *sessionState) discard() {
	s.sessionID = ""
	s.lastSequence = 0
	s.hasSequence = false
	s.resumeURL = ""
}

// resumeState 可持久化的恢复信息
func (s *sessionState) resumeState() *ResumeState {
	if !s.resumable() {
		return nil
	}
	return &ResumeState{
		SessionID: s.sessionID,
		Sequence:  s.lastSequence,
		ResumeURL: s.resumeURL,
	}
}

// restore 从持久化的恢复信息还原
func (s *sessionState) restore(rs *ResumeState) {
	if rs == nil || rs.SessionID == "" {
		return
	}
	s.sessionID = rs.SessionID
	s.lastSequence = rs.Sequence
	s.hasSequence = true
	s.resumeURL = rs.ResumeURL
}
