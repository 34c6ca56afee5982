package gateway

// CloseAction 连接关闭后的处理方式
type CloseAction int

const (
	// CloseActionResume 携带 session_id 和 seq 重连
	CloseActionResume CloseAction = iota
	// CloseActionReidentify 丢弃会话，重新 Identify
	CloseActionReidentify
	// CloseActionAuthFailure token 被拒绝，不重试
	CloseActionAuthFailure
	// CloseActionFatal 配置错误（分片、版本、intents），不重试
	CloseActionFatal
)

// String 返回处理方式名称
func (a CloseAction) String() string {
	switch a {
	case CloseActionResume:
		return "resume"
	case CloseActionReidentify:
		return "reidentify"
	case CloseActionAuthFailure:
		return "auth_failure"
	case CloseActionFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// 平台文档中的关闭码
const (
	CloseUnknownError         = 4000
	CloseUnknownOpcode        = 4001
	CloseDecodeError          = 4002
	CloseNotAuthenticated     = 4003
	CloseAuthenticationFailed = 4004
	CloseAlreadyAuthenticated = 4005
	CloseInvalidSeq           = 4007
	CloseRateLimited          = 4008
	CloseSessionTimedOut      = 4009
	CloseInvalidShard         = 4010
	CloseShardingRequired     = 4011
	CloseInvalidAPIVersion    = 4012
	CloseInvalidIntents       = 4013
	CloseDisallowedIntents    = 4014
)

// closeCodeKeepSession 客户端主动断开但希望保留会话时使用的关闭码
// 1000/1001 会让服务端作废会话
const closeCodeKeepSession = 4000

// CloseCodePolicy 关闭码到处理方式的映射，表中没有的关闭码按 Resume 处理
type CloseCodePolicy map[int]CloseAction

// DefaultCloseCodePolicy 返回按平台文档整理的默认策略
func DefaultCloseCodePolicy() CloseCodePolicy {
	return CloseCodePolicy{
		1000: CloseActionReidentify,
		1001: CloseActionReidentify,

		CloseUnknownError:         CloseActionResume,
		CloseUnknownOpcode:        CloseActionResume,
		CloseDecodeError:          CloseActionResume,
		CloseAlreadyAuthenticated: CloseActionResume,
		CloseRateLimited:          CloseActionResume,

		CloseNotAuthenticated: CloseActionReidentify,
		CloseInvalidSeq:       CloseActionReidentify,
		CloseSessionTimedOut:  CloseActionReidentify,

		CloseAuthenticationFailed: CloseActionAuthFailure,

		CloseInvalidShard:      CloseActionFatal,
		CloseShardingRequired:  CloseActionFatal,
		CloseInvalidAPIVersion: CloseActionFatal,
		CloseInvalidIntents:    CloseActionFatal,
		CloseDisallowedIntents: CloseActionFatal,
	}
}

// Classify 返回关闭码对应的处理方式
func (p CloseCodePolicy) Classify(code int) CloseAction {
	if action, ok := p[code]; ok {
		return action
	}
	return CloseActionResume
}
