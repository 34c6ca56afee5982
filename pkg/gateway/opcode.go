// pkg/gateway/opcode.go
package gateway

import "strconv"

// Opcode 网关 payload 操作码
type Opcode int

const (
	OpDispatch            Opcode = 0
	OpHeartbeat           Opcode = 1
	OpIdentify            Opcode = 2
	OpStatusUpdate        Opcode = 3
	OpVoiceStateUpdate    Opcode = 4
	OpResume              Opcode = 6
	OpReconnect           Opcode = 7
	OpRequestGuildMembers Opcode = 8
	OpInvalidSession      Opcode = 9
	OpHello               Opcode = 10
	OpHeartbeatAck        Opcode = 11
)

// String 返回操作码名称，未知操作码返回数字
func (o Opcode) String() string {
	switch o {
	case OpDispatch:
		return "DISPATCH"
	case OpHeartbeat:
		return "HEARTBEAT"
	case OpIdentify:
		return "IDENTIFY"
	case OpStatusUpdate:
		return "STATUS_UPDATE"
	case OpVoiceStateUpdate:
		return "VOICE_STATE_UPDATE"
	case OpResume:
		return "RESUME"
	case OpReconnect:
		return "RECONNECT"
	case OpRequestGuildMembers:
		return "REQUEST_GUILD_MEMBERS"
	case OpInvalidSession:
		return "INVALID_SESSION"
	case OpHello:
		return "HELLO"
	case OpHeartbeatAck:
		return "HEARTBEAT_ACK"
	default:
		return "OP_" + strconv.Itoa(int(o))
	}
}

// Known 是否为会话状态机认识的操作码
func (o Opcode) Known() bool {
	switch o {
	case OpDispatch, OpHeartbeat, OpIdentify, OpStatusUpdate, OpVoiceStateUpdate,
		OpResume, OpReconnect, OpRequestGuildMembers, OpInvalidSession, OpHello, OpHeartbeatAck:
		return true
	}
	return false
}

// 会话状态机关心的事件名
const (
	EventReady   = "READY"
	EventResumed = "RESUMED"
)
