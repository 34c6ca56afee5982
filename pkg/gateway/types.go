package gateway

import "encoding/json"

// IdentifyProperties 连接属性
type IdentifyProperties struct {
	OS      string `json:"os" mapstructure:"os"`
	Browser string `json:"browser" mapstructure:"browser"`
	Device  string `json:"device" mapstructure:"device"`
}

// Identify opcode 2
type Identify struct {
	Token          string             `json:"token"`
	Properties     IdentifyProperties `json:"properties"`
	Compress       bool               `json:"compress,omitempty"`
	LargeThreshold int                `json:"large_threshold,omitempty"`
	Shard          *[2]int            `json:"shard,omitempty"`
	Presence       *Presence          `json:"presence,omitempty"`
	Intents        Intents            `json:"intents"`
}

// Resume opcode 6
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

// Hello opcode 10
type Hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// Ready READY 事件中会话状态机关心的字段
type Ready struct {
	Version          int    `json:"v"`
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
	User             struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Application struct {
		ID string `json:"id"`
	} `json:"application"`
	Shard *[2]int `json:"shard,omitempty"`
}

// RequestGuildMembers opcode 8
type RequestGuildMembers struct {
	GuildID   string   `json:"guild_id"`
	Query     *string  `json:"query,omitempty"`
	Limit     int      `json:"limit"`
	Presences bool     `json:"presences,omitempty"`
	UserIDs   []string `json:"user_ids,omitempty"`
	Nonce     string   `json:"nonce,omitempty"`
}

// VoiceStateUpdate opcode 4
type VoiceStateUpdate struct {
	GuildID   string  `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	SelfMute  bool    `json:"self_mute"`
	SelfDeaf  bool    `json:"self_deaf"`
}

// invalidSessionResumable opcode 9 的 d 是一个布尔值
func invalidSessionResumable(data json.RawMessage) bool {
	var resumable bool
	if len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, &resumable); err != nil {
		return false
	}
	return resumable
}
