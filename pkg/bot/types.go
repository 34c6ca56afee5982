package bot

import "github.com/lk2023060901/gatecord/pkg/gateway"

type (
	Activity     = gateway.Activity
	ActivityType = gateway.ActivityType
	Presence     = gateway.Presence
	Intents      = gateway.Intents
)

const (
	ActivityGame      = gateway.ActivityGame
	ActivityStreaming = gateway.ActivityStreaming
	ActivityListening = gateway.ActivityListening
	ActivityWatching  = gateway.ActivityWatching
	ActivityCustom    = gateway.ActivityCustom
	ActivityCompeting = gateway.ActivityCompeting
)

// NewActivity 创建活动
func NewActivity(name string, typ ActivityType) Activity {
	return gateway.NewActivity(name, typ)
}

// 常用事件名
const (
	EventReady             = gateway.EventReady
	EventResumed           = gateway.EventResumed
	EventMessageCreate     = "MESSAGE_CREATE"
	EventGuildCreate       = "GUILD_CREATE"
	EventGuildUpdate       = "GUILD_UPDATE"
	EventInteractionCreate = "INTERACTION_CREATE"
)
