package gateway

// Intents 订阅的事件类别位图
type Intents uint64

const (
	IntentGuilds Intents = 1 << iota
	IntentGuildMembers
	IntentGuildModeration
	IntentGuildEmojisAndStickers
	IntentGuildIntegrations
	IntentGuildWebhooks
	IntentGuildInvites
	IntentGuildVoiceStates
	IntentGuildPresences
	IntentGuildMessages
	IntentGuildMessageReactions
	IntentGuildMessageTyping
	IntentDirectMessages
	IntentDirectMessageReactions
	IntentDirectMessageTyping
	IntentMessageContent
	IntentGuildScheduledEvents
	_
	_
	_
	IntentAutoModerationConfiguration
	IntentAutoModerationExecution
)

const (
	// IntentsPrivileged 需要在开发者后台单独开启的类别
	IntentsPrivileged = IntentGuildMembers | IntentGuildPresences | IntentMessageContent

	// IntentsDefault 不含特权类别的全部类别
	IntentsDefault = IntentGuilds | IntentGuildModeration | IntentGuildEmojisAndStickers |
		IntentGuildIntegrations | IntentGuildWebhooks | IntentGuildInvites |
		IntentGuildVoiceStates | IntentGuildMessages | IntentGuildMessageReactions |
		IntentGuildMessageTyping | IntentDirectMessages | IntentDirectMessageReactions |
		IntentDirectMessageTyping | IntentGuildScheduledEvents |
		IntentAutoModerationConfiguration | IntentAutoModerationExecution
)

// Has 是否包含全部给定类别
func (i Intents) Has(other Intents) bool {
	return i&other == other
}
