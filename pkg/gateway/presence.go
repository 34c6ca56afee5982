package gateway

// ActivityType 活动类型
type ActivityType int

const (
	ActivityGame ActivityType = iota
	ActivityStreaming
	ActivityListening
	ActivityWatching
	ActivityCustom
	ActivityCompeting
)

// String 返回活动类型名称
func (t ActivityType) String() string {
	switch t {
	case ActivityGame:
		return "game"
	case ActivityStreaming:
		return "streaming"
	case ActivityListening:
		return "listening"
	case ActivityWatching:
		return "watching"
	case ActivityCustom:
		return "custom"
	case ActivityCompeting:
		return "competing"
	default:
		return "unknown"
	}
}

// Activity 展示在机器人资料上的活动
type Activity struct {
	Name  string       `json:"name" mapstructure:"name" validate:"required"`
	Type  ActivityType `json:"type" mapstructure:"type" validate:"gte=0,lte=5"`
	URL   string       `json:"url,omitempty" mapstructure:"url"`
	State string       `json:"state,omitempty" mapstructure:"state"`
}

// NewActivity 创建活动
func NewActivity(name string, typ ActivityType) Activity {
	return Activity{Name: name, Type: typ}
}

// 在线状态
const (
	StatusOnline    = "online"
	StatusIdle      = "idle"
	StatusDND       = "dnd"
	StatusInvisible = "invisible"
	StatusOffline   = "offline"
)

// Presence 在线状态，Identify 时携带或通过 opcode 3 更新
type Presence struct {
	Since      *int64     `json:"since"`
	Activities []Activity `json:"activities" mapstructure:"activities" validate:"dive"`
	Status     string     `json:"status" mapstructure:"status" validate:"omitempty,oneof=online idle dnd invisible offline"`
	AFK        bool       `json:"afk" mapstructure:"afk"`
}

// normalize 填充平台要求的字段
func (p *Presence) normalize() {
	if p.Status == "" {
		p.Status = StatusOnline
	}
	if p.Activities == nil {
		p.Activities = []Activity{}
	}
}
