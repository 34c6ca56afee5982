// pkg/gateway/config.go
package gateway

import (
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/config"
	"github.com/lk2023060901/gatecord/pkg/transport"
)

// DefaultURL 网关地址，v10 JSON 编码
const DefaultURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Config 会话配置
type Config struct {
	URL     string  `mapstructure:"url" validate:"required"`
	Token   string  `mapstructure:"token" validate:"required"`
	Intents Intents `mapstructure:"intents"`

	Properties IdentifyProperties `mapstructure:"properties"`
	Presence   *Presence          `mapstructure:"presence" validate:"omitempty"`

	// 分片，ShardCount 为 0 时不发送 shard 字段
	ShardID    int `mapstructure:"shard_id" validate:"gte=0"`
	ShardCount int `mapstructure:"shard_count" validate:"gte=0"`

	LargeThreshold int  `mapstructure:"large_threshold" validate:"omitempty,gte=50,lte=250"`
	Compress       bool `mapstructure:"compress"`

	// HeartbeatJitter 首次心跳随机延迟，平台建议开启
	HeartbeatJitter bool `mapstructure:"heartbeat_jitter"`

	// PreserveSessionOnClose Close 时使用 4000 关闭并保存会话，下次启动可恢复
	PreserveSessionOnClose bool `mapstructure:"preserve_session_on_close"`

	// OpenTimeout Open 等待 READY 的超时，0 表示只受 ctx 约束
	OpenTimeout time.Duration `mapstructure:"open_timeout"`

	Reconnect ReconnectConfig  `mapstructure:"reconnect"`
	SendRate  SendRateConfig   `mapstructure:"send_rate"`
	Transport transport.Config `mapstructure:"transport"`
}

// ReconnectConfig 重连退避配置
type ReconnectConfig struct {
	// MaxAttempts 连续重连次数上限，超过后会话失败
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=0"`
	// MaxResumeAttempts 连续 Resume 次数上限，超过后丢弃会话重新 Identify
	MaxResumeAttempts int           `mapstructure:"max_resume_attempts" validate:"gte=0"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	Multiplier        float64       `mapstructure:"multiplier" validate:"gte=0"`
	RandomFactor      float64       `mapstructure:"random_factor" validate:"gte=0,lte=1"`
}

// SendRateConfig 应用层发送限速
type SendRateConfig struct {
	Events int           `mapstructure:"events" validate:"gte=0"`
	Per    time.Duration `mapstructure:"per"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		URL:     DefaultURL,
		Intents: IntentsDefault,
		Properties: IdentifyProperties{
			OS:      runtime.GOOS,
			Browser: "gatecord",
			Device:  "gatecord",
		},
		LargeThreshold:  50,
		HeartbeatJitter: true,
		Reconnect:       DefaultReconnectConfig(),
		SendRate: SendRateConfig{
			Events: 110,
			Per:    60 * time.Second,
		},
		Transport: *transport.DefaultConfig(),
	}
}

// DefaultReconnectConfig 返回默认退避配置
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts:       10,
		MaxResumeAttempts: 3,
		InitialDelay:      time.Second,
		MaxDelay:          60 * time.Second,
		Multiplier:        2.0,
		RandomFactor:      0.1,
	}
}

// Validate 校验配置，不修改 c
func (c *Config) Validate() error {
	if err := config.NewValidator().Validate(c); err != nil {
		return errors.Mark(err, ErrInvalidConfig)
	}
	if c.ShardCount > 0 && c.ShardID >= c.ShardCount {
		return errors.Wrapf(ErrInvalidConfig, "shard_id %d out of range [0, %d)", c.ShardID, c.ShardCount)
	}
	return nil
}

// withDefaults 返回补全默认值后的副本
func (c *Config) withDefaults() *Config {
	out := *c
	if c.Presence != nil {
		p := *c.Presence
		p.Activities = append([]Activity(nil), c.Presence.Activities...)
		out.Presence = &p
	}
	c = &out

	d := DefaultReconnectConfig()
	if c.Reconnect.InitialDelay <= 0 {
		c.Reconnect.InitialDelay = d.InitialDelay
	}
	if c.Reconnect.MaxDelay <= 0 {
		c.Reconnect.MaxDelay = d.MaxDelay
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		c.Reconnect.MaxDelay = c.Reconnect.InitialDelay
	}
	if c.Reconnect.Multiplier < 1 {
		c.Reconnect.Multiplier = d.Multiplier
	}
	if c.SendRate.Per <= 0 {
		c.SendRate.Per = 60 * time.Second
	}
	if c.Presence != nil {
		c.Presence.normalize()
	}
	return c
}

// shard Identify 中的 shard 字段
func (c *Config) shard() *[2]int {
	if c.ShardCount <= 0 {
		return nil
	}
	return &[2]int{c.ShardID, c.ShardCount}
}
