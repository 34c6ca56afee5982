package transport

import (
	"crypto/tls"
	"time"
)

// Config websocket 传输配置
type Config struct {
	ReadBufferSize  int `mapstructure:"read_buffer_size"`
	WriteBufferSize int `mapstructure:"write_buffer_size"`
	// MaxMessageSize 单帧上限，READY 和 GUILD_CREATE 可能很大
	MaxMessageSize int64 `mapstructure:"max_message_size"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// CloseTimeout 关闭时写关闭帧的超时
	CloseTimeout time.Duration `mapstructure:"close_timeout"`

	SendQueueSize int `mapstructure:"send_queue_size"`

	// TLS 运行时设置，不序列化
	TLS *tls.Config `mapstructure:"-" validate:"-"`
}

// DefaultConfig 返回默认传输配置
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  16 * 1024,
		WriteBufferSize: 4096,
		MaxMessageSize:  16 * 1024 * 1024,
		DialTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		CloseTimeout:    time.Second,
		SendQueueSize:   256,
	}
}

// normalize 补全非法值
func (c *Config) normalize() {
	d := DefaultConfig()
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = d.CloseTimeout
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = d.SendQueueSize
	}
}
