package dispatch

import "time"

// Config 分发器配置
type Config struct {
	// PoolSize 工作池大小，池满时退化为独立 goroutine
	PoolSize int `mapstructure:"pool_size" validate:"gte=0"`
	// HandlerTimeout 单个处理函数的 ctx 超时，0 表示不限制
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	// ExpiryDuration 空闲 worker 回收间隔
	ExpiryDuration time.Duration `mapstructure:"expiry_duration"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		PoolSize:       256,
		ExpiryDuration: 10 * time.Second,
	}
}
