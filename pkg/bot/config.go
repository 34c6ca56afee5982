package bot

import (
	"time"

	"github.com/lk2023060901/gatecord/pkg/dispatch"
	"github.com/lk2023060901/gatecord/pkg/gateway"
)

// Config 客户端配置
type Config struct {
	Gateway  gateway.Config  `mapstructure:"gateway"`
	Dispatch dispatch.Config `mapstructure:"dispatch"`

	// ShutdownTimeout Close 时等待事件处理完成和错误上报刷新的时间
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// SyncCommands READY 后通过 ResourceClient 上传已注册的命令
	SyncCommands bool `mapstructure:"sync_commands"`

	// ApplicationID 为空时使用 READY 中的 application.id
	ApplicationID string `mapstructure:"application_id"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Gateway:         *gateway.DefaultConfig(),
		Dispatch:        *dispatch.DefaultConfig(),
		ShutdownTimeout: 5 * time.Second,
	}
}
