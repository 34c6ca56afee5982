package redisstore

import (
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrNilConfig     = errors.New("redisstore: config is nil")
	ErrInvalidConfig = errors.New("redisstore: must specify exactly one of standalone or cluster")
)

// Config Redis 存储配置（Standalone/Cluster 两种模式，必须且只能配置一种）
type Config struct {
	Standalone *NodeConfig    `mapstructure:"standalone"`
	Cluster    *ClusterConfig `mapstructure:"cluster"`
	Pool       PoolConfig     `mapstructure:"pool"`

	// KeyPrefix 键前缀，多个机器人共用一个 Redis 时区分
	KeyPrefix string `mapstructure:"key_prefix"`
	// TTL 恢复信息过期时间，服务端会话大约在断开几分钟后失效
	TTL time.Duration `mapstructure:"ttl"`
}

// NodeConfig 单节点配置
type NodeConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ClusterConfig 集群配置
type ClusterConfig struct {
	Addrs    []string `mapstructure:"addrs"`
	Password string   `mapstructure:"password"`
}

// PoolConfig 连接池配置
type PoolConfig struct {
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig 返回默认配置（本机单节点）
func DefaultConfig() *Config {
	return &Config{
		Standalone: &NodeConfig{Host: "localhost", Port: 6379},
		Pool: PoolConfig{
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KeyPrefix: "gatecord:session:",
		TTL:       15 * time.Minute,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	modes := 0
	if c.Standalone != nil {
		modes++
	}
	if c.Cluster != nil {
		modes++
		if len(c.Cluster.Addrs) == 0 {
			return errors.Wrap(ErrInvalidConfig, "cluster addrs are empty")
		}
	}
	if modes != 1 {
		return ErrInvalidConfig
	}
	return nil
}
