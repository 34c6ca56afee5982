// pkg/gateway/redisstore/store.go
package redisstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/config"
	"github.com/lk2023060901/gatecord/pkg/gateway"
	"github.com/redis/go-redis/v9"
)

const (
	fieldSessionID = "session_id"
	fieldSequence  = "seq"
	fieldResumeURL = "resume_url"
)

// Store 基于 Redis Hash 的 gateway.SessionStore，进程重启后可以继续 Resume
type Store struct {
	client redis.UniversalClient
	cfg    *Config
}

var _ gateway.SessionStore = (*Store)(nil)

// New 按配置创建存储
func New(cfg *Config) (*Store, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if cfg != nil && cfg.Cluster != nil {
		merged.Standalone = nil
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	if merged.Cluster != nil {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        merged.Cluster.Addrs,
			Password:     merged.Cluster.Password,
			PoolSize:     merged.Pool.PoolSize,
			MinIdleConns: merged.Pool.MinIdleConns,
			DialTimeout:  merged.Pool.DialTimeout,
			ReadTimeout:  merged.Pool.ReadTimeout,
			WriteTimeout: merged.Pool.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", merged.Standalone.Host, merged.Standalone.Port),
			Password:     merged.Standalone.Password,
			DB:           merged.Standalone.DB,
			PoolSize:     merged.Pool.PoolSize,
			MinIdleConns: merged.Pool.MinIdleConns,
			DialTimeout:  merged.Pool.DialTimeout,
			ReadTimeout:  merged.Pool.ReadTimeout,
			WriteTimeout: merged.Pool.WriteTimeout,
		})
	}
	return &Store{client: client, cfg: merged}, nil
}

// NewWithClient 使用已有的客户端
func NewWithClient(client redis.UniversalClient, cfg *Config) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Store{client: client, cfg: cfg}
}

func (s *Store) key(shardID, shardCount int) string {
	return s.cfg.KeyPrefix + gateway.StoreKey(shardID, shardCount)
}

// Load 读取恢复信息，不存在时返回 nil, nil
func (s *Store) Load(ctx context.Context, shardID, shardCount int) (*gateway.ResumeState, error) {
	values, err := s.client.HGetAll(ctx, s.key(shardID, shardCount)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redisstore: load")
	}
	if len(values) == 0 || values[fieldSessionID] == "" {
		return nil, nil
	}

	seq, err := strconv.ParseInt(values[fieldSequence], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "redisstore: parse sequence %q", values[fieldSequence])
	}
	return &gateway.ResumeState{
		SessionID: values[fieldSessionID],
		Sequence:  seq,
		ResumeURL: values[fieldResumeURL],
	}, nil
}

// Save 写入恢复信息并刷新过期时间
func (s *Store) Save(ctx context.Context, shardID, shardCount int, state *gateway.ResumeState) error {
	if state == nil {
		return nil
	}
	key := s.key(shardID, shardCount)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldSessionID, state.SessionID,
			fieldSequence, strconv.FormatInt(state.Sequence, 10),
			fieldResumeURL, state.ResumeURL,
		)
		if s.cfg.TTL > 0 {
			pipe.Expire(ctx, key, s.cfg.TTL)
		}
		return nil
	})
	return errors.Wrap(err, "redisstore: save")
}

// Delete 删除恢复信息
func (s *Store) Delete(ctx context.Context, shardID, shardCount int) error {
	return errors.Wrap(s.client.Del(ctx, s.key(shardID, shardCount)).Err(), "redisstore: delete")
}

// Ping 检查连接
func (s *Store) Ping(ctx context.Context) error {
	return errors.Wrap(s.client.Ping(ctx).Err(), "redisstore: ping")
}

// Close 关闭客户端
func (s *Store) Close() error {
	return s.client.Close()
}
