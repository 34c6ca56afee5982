package logger

import (
	"context"

	"go.uber.org/zap"
)

// ContextFieldExtractor 从 context 提取字段的函数类型
type ContextFieldExtractor func(ctx context.Context) []zap.Field

// DefaultContextExtractor 默认的 context 提取器（不提取任何字段）
func DefaultContextExtractor(ctx context.Context) []zap.Field {
	return nil
}

type shardKey struct{}

// WithShard 将分片 ID 写入 context，供 ShardContextExtractor 使用
func WithShard(ctx context.Context, shardID int) context.Context {
	return context.WithValue(ctx, shardKey{}, shardID)
}

// ShardContextExtractor 提取 context 中的分片 ID
func ShardContextExtractor(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	if id, ok := ctx.Value(shardKey{}).(int); ok {
		return []zap.Field{zap.Int("shard", id)}
	}
	return nil
}
