package gateway

import (
	"context"
	"fmt"
	"sync"
)

// ResumeState 跨连接（或跨进程）恢复会话所需的信息
type ResumeState struct {
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
	ResumeURL string `json:"resume_url"`
}

// SessionStore 恢复信息存储，按分片区分
type SessionStore interface {
	// Load 不存在时返回 nil, nil
	Load(ctx context.Context, shardID, shardCount int) (*ResumeState, error)
	Save(ctx context.Context, shardID, shardCount int, state *ResumeState) error
	Delete(ctx context.Context, shardID, shardCount int) error
}

// StoreKey 分片在存储中的键
func StoreKey(shardID, shardCount int) string {
	return fmt.Sprintf("shard:%d:%d", shardID, shardCount)
}

// MemoryStore 进程内存储
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]ResumeState
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]ResumeState)}
}

func (m *MemoryStore) Load(_ context.Context, shardID, shardCount int) (*ResumeState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[StoreKey(shardID, shardCount)]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *MemoryStore) Save(_ context.Context, shardID, shardCount int, state *ResumeState) error {
	if state == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[StoreKey(shardID, shardCount)] = *state
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, shardID, shardCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, StoreKey(shardID, shardCount))
	return nil
}
