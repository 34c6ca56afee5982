// pkg/gateway/backoff.go
package gateway

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff 重连退避器（指数退避 + 随机抖动 + 次数上限）
// 只统计连续失败，连接进入 Connected 后 Reset
type Backoff struct {
	config ReconnectConfig
	rand   func() float64

	mu           sync.Mutex
	attempts     int
	currentDelay time.Duration
}

// NewBackoff 创建退避器
func NewBackoff(cfg ReconnectConfig) *Backoff {
	return &Backoff{
		config:       cfg,
		rand:         rand.Float64,
		currentDelay: cfg.InitialDelay,
	}
}

// Next 返回下一次重连前的等待时间，预算耗尽时返回 false
func (b *Backoff) Next() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++
	if b.config.MaxAttempts > 0 && b.attempts > b.config.MaxAttempts {
		return 0, false
	}

	delay := b.currentDelay
	if b.config.RandomFactor > 0 {
		jitter := float64(delay) * b.config.RandomFactor
		delay = time.Duration(float64(delay) - jitter + b.rand()*2*jitter)
	}

	next := time.Duration(float64(b.currentDelay) * b.config.Multiplier)
	if next > b.config.MaxDelay {
		next = b.config.MaxDelay
	}
	b.currentDelay = next

	if delay > b.config.MaxDelay {
		delay = b.config.MaxDelay
	}
	return delay, true
}

// Reset 重置计数和延迟
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
	b.currentDelay = b.config.InitialDelay
}

// Attempts 当前连续重连次数
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
