// pkg/gateway/heartbeat.go
package gateway

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/lk2023060901/gatecord/pkg/logger"
)

// HeartbeatSender 发送一次心跳，seq 为 nil 表示尚未收到任何 Dispatch
type HeartbeatSender func(ctx context.Context, seq *int64) error

// SequenceProvider 返回当前 last_sequence
type SequenceProvider func() (int64, bool)

// HeartbeatState 心跳状态快照
type HeartbeatState struct {
	Interval   time.Duration
	LastSentAt time.Time
	LastAckAt  time.Time
	Acked      bool
	Latency    time.Duration
}

// Heartbeat 心跳定时器
// 按固定间隔发送心跳；上一次心跳未被确认时不再发送，而是通知僵尸连接
type Heartbeat struct {
	send     HeartbeatSender
	onZombie func()
	logger   logger.Logger
	metrics  *Metrics
	jitter   bool
	rand     func() float64

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	interval time.Duration
	sequence SequenceProvider
	acked    bool
	lastSent time.Time
	lastAck  time.Time
	latency  time.Duration
}

// NewHeartbeat 创建心跳定时器
func NewHeartbeat(send HeartbeatSender, onZombie func(), log logger.Logger, metrics *Metrics, jitter bool) *Heartbeat {
	return &Heartbeat{
		send:     send,
		onZombie: onZombie,
		logger:   logger.OrNoop(log),
		metrics:  metrics,
		jitter:   jitter,
		rand:     rand.Float64,
	}
}

// Start 按新的间隔重新开始计时，已有的计时会先停止
func (h *Heartbeat) Start(interval time.Duration, sequence SequenceProvider) {
	h.Stop()
	if interval <= 0 {
		return
	}

	h.mu.Lock()
	stopCh := make(chan struct{})
	h.running = true
	h.stopCh = stopCh
	h.interval = interval
	h.sequence = sequence
	h.acked = true
	h.lastSent = time.Time{}
	first := interval
	if h.jitter {
		first = time.Duration(h.rand() * float64(interval))
	}
	h.mu.Unlock()

	go h.loop(stopCh, interval, first)
}

// Stop 停止计时，不等待进行中的发送
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stopCh)
}

// OnAck 收到 HeartbeatAck
func (h *Heartbeat) OnAck() {
	h.mu.Lock()
	now := time.Now()
	h.acked = true
	h.lastAck = now
	if !h.lastSent.IsZero() {
		h.latency = now.Sub(h.lastSent)
	}
	latency := h.latency
	h.mu.Unlock()

	h.metrics.OnHeartbeatAck(latency)
}

// Beat 立即发送一次心跳（服务端下发 opcode 1 时）
func (h *Heartbeat) Beat(ctx context.Context) error {
	h.mu.Lock()
	sequence := h.sequence
	h.lastSent = time.Now()
	h.mu.Unlock()

	h.metrics.OnHeartbeatSent()
	return h.send(ctx, currentSequence(sequence))
}

// Snapshot 返回当前心跳状态
func (h *Heartbeat) Snapshot() HeartbeatState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HeartbeatState{
		Interval:   h.interval,
		LastSentAt: h.lastSent,
		LastAckAt:  h.lastAck,
		Acked:      h.acked,
		Latency:    h.latency,
	}
}

// loop 以 Start 时刻为基准计算每次发送时间，避免发送耗时造成漂移
func (h *Heartbeat) loop(stopCh chan struct{}, interval, first time.Duration) {
	timer := time.NewTimer(first)
	defer timer.Stop()
	next := time.Now().Add(first)

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
			if !h.tick(stopCh, interval) {
				return
			}
			next = next.Add(interval)
			wait := time.Until(next)
			if wait < 0 {
				next = time.Now()
				wait = 0
			}
			timer.Reset(wait)
		}
	}
}

// tick 返回 false 表示计时结束
func (h *Heartbeat) tick(stopCh chan struct{}, interval time.Duration) bool {
	h.mu.Lock()
	select {
	case <-stopCh:
		h.mu.Unlock()
		return false
	default:
	}

	if !h.acked {
		h.running = false
		close(h.stopCh)
		lastSent := h.lastSent
		h.mu.Unlock()

		h.logger.Warn("heartbeat not acknowledged, connection is zombie",
			"interval", interval,
			"last_sent", lastSent,
		)
		h.metrics.OnZombie()
		if h.onZombie != nil {
			h.onZombie()
		}
		return false
	}

	h.acked = false
	h.lastSent = time.Now()
	sequence := h.sequence
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), interval)
	defer cancel()

	h.metrics.OnHeartbeatSent()
	if err := h.send(ctx, currentSequence(sequence)); err != nil {
		h.logger.Debug("heartbeat send failed", "error", err)
	}
	return true
}

func currentSequence(sequence SequenceProvider) *int64 {
	if sequence == nil {
		return nil
	}
	if seq, ok := sequence(); ok {
		return &seq
	}
	return nil
}
