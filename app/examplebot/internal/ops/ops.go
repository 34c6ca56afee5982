// Package ops 运维接口：存活、就绪、会话状态和指标
package ops

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/gatecord/pkg/gateway"
	"github.com/lk2023060901/gatecord/pkg/web"
)

// SessionSource 提供会话快照，*gateway.Session 满足该接口
type SessionSource interface {
	State() gateway.State
	Heartbeat() gateway.HeartbeatState
}

// SessionView /debug/session 返回的结构
type SessionView struct {
	Status       string `json:"status"`
	SessionID    string `json:"session_id,omitempty"`
	LastSequence *int64 `json:"last_sequence,omitempty"`
	Resumable    bool   `json:"resumable"`

	HeartbeatIntervalMS int64      `json:"heartbeat_interval_ms"`
	LastHeartbeatAt     *time.Time `json:"last_heartbeat_at,omitempty"`
	LastAckAt           *time.Time `json:"last_ack_at,omitempty"`
	LatencyMS           int64      `json:"latency_ms"`
}

// NewSessionView 由快照生成视图，session_id 只保留前 8 位
func NewSessionView(st gateway.State, hb gateway.HeartbeatState) SessionView {
	v := SessionView{
		Status:              st.Status.String(),
		SessionID:           shorten(st.SessionID),
		Resumable:           st.Resumable(),
		HeartbeatIntervalMS: st.HeartbeatInterval.Milliseconds(),
		LatencyMS:           hb.Latency.Milliseconds(),
	}
	if st.HasSequence {
		seq := st.LastSequence
		v.LastSequence = &seq
	}
	if !hb.LastSentAt.IsZero() {
		at := hb.LastSentAt
		v.LastHeartbeatAt = &at
	}
	if !hb.LastAckAt.IsZero() {
		at := hb.LastAckAt
		v.LastAckAt = &at
	}
	return v
}

// Register 注册运维路由，metrics 为空时不挂载 /metrics
func Register(r gin.IRoutes, src SessionSource, metrics http.Handler) {
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/readyz", func(c *gin.Context) {
		st := src.State()
		if st.Status != gateway.StatusConnected {
			web.Error(c, http.StatusServiceUnavailable, 1, "session "+st.Status.String())
			return
		}
		web.Success(c, gin.H{"status": st.Status.String()})
	})

	r.GET("/debug/session", func(c *gin.Context) {
		web.Success(c, NewSessionView(src.State(), src.Heartbeat()))
	})

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
}

func shorten(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "…"
}
