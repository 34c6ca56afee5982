package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lk2023060901/gatecord/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackedConn 记录客户端是否关闭了连接
type trackedConn struct {
	transport.Conn
	closed atomic.Bool
}

func (c *trackedConn) Close(code int, reason string) error {
	c.closed.Store(true)
	return c.Conn.Close(code, reason)
}

// trackingDialer 包装真实的 websocket Dialer
type trackingDialer struct {
	inner transport.Dialer

	mu    sync.Mutex
	conns []*trackedConn
}

func (d *trackingDialer) Dial(ctx context.Context, url string, header http.Header) (transport.Conn, error) {
	c, err := d.inner.Dial(ctx, url, header)
	if err != nil {
		return nil, err
	}
	tc := &trackedConn{Conn: c}
	d.mu.Lock()
	d.conns = append(d.conns, tc)
	d.mu.Unlock()
	return tc, nil
}

func (d *trackingDialer) snapshot() []*trackedConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*trackedConn(nil), d.conns...)
}

// TestSessionClosesConnectionsDroppedByServer 服务端每次收到 Identify 后以 4000 关闭
func TestSessionClosesConnectionsDroppedByServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		hello, _ := EncodePayload(OpHello, Hello{HeartbeatInterval: 45000}, nil)
		if err := ws.WriteMessage(websocket.TextMessage, hello); err != nil {
			return
		}
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(4000, "unknown error"),
			time.Now().Add(time.Second))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.URL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/?v=10&encoding=json"
	cfg.Reconnect.MaxAttempts = 50
	d := &trackingDialer{inner: transport.NewWebsocketDialer(&transport.Config{DialTimeout: time.Second}, nil)}
	s := newTestSession(t, cfg, WithDialer(d))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Open(ctx) }()

	require.Eventually(t, func() bool { return len(d.snapshot()) >= 4 }, 5*time.Second, 5*time.Millisecond)

	conns := d.snapshot()
	for i, c := range conns[:len(conns)-1] {
		assert.Eventually(t, c.closed.Load, waitTimeout, 5*time.Millisecond, "connection %d not closed", i)
	}
}
