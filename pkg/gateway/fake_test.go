package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/transport"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// fakeConn 内存中的连接，测试扮演服务端
type fakeConn struct {
	id  string
	in  chan transport.Frame
	out chan []byte

	mu        sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
	recvErr   error
	closeCode int

	// clientClosed 客户端调用过 Close
	clientClosed atomic.Bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:     id,
		in:     make(chan transport.Frame, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(ctx context.Context, frame transport.Frame) error {
	select {
	case <-c.closed:
		return transport.ErrConnectionClosed
	default:
	}
	select {
	case c.out <- frame.Data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return transport.ErrConnectionClosed
	}
}

func (c *fakeConn) Receive() (transport.Frame, error) {
	select {
	case f := <-c.in:
		return f, nil
	case <-c.closed:
		c.mu.Lock()
		defer c.mu.Unlock()
		return transport.Frame{}, c.recvErr
	}
}

func (c *fakeConn) Close(code int, reason string) error {
	c.clientClosed.Store(true)
	c.shutdown(code, errors.Mark(errors.New("read on closed connection"), transport.ErrConnectionClosed))
	return nil
}

// drop 模拟服务端关闭连接
func (c *fakeConn) drop(code int) {
	c.shutdown(code, &transport.CloseError{Code: code, Text: "server closed"})
}

func (c *fakeConn) shutdown(code int, recvErr error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.recvErr = recvErr
		c.mu.Unlock()
		close(c.closed)
	})
}

func (c *fakeConn) code() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

func (c *fakeConn) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(waitTimeout):
		t.Fatalf("connection %s was not closed", c.id)
	}
}

func (c *fakeConn) push(t *testing.T, op Opcode, data any, seq *int64, event string) {
	t.Helper()
	envelope := map[string]any{"op": int(op), "d": data}
	if seq != nil {
		envelope["s"] = *seq
	}
	if event != "" {
		envelope["t"] = event
	}
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	c.in <- transport.Frame{Type: transport.FrameText, Data: raw}
}

func (c *fakeConn) hello(t *testing.T, interval time.Duration) {
	t.Helper()
	c.push(t, OpHello, map[string]any{"heartbeat_interval": interval.Milliseconds()}, nil, "")
}

func (c *fakeConn) dispatch(t *testing.T, seq int64, event string, data any) {
	t.Helper()
	c.push(t, OpDispatch, data, &seq, event)
}

func (c *fakeConn) ready(t *testing.T, seq int64, sessionID string) {
	t.Helper()
	c.dispatch(t, seq, EventReady, map[string]any{
		"v":           10,
		"session_id":  sessionID,
		"user":        map[string]any{"id": "42", "username": "gatecord"},
		"application": map[string]any{"id": "app-1"},
	})
}

// expect 读取客户端发出的帧直到遇到指定操作码
func (c *fakeConn) expect(t *testing.T, op Opcode) *Payload {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case raw := <-c.out:
			p, err := DecodePayload(raw)
			require.NoError(t, err)
			if p.Op == op {
				return p
			}
		case <-deadline:
			t.Fatalf("no %s payload on connection %s", op, c.id)
			return nil
		}
	}
}

// fakeDialer 每次 Dial 返回新的 fakeConn
type fakeDialer struct {
	mu      sync.Mutex
	count   int
	urls    []string
	dialErr error
	dialed  chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string, _ http.Header) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	d.urls = append(d.urls, url)
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	c := newFakeConn("conn-" + strconv.Itoa(d.count))
	d.dialed <- c
	return c, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.dialed:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("session did not dial")
		return nil
	}
}

// recordingDispatcher 记录收到的事件
type recordingDispatcher struct {
	mu     sync.Mutex
	events []string
	data   []json.RawMessage
}

func (r *recordingDispatcher) Dispatch(event string, data json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.data = append(r.data, data)
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recordingDispatcher) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Token = "secret-token"
	cfg.HeartbeatJitter = false
	cfg.Reconnect = ReconnectConfig{
		MaxAttempts:       5,
		MaxResumeAttempts: 3,
		InitialDelay:      5 * time.Millisecond,
		MaxDelay:          20 * time.Millisecond,
		Multiplier:        2,
	}
	return cfg
}

func newTestSession(t *testing.T, cfg *Config, opts ...Option) *Session {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	s, err := NewSession(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// openAsync 后台执行 Open
func openAsync(s *Session) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Open(context.Background())
	}()
	return errCh
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("Open did not return")
		return nil
	}
}

func waitStatus(t *testing.T, s *Session, want Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.State().Status == want
	}, waitTimeout, 2*time.Millisecond, "want status %s", want)
}
