package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/gatecord/pkg/gateway"
	"github.com/lk2023060901/gatecord/pkg/transport"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// fakeConn 测试扮演网关服务端
type fakeConn struct {
	id     string
	in     chan transport.Frame
	out    chan []byte
	closed chan struct{}
	once   sync.Once
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
		return transport.Frame{}, transport.ErrConnectionClosed
	}
}

func (c *fakeConn) Close(int, string) error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, op gateway.Opcode, data any, seq int64, event string) {
	t.Helper()
	envelope := map[string]any{"op": int(op), "d": data}
	if event != "" {
		envelope["s"] = seq
		envelope["t"] = event
	}
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	c.in <- transport.Frame{Type: transport.FrameText, Data: raw}
}

func (c *fakeConn) expect(t *testing.T, op gateway.Opcode) *gateway.Payload {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case raw := <-c.out:
			p, err := gateway.DecodePayload(raw)
			require.NoError(t, err)
			if p.Op == op {
				return p
			}
		case <-deadline:
			t.Fatalf("no %s payload", op)
			return nil
		}
	}
}

// handshake 完成 Hello/Identify/READY
func (c *fakeConn) handshake(t *testing.T) {
	t.Helper()
	c.push(t, gateway.OpHello, map[string]any{"heartbeat_interval": 45000}, 0, "")
	c.expect(t, gateway.OpIdentify)
	c.push(t, gateway.OpDispatch, map[string]any{
		"v":           10,
		"session_id":  "sess-1",
		"user":        map[string]any{"id": "42", "username": "gatecord"},
		"application": map[string]any{"id": "app-1"},
	}, 1, gateway.EventReady)
}

type fakeDialer struct {
	mu     sync.Mutex
	count  int
	dialed chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeConn, 8)}
}

func (d *fakeDialer) Dial(context.Context, string, http.Header) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
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
		t.Fatal("client did not dial")
		return nil
	}
}

type postCall struct {
	path    string
	payload json.RawMessage
}

// fakeResources 记录 Post 调用
type fakeResources struct {
	mu      sync.Mutex
	posts   []postCall
	fetched []string
	postErr error
}

func (r *fakeResources) Fetch(_ context.Context, resourceType, id string) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetched = append(r.fetched, resourceType+"/"+id)
	return json.RawMessage(`{"id":"` + id + `"}`), nil
}

func (r *fakeResources) Post(_ context.Context, path string, payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.postErr != nil {
		return nil, r.postErr
	}
	r.posts = append(r.posts, postCall{path: path, payload: raw})
	return json.RawMessage(`{}`), nil
}

func (r *fakeResources) calls() []postCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]postCall(nil), r.posts...)
}

// fakeReporter 记录上报的错误
type fakeReporter struct {
	mu      sync.Mutex
	tags    []map[string]string
	errs    []error
	flushed int
}

func (r *fakeReporter) CaptureError(_ context.Context, err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

func (r *fakeReporter) Flush(time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed++
	return true
}

func (r *fakeReporter) captured() []map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]string(nil), r.tags...)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Gateway.Token = "secret-token"
	cfg.Gateway.HeartbeatJitter = false
	cfg.ShutdownTimeout = time.Second
	return cfg
}

// connect 创建客户端并完成握手
func connect(t *testing.T, cfg *Config, opts ...Option) (*Client, *fakeConn) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	dialer := newFakeDialer()
	c, err := New(cfg, append(opts, WithDialer(dialer))...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background()) }()

	conn := dialer.next(t)
	conn.handshake(t)
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Connect did not return")
	}
	return c, conn
}

func interactionPayload(id, name string, typ CommandType, options []map[string]any, extra map[string]any) map[string]any {
	data := map[string]any{"id": "cmd-" + name, "name": name, "type": int(typ)}
	if len(options) > 0 {
		data["options"] = options
	}
	for k, v := range extra {
		data[k] = v
	}
	return map[string]any{
		"id":             id,
		"application_id": "app-1",
		"type":           interactionApplicationCommand,
		"token":          "interaction-token",
		"channel_id":     "chan-1",
		"member":         map[string]any{"user": map[string]any{"id": "7", "username": "alice"}},
		"data":           data,
	}
}

func (r *fakeReporter) flushCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushed
}
