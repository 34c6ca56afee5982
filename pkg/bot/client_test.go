package bot

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/dispatch"
	"github.com/lk2023060901/gatecord/pkg/gateway"
	"github.com/lk2023060901/gatecord/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestClientEvents(t *testing.T) {
	cfg := testConfig()
	dialer := newFakeDialer()
	c, err := New(cfg, WithDialer(dialer))
	require.NoError(t, err)
	defer c.Close()

	var mu sync.Mutex
	var got []string
	c.On(EventMessageCreate, func(_ context.Context, ev *dispatch.Event) error {
		var msg struct {
			Content string `json:"content"`
		}
		if err := ev.Decode(&msg); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, msg.Content)
		mu.Unlock()
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background()) }()
	conn := dialer.next(t)
	conn.handshake(t)
	require.NoError(t, <-errCh)

	conn.push(t, gateway.OpDispatch, map[string]any{"content": "one"}, 2, EventMessageCreate)
	conn.push(t, gateway.OpDispatch, map[string]any{"content": "two"}, 3, EventMessageCreate)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, []string{"one", "two"}, got)
	assert.Equal(t, gateway.StatusConnected, c.Session().State().Status)
	assert.Equal(t, "app-1", c.ApplicationID())

	assert.True(t, errors.Is(c.Connect(context.Background()), ErrAlreadyConnected))
}

func TestCommandRouting(t *testing.T) {
	resources := &fakeResources{}
	cfg := testConfig()
	dialer := newFakeDialer()
	c, err := New(cfg, WithDialer(dialer), WithResourceClient(resources))
	require.NoError(t, err)
	defer c.Close()

	called := make(chan *CommandContext, 1)
	require.NoError(t, c.Command(
		NewCommand("foo").Option(StringOption("message").Required(), IntegerOption("times")),
		func(ctx context.Context, cmd *CommandContext) error {
			called <- cmd
			return cmd.Respond(ctx, "pong")
		},
	))
	unknown := make(chan struct{}, 2)
	c.On(EventInteractionCreate, func(context.Context, *dispatch.Event) error {
		unknown <- struct{}{}
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background()) }()
	conn := dialer.next(t)
	conn.handshake(t)
	require.NoError(t, <-errCh)

	conn.push(t, gateway.OpDispatch, interactionPayload("int-0", "nope", CommandChatInput, nil, nil), 2, EventInteractionCreate)
	conn.push(t, gateway.OpDispatch, interactionPayload("int-1", "foo", CommandChatInput, []map[string]any{
		{"name": "message", "type": int(OptionString), "value": "hi"},
		{"name": "times", "type": int(OptionInteger), "value": 3},
	}, nil), 3, EventInteractionCreate)

	var cmd *CommandContext
	select {
	case cmd = <-called:
	case <-time.After(waitTimeout):
		t.Fatal("command handler not called")
	}
	assert.Equal(t, "foo", cmd.Name)
	assert.Equal(t, "int-1", cmd.ID)
	msg, ok := cmd.String("message")
	assert.True(t, ok)
	assert.Equal(t, "hi", msg)
	times, ok := cmd.Int("times")
	assert.True(t, ok)
	assert.Equal(t, int64(3), times)
	_, ok = cmd.Bool("missing")
	assert.False(t, ok)
	require.NotNil(t, cmd.Invoker)
	assert.Equal(t, "alice", cmd.Invoker.Username)

	c.Dispatcher().Wait()
	assert.Len(t, unknown, 2)
	assert.Len(t, called, 0)

	calls := resources.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/interactions/int-1/interaction-token/callback", calls[0].path)
	assert.JSONEq(t, `{"type":4,"data":{"content":"pong"}}`, string(calls[0].payload))
	assert.True(t, errors.Is(cmd.Respond(context.Background(), "again"), ErrAlreadyResponded))
}

func TestContextMenuTargets(t *testing.T) {
	in := &interaction{ID: "1", Type: interactionApplicationCommand}
	in.Data.Name = "info"
	in.Data.Type = CommandUser
	in.Data.TargetID = "99"
	in.Data.Resolved.Users = map[string]User{"99": {ID: "99", Username: "bob", GlobalName: "Bob B"}}

	cmd := newCommandContext(in, nil)
	u, ok := cmd.TargetUser()
	require.True(t, ok)
	assert.Equal(t, "Bob B", u.DisplayName())
	_, ok = cmd.TargetMessage()
	assert.False(t, ok)
	assert.True(t, errors.Is(cmd.Respond(context.Background(), "x"), ErrNoResourceClient))

	in.Data.Type = CommandMessage
	in.Data.Resolved.Messages = map[string]Message{"99": {ID: "99", Content: "quoted"}}
	m, ok := newCommandContext(in, nil).TargetMessage()
	require.True(t, ok)
	assert.Equal(t, "quoted", m.Content)
}

func TestSyncCommandsOnReady(t *testing.T) {
	resources := &fakeResources{}
	cfg := testConfig()
	cfg.SyncCommands = true
	dialer := newFakeDialer()
	c, err := New(cfg, WithDialer(dialer), WithResourceClient(resources))
	require.NoError(t, err)
	defer c.Close()

	noop := func(context.Context, *CommandContext) error { return nil }
	require.NoError(t, c.Command(NewCommand("hello"), noop))
	require.NoError(t, c.Command(NewUserCommand("info"), noop))

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background()) }()
	dialer.next(t).handshake(t)
	require.NoError(t, <-errCh)

	c.Dispatcher().Wait()
	calls := resources.calls()
	require.Len(t, calls, 2)
	for _, call := range calls {
		assert.Equal(t, "/applications/app-1/commands", call.path)
	}
	assert.JSONEq(t, `{"name":"hello","type":1,"description":"hello"}`, string(calls[0].payload))
}

func TestHandlerFailureReported(t *testing.T) {
	reporter := &fakeReporter{}
	c, conn := connect(t, nil, WithErrorReporter(reporter))

	c.On("BOOM", func(context.Context, *dispatch.Event) error {
		return errors.New("boom")
	})
	conn.push(t, gateway.OpDispatch, map[string]any{}, 2, "BOOM")

	require.Eventually(t, func() bool { return len(reporter.captured()) == 1 }, waitTimeout, 5*time.Millisecond)
	tags := reporter.captured()[0]
	assert.Equal(t, "dispatch", tags["component"])
	assert.Equal(t, "BOOM", tags["event"])

	require.NoError(t, c.Close())
	assert.Equal(t, 1, reporter.flushCount())
}

func TestClientCloseIdempotent(t *testing.T) {
	c, _ := connect(t, nil)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, gateway.StatusClosed, c.Session().State().Status)

	err := c.UpdatePresence(context.Background(), Presence{Activities: []Activity{NewActivity("x", ActivityGame)}})
	assert.True(t, errors.Is(err, gateway.ErrSessionClosed))
}

func TestCloseBeforeConnect(t *testing.T) {
	c, err := New(testConfig(), WithDialer(newFakeDialer()))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.True(t, errors.Is(c.Connect(context.Background()), ErrClosed))
}

func TestRunStopsOnContext(t *testing.T) {
	dialer := newFakeDialer()
	c, err := New(testConfig(), WithDialer(dialer))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	dialer.next(t).handshake(t)
	require.Eventually(t, func() bool {
		return c.Session().State().Status == gateway.StatusConnected
	}, waitTimeout, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, gateway.StatusClosed, c.Session().State().Status)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	cfg := testConfig()
	cfg.Gateway.Token = ""
	_, err = New(cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNewLeavesConfigUntouched(t *testing.T) {
	cfg := testConfig()
	cfg.ShutdownTimeout = 0
	cfg.Gateway.Reconnect.InitialDelay = 0
	cfg.Gateway.Presence = &Presence{}

	c, err := New(cfg, WithDialer(newFakeDialer()))
	require.NoError(t, err)
	defer c.Close()

	assert.Zero(t, cfg.ShutdownTimeout)
	assert.Zero(t, cfg.Gateway.Reconnect.InitialDelay)
	assert.Empty(t, cfg.Gateway.Presence.Status)
	assert.Nil(t, cfg.Gateway.Presence.Activities)
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	connect(t, nil, WithRegisterer(reg))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestTracerProviderWired(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c, conn := connect(t, nil, WithTracerProvider(tp))
	c.On("PING", func(context.Context, *dispatch.Event) error { return nil })
	conn.push(t, gateway.OpDispatch, map[string]any{}, 2, "PING")

	require.Eventually(t, func() bool {
		for _, s := range rec.Ended() {
			if s.Name() == "dispatch.handler" {
				return true
			}
		}
		return false
	}, waitTimeout, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool {
		for _, s := range rec.Ended() {
			if s.Name() == "gateway.connection" {
				return true
			}
		}
		return false
	}, waitTimeout, 5*time.Millisecond)
	for _, s := range rec.Ended() {
		assert.Equal(t, tracerName, s.InstrumentationScope().Name)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTokenRedacted(t *testing.T) {
	out := &lockedBuffer{}
	cfg := logger.DefaultConfig()
	cfg.Format = logger.JSONFormat
	cfg.Level = logger.DebugLevel
	base, err := logger.New(cfg, logger.WithOutput(out))
	require.NoError(t, err)

	c, _ := connect(t, nil, WithLogger(base))
	c.logger.Info("identify payload", "token", c.config.Gateway.Token)
	require.NoError(t, c.Close())

	logs := out.String()
	assert.Contains(t, logs, "identify payload")
	assert.NotContains(t, logs, "secret-token")
}
