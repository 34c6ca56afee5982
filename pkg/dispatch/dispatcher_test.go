package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := New(nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(time.Second) })
	return d
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s)
}

func (c *callLog) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func TestDispatchRegistrationOrder(t *testing.T) {
	d := newTestDispatcher(t)
	log := &callLog{}

	for _, name := range []string{"first", "second", "third"} {
		name := name
		d.Register("MESSAGE_CREATE", func(ctx context.Context, ev *Event) error {
			log.add(name)
			return nil
		})
	}

	d.Dispatch("MESSAGE_CREATE", json.RawMessage(`{}`))
	d.Wait()
	assert.Equal(t, []string{"first", "second", "third"}, log.get())
}

func TestDispatchFailingHandlerDoesNotStopOthers(t *testing.T) {
	var failures []error
	var mu sync.Mutex
	d := newTestDispatcher(t, WithFailureHook(func(ev *Event, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, err)
	}))
	log := &callLog{}

	d.Register("READY", func(ctx context.Context, ev *Event) error {
		log.add("error")
		return errors.New("boom")
	})
	d.Register("READY", func(ctx context.Context, ev *Event) error {
		log.add("panic")
		panic("kaboom")
	})
	d.Register("READY", func(ctx context.Context, ev *Event) error {
		log.add("ok")
		return nil
	})
	d.Register("GUILD_CREATE", func(ctx context.Context, ev *Event) error {
		log.add("guild")
		return nil
	})

	d.Dispatch("READY", nil)
	d.Wait()
	d.Dispatch("GUILD_CREATE", nil)
	d.Wait()

	assert.Equal(t, []string{"error", "panic", "ok", "guild"}, log.get())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 2)
	for _, err := range failures {
		assert.True(t, errors.Is(err, ErrHandlerFailure))
	}
	assert.Contains(t, failures[1].Error(), "kaboom")
}

func TestDispatchPreservesOrderPerEvent(t *testing.T) {
	d := newTestDispatcher(t)

	var mu sync.Mutex
	var got []int
	d.Register("MESSAGE_CREATE", func(ctx context.Context, ev *Event) error {
		var n int
		assert.NoError(t, ev.Decode(&n))
		if n%7 == 0 {
			time.Sleep(time.Millisecond)
		}
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
		return nil
	})

	const total = 200
	for i := 0; i < total; i++ {
		raw, _ := json.Marshal(i)
		d.Dispatch("MESSAGE_CREATE", raw)
	}
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, total)
	for i := 0; i < total; i++ {
		assert.Equal(t, i, got[i])
	}
}

func TestDispatchDoesNotBlockCaller(t *testing.T) {
	d := newTestDispatcher(t)
	release := make(chan struct{})
	var fast atomic.Int32

	d.Register("SLOW", func(ctx context.Context, ev *Event) error {
		<-release
		return nil
	})
	d.Register("FAST", func(ctx context.Context, ev *Event) error {
		fast.Add(1)
		return nil
	})

	start := time.Now()
	d.Dispatch("SLOW", nil)
	d.Dispatch("SLOW", nil)
	d.Dispatch("FAST", nil)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	require.Eventually(t, func() bool { return fast.Load() == 1 }, time.Second, time.Millisecond,
		"a slow event name must not stall other event names")
	close(release)
	d.Wait()
}

func TestDispatchWildcardAndUnregistered(t *testing.T) {
	d := newTestDispatcher(t)
	log := &callLog{}

	d.Dispatch("NOBODY_LISTENS", nil)
	d.Wait()

	d.Register(AnyEvent, func(ctx context.Context, ev *Event) error {
		log.add("any:" + ev.Name)
		return nil
	})
	d.Register("TYPING_START", func(ctx context.Context, ev *Event) error {
		log.add("typing")
		return nil
	})

	d.Dispatch("TYPING_START", nil)
	d.Wait()
	d.Dispatch("PRESENCE_UPDATE", nil)
	d.Wait()

	assert.Equal(t, []string{"typing", "any:TYPING_START", "any:PRESENCE_UPDATE"}, log.get())
}

func TestHandleDecodesTypedData(t *testing.T) {
	d := newTestDispatcher(t)

	type message struct {
		Content string `json:"content"`
	}
	got := make(chan string, 1)
	Handle(d, "MESSAGE_CREATE", func(ctx context.Context, m *message) error {
		got <- m.Content
		return nil
	})

	d.Dispatch("MESSAGE_CREATE", json.RawMessage(`{"content":"ping"}`))
	d.Wait()
	assert.Equal(t, "ping", <-got)
	assert.Equal(t, 1, d.Handlers("MESSAGE_CREATE"))
}

func TestDispatcherClose(t *testing.T) {
	d, err := New(&Config{PoolSize: 4})
	require.NoError(t, err)

	var count atomic.Int32
	d.Register("E", func(ctx context.Context, ev *Event) error {
		time.Sleep(5 * time.Millisecond)
		count.Add(1)
		return nil
	})
	for i := 0; i < 5; i++ {
		d.Dispatch("E", nil)
	}

	require.NoError(t, d.Close(time.Second))
	assert.Equal(t, int32(5), count.Load(), "queued events are drained before close returns")

	d.Dispatch("E", nil)
	d.Wait()
	assert.Equal(t, int32(5), count.Load())
	assert.NoError(t, d.Close(time.Second))
}

func TestDispatcherCloseTimeout(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	release := make(chan struct{})
	d.Register("STUCK", func(ctx context.Context, ev *Event) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	d.Dispatch("STUCK", nil)

	err = d.Close(20 * time.Millisecond)
	assert.True(t, errors.Is(err, ErrDrainTimeout))
	close(release)
}
