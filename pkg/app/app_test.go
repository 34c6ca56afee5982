package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/gatecord/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeServer struct {
	name     string
	rec      *recorder
	startErr error
	graceful bool
}

func (s *fakeServer) Start() error {
	s.rec.add("start:" + s.name)
	return s.startErr
}

func (s *fakeServer) Stop() error {
	s.rec.add("stop:" + s.name)
	return nil
}

type gracefulServer struct{ fakeServer }

func (s *gracefulServer) GracefulStop() error {
	s.rec.add("graceful:" + s.name)
	return nil
}

type fakeCloser struct {
	name string
	rec  *recorder
	err  error
}

func (c *fakeCloser) Close() error {
	c.rec.add("close:" + c.name)
	return c.err
}

func newTestApp() *BaseApp {
	return NewBaseApp(WithName("test"), WithLogger(logger.NewNoop()), WithStopTimeout(time.Second))
}

func TestRunAndShutdown(t *testing.T) {
	rec := &recorder{}
	a := newTestApp()
	a.AppendServer(&fakeServer{name: "a", rec: rec}, &gracefulServer{fakeServer{name: "b", rec: rec}})
	a.AppendCloser(&fakeCloser{name: "first", rec: rec}, &fakeCloser{name: "second", rec: rec})

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run() }()

	require.Eventually(t, func() bool { return len(rec.list()) >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, a.Shutdown())
	require.NoError(t, <-errCh)

	calls := rec.list()
	assert.Equal(t, []string{"start:a", "start:b"}, calls[:2])
	assert.ElementsMatch(t, []string{"stop:a", "graceful:b"}, calls[2:4])
	assert.Equal(t, []string{"close:second", "close:first"}, calls[4:])

	assert.True(t, errors.Is(a.Run(), ErrAppAlreadyRunning))
	assert.NoError(t, a.Shutdown())
}

func TestTaskFailureStopsApp(t *testing.T) {
	rec := &recorder{}
	a := newTestApp()
	a.AppendCloser(&fakeCloser{name: "c", rec: rec})

	boom := errors.New("session failed")
	a.Go(func(ctx context.Context) error {
		return boom
	})
	a.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	err := a.Run()
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, []string{"close:c"}, rec.list())
	assert.Error(t, a.Context().Err())
}

func TestStartFailure(t *testing.T) {
	rec := &recorder{}
	a := newTestApp()
	startErr := errors.New("port in use")
	a.AppendServer(&fakeServer{name: "bad", rec: rec, startErr: startErr})

	err := a.Run()
	assert.True(t, errors.Is(err, startErr))
	assert.Contains(t, rec.list(), "stop:bad")
}

func TestShutdownCombinesCloserErrors(t *testing.T) {
	rec := &recorder{}
	a := newTestApp()
	errA, errB := errors.New("a"), errors.New("b")
	a.AppendCloser(&fakeCloser{name: "a", rec: rec, err: errA}, &fakeCloser{name: "b", rec: rec, err: errB})

	err := a.Shutdown()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errB))
	assert.Equal(t, []string{"close:b", "close:a"}, rec.list())
}

func TestNamedLogger(t *testing.T) {
	a := newTestApp()
	assert.NotNil(t, a.Logger("gateway"))

	l := logger.NewNoop()
	a.RegisterLogger("gateway", l)
	assert.Same(t, l, a.Logger("gateway"))
}
