package server

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubService struct {
	name    string
	started atomic.Bool
	stopped atomic.Bool

	mu        sync.Mutex
	stopOrder *[]string
}

func (s *stubService) Start() error {
	s.started.Store(true)
	for !s.stopped.Load() {
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

func (s *stubService) Stop() {
	s.stopped.Store(true)
	if s.stopOrder != nil {
		s.mu.Lock()
		*s.stopOrder = append(*s.stopOrder, s.name)
		s.mu.Unlock()
	}
}

func TestLifecycleStopsServicesInReverseOrder(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))

	var stopOrder []string
	listener := &stubService{name: "listener", stopOrder: &stopOrder}
	db := &stubService{name: "db", stopOrder: &stopOrder}

	lc.Add("db", db)
	lc.Add("listener", listener)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- lc.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return db.started.Load() && listener.started.Load()
	}, 2*time.Second, 10*time.Millisecond, "services did not start")

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	assert.True(t, db.stopped.Load())
	assert.True(t, listener.stopped.Load())
	assert.Equal(t, []string{"listener", "db"}, stopOrder, "stop order must reverse start order")
}

func TestLifecycleShutsDownOnServiceError(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))

	healthy := &stubService{name: "healthy"}
	lc.Add("healthy", healthy)
	lc.Add("broken", &FuncService{
		StartFn: func() error { return assert.AnError },
		StopFn:  func() {},
	})

	done := make(chan error, 1)
	go func() {
		done <- lc.Run(context.Background())
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down after service error")
	}
	assert.True(t, healthy.stopped.Load())
}

func TestFuncService(t *testing.T) {
	var started, stopped bool

	svc := &FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() {
			stopped = true
		},
	}

	require.NoError(t, svc.Start())
	assert.True(t, started)

	svc.Stop()
	assert.True(t, stopped)
}
