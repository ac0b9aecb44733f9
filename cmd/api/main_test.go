package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainingServer returns from Start as soon as Shutdown begins, like
// http.Server, and finishes Shutdown later.
type drainingServer struct {
	stopping chan struct{}
	closed   chan struct{}
	drained  atomic.Bool
	startErr error
}

func newDrainingServer() *drainingServer {
	return &drainingServer{stopping: make(chan struct{}), closed: make(chan struct{})}
}

func (s *drainingServer) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	<-s.stopping
	return http.ErrServerClosed
}

func (s *drainingServer) Shutdown(ctx context.Context) error {
	close(s.stopping)
	time.Sleep(50 * time.Millisecond)
	s.drained.Store(true)
	close(s.closed)
	return nil
}

func (s *drainingServer) WaitClosed(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return nil
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestServe_WaitsForShutdownToDrain(t *testing.T) {
	srv := newDrainingServer()
	stop := make(chan os.Signal, 1)
	var stopped atomic.Bool

	done := make(chan error, 1)
	go func() { done <- serve(srv, stop, func() { stopped.Store(true) }, quietLogger()) }()

	stop <- syscall.SIGTERM
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after shutdown")
	}
	assert.True(t, srv.drained.Load(), "serve returned before shutdown finished")
	assert.True(t, stopped.Load())
}

func TestServe_ReturnsStartError(t *testing.T) {
	srv := newDrainingServer()
	srv.startErr = errors.New("listen tcp :8000: address already in use")

	err := serve(srv, make(chan os.Signal), func() {}, quietLogger())
	assert.EqualError(t, err, "listen tcp :8000: address already in use")
}
