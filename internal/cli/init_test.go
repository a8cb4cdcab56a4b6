package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"ledger/internal/config"
	"ledger/internal/log"
)

type fakeServer struct {
	listenErr error
	stop      chan struct{}
	shutdowns int
}

func newFakeServer(listenErr error) *fakeServer {
	return &fakeServer{listenErr: listenErr, stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdowns++
	if f.listenErr == nil {
		close(f.stop)
	}
	return nil
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv := newFakeServer(nil)
	ctx, cancel := context.WithCancel(context.Background())

	hookCalled := false
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, log.Discard(), srv, time.Second, func(context.Context) error {
			hookCalled = true
			return nil
		})
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	if srv.shutdowns != 1 || !hookCalled {
		t.Errorf("shutdowns = %d, hook called = %v", srv.shutdowns, hookCalled)
	}
}

func TestServe_ListenFailure(t *testing.T) {
	boom := errors.New("address already in use")
	srv := newFakeServer(boom)

	err := Serve(context.Background(), log.Discard(), srv, time.Second)
	if !errors.Is(err, boom) {
		t.Fatalf("Serve() error = %v, want %v", err, boom)
	}
	if srv.shutdowns != 1 {
		t.Errorf("expected shutdown after listen failure, got %d", srv.shutdowns)
	}
}

func TestServe_JoinsHookErrors(t *testing.T) {
	srv := newFakeServer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hookErr := errors.New("worker stop failed")
	err := Serve(ctx, log.Discard(), srv, time.Second, func(context.Context) error { return hookErr })
	if !errors.Is(err, hookErr) {
		t.Errorf("Serve() error = %v, want hook error", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&config.Config{LogLevel: "warn"}, log.ComponentAPI, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "component=api") {
		t.Errorf("unexpected output: %q", out)
	}
}
