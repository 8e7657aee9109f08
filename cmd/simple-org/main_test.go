package main

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

type blockingRunner struct {
	started  chan struct{}
	finished atomic.Bool
}

func (r *blockingRunner) Run(ctx context.Context) error {
	close(r.started)
	<-ctx.Done()
	// simulate an in-flight flush finishing after cancellation
	time.Sleep(50 * time.Millisecond)
	r.finished.Store(true)
	return ctx.Err()
}

func TestStartBackground_StopWaitsForRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	r := &blockingRunner{started: make(chan struct{})}

	stop := startBackground(context.Background(), r, logger)

	select {
	case <-r.started:
	case <-time.After(time.Second):
		t.Fatal("runner was not started")
	}

	stop()

	if !r.finished.Load() {
		t.Error("stop returned before Run finished")
	}
}

func TestStartBackground_ParentCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	r := &blockingRunner{started: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	stop := startBackground(ctx, r, logger)
	<-r.started
	cancel()

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not return after parent cancel")
	}
	if !r.finished.Load() {
		t.Error("Run did not finish")
	}
}
