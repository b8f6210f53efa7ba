package sched

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"jobwatch/internal/runner"
)

// countingRunner records how many full runs were triggered.
type countingRunner struct {
	calls   atomic.Int32
	results []runner.Result
}

func (r *countingRunner) RunAll(_ context.Context) []runner.Result {
	r.calls.Add(1)
	return r.results
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_ImmediateCycleThenShutdown(t *testing.T) {
	cr := &countingRunner{}
	s := New(cr, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// The first cycle runs without waiting for a tick.
	deadline := time.After(2 * time.Second)
	for cr.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no immediate run before the first tick")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on cancel, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not shut down after cancel")
	}
	if c := cr.calls.Load(); c != 1 {
		t.Errorf("runs = %d, want 1 (one immediate cycle)", c)
	}
}

func TestRun_TicksOnInterval(t *testing.T) {
	cr := &countingRunner{}
	s := New(cr, 20*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for cr.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before deadline, want at least 3", cr.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestRun_FailedSourceDoesNotStopLoop(t *testing.T) {
	cr := &countingRunner{results: []runner.Result{
		{Source: "bad", State: runner.StateFetching, Outcome: runner.OutcomeFailed, Err: errors.New("boom")},
	}}
	s := New(cr, 20*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for cr.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("loop stopped after a failed source run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
