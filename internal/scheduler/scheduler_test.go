package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestFireRunsBody(t *testing.T) {
	var seen []uint32
	s := New(time.Hour, func(_ context.Context, it uint32) { seen = append(seen, it) })

	if !s.Fire(context.Background()) || !s.Fire(context.Background()) {
		t.Fatal("expected both firings to run")
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("iterations = %v, want [1 2]", seen)
	}
}

func TestFireDropsOverlappingTicks(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	s := New(time.Hour, func(context.Context, uint32) {
		runs.Add(1)
		close(started)
		<-release
	})

	done := make(chan bool)
	go func() { done <- s.Fire(context.Background()) }()
	<-started

	if s.Fire(context.Background()) {
		t.Error("overlapping firing should be dropped")
	}
	close(release)
	if !<-done {
		t.Error("first firing should report it ran")
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
	if s.busy.Load() {
		t.Error("tick mutex not released")
	}
}

func TestFireRecoversPanics(t *testing.T) {
	calls := 0
	s := New(time.Hour, func(context.Context, uint32) {
		calls++
		if calls == 1 {
			panic("boom")
		}
	})
	if !s.Fire(context.Background()) {
		t.Fatal("panicking firing still counts as run")
	}
	if !s.Fire(context.Background()) {
		t.Fatal("tick mutex should be released after a panic")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestShutdownStopsFiring(t *testing.T) {
	var runs atomic.Int32
	s := New(10*time.Millisecond, func(context.Context, uint32) { runs.Add(1) })

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("scheduler did not fire")
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Shutdown()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run after shutdown = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
	if s.Fire(context.Background()) {
		t.Error("Fire after shutdown should not run")
	}
	if !s.ShuttingDown() {
		t.Error("expected shutdown flag")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(time.Hour, func(context.Context, uint32) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestFileLockSingleInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "usherbot.lock")
	first := NewFileLock(path)
	if err := first.Acquire(); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	second := NewFileLock(path)
	if err := second.Acquire(); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire = %v, want ErrLocked", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := second.Acquire(); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = second.Release()
}
