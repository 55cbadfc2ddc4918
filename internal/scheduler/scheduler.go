// Package scheduler runs the orchestration tick: a fixed-period loop whose
// firings never overlap. A firing that finds the previous one still running
// is dropped, not queued.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TickFunc is the body of one firing. iteration identifies the firing in
// logs.
type TickFunc func(ctx context.Context, iteration uint32)

// Scheduler fires a TickFunc on a fixed period.
type Scheduler struct {
	interval time.Duration
	fn       TickFunc

	busy         atomic.Bool
	iteration    atomic.Uint32
	shutdown     atomic.Bool
	shutdownOnce sync.Once
	done         chan struct{}
	wg           sync.WaitGroup
}

// New creates a Scheduler. A non-positive interval defaults to five seconds.
func New(interval time.Duration, fn TickFunc) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{
		interval: interval,
		fn:       fn,
		done:     make(chan struct{}),
	}
}

// Shutdown sets the shutdown flag. Later firings return immediately and
// Run exits once in-flight work finishes.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.shutdown.Store(true)
		close(s.done)
	})
}

// ShuttingDown reports whether Shutdown was called.
func (s *Scheduler) ShuttingDown() bool {
	return s.shutdown.Load()
}

// Done is closed by Shutdown.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run fires immediately and then every interval, each firing on its own
// goroutine. It blocks until ctx is cancelled or Shutdown is called, then
// waits for in-flight firings.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Scheduler started", "tick", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			slog.Info("Scheduler stopped")
			return ctx.Err()
		case <-s.done:
			s.wg.Wait()
			slog.Info("Scheduler stopped", "reason", "shutdown")
			return nil
		case <-ticker.C:
			s.spawn(ctx)
		}
	}
}

func (s *Scheduler) spawn(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Fire(ctx)
	}()
}

// Fire runs one firing synchronously and reports whether the tick body ran.
// Panics in the body are logged and swallowed.
func (s *Scheduler) Fire(ctx context.Context) (ran bool) {
	if s.shutdown.Load() {
		return false
	}
	iteration := s.iteration.Add(1)
	if !s.busy.CompareAndSwap(false, true) {
		slog.Warn("Tick busy, skipping", "iteration", fmt.Sprintf("%04X", iteration))
		return false
	}
	defer s.busy.Store(false)
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Tick failed", "iteration", fmt.Sprintf("%04X", iteration), "panic", p)
		}
	}()
	s.fn(ctx, iteration)
	return true
}
