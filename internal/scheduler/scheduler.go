// Package scheduler runs a task on a fixed interval with at most one
// run in flight.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Task is one unit of periodic work.
type Task func(ctx context.Context) error

// Scheduler invokes its task immediately on Start and then on every
// tick.  A tick that arrives while the previous run is still going is
// dropped, not queued: the next tick covers whatever was missed.
type Scheduler struct {
	name     string
	interval time.Duration
	task     Task
	logger   *slog.Logger

	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
}

func New(name string, interval time.Duration, task Task, logger *slog.Logger) *Scheduler {
	return &Scheduler{name: name, interval: interval, task: task, logger: logger.With(slog.String("component", name))}
}

// Start blocks, running the task until ctx is cancelled.  Runs are
// started on their own goroutine so a slow run never delays the ticker.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	go s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			go s.RunOnce(ctx)
		}
	}
}

// RunOnce executes the task unless a run is already in flight, in
// which case it returns false immediately.  The guard is released when
// the task returns, fails or panics.  Errors and panics are logged and
// never propagate.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Debug("previous run still in flight, skipping")
		return false
	}
	defer s.running.Store(false)

	s.runs.Add(1)
	start := time.Now()
	if err := s.safeRun(ctx); err != nil {
		s.logger.Error("run failed", slog.Any("error", err), slog.Duration("took", time.Since(start)))
		return true
	}
	s.logger.Debug("run finished", slog.Duration("took", time.Since(start)))
	return true
}

func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.task(ctx)
}

// Running reports whether a run is in flight.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Stats returns the number of executed and skipped runs.
func (s *Scheduler) Stats() (runs, skipped int64) { return s.runs.Load(), s.skipped.Load() }
