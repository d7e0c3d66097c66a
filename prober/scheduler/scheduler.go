// Package scheduler drives measurement cycles at a fixed interval, one at a time.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/yaron8/tx-latency-prober/metrics"
	"github.com/yaron8/tx-latency-prober/telemetrics"
)

// Cycle is one measurement.
type Cycle interface {
	RunCycle(ctx context.Context) telemetrics.MeasurementRecord
}

type Scheduler struct {
	cycle    Cycle
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Collector

	// runLock is held for the whole of a cycle; the client session is not
	// safe for overlapping transfers.
	runLock sync.Mutex
	running sync.WaitGroup
}

func New(cycle Cycle, interval time.Duration, logger *slog.Logger, m *metrics.Collector) *Scheduler {
	return &Scheduler{
		cycle:    cycle,
		interval: interval,
		logger:   logger,
		metrics:  m,
	}
}

// Run starts a cycle on every tick until ctx is cancelled, then waits for the
// running cycle. A tick that fires while a cycle is still running is skipped.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Scheduler starting", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopping, waiting for running cycle", "reason", ctx.Err())
			s.running.Wait()
			return
		case <-ticker.C:
		}

		if !s.runLock.TryLock() {
			s.metrics.IncSkippedTick()
			s.logger.Warn("Previous cycle still running, skipping tick")
			continue
		}

		s.running.Add(1)
		go func() {
			defer s.running.Done()
			defer s.runLock.Unlock()
			s.runSafely(ctx)
		}()
	}
}

// RunOnce runs a single cycle, waiting for any cycle already in progress.
func (s *Scheduler) RunOnce(ctx context.Context) (telemetrics.MeasurementRecord, error) {
	s.runLock.Lock()
	defer s.runLock.Unlock()
	return s.runSafely(ctx)
}

// runSafely keeps a panicking cycle from taking the scheduler down.
func (s *Scheduler) runSafely(ctx context.Context) (record telemetrics.MeasurementRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("cycle panicked: %v", r)
			s.logger.Error("Cycle panicked", "panic", r)
		}
	}()
	return s.cycle.RunCycle(ctx), nil
}
