// Package cron runs the periodic reconciliation jobs: take-off refinement,
// stale-state reaping and flown-distance computation. Each job runs to
// completion before its next tick is scheduled, so runs never overlap.
package cron

import (
	"context"
	"sync"
	"time"

	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// Job is one periodic task.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context)
}

// Scheduler drives a set of jobs, one goroutine each.
type Scheduler struct {
	jobs   []Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logger.Logger
}

// NewScheduler creates a scheduler for the given jobs.
func NewScheduler(log *logger.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		logger: log.Named("cron"),
	}
}

// Start launches every job's tick loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, job)
	}
}

// Stop cancels the tick loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	defer s.wg.Done()

	s.logger.Info("Starting job",
		logger.String("name", job.Name()),
		logger.Duration("interval", job.Interval()))

	ticker := time.NewTicker(job.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping job", logger.String("name", job.Name()))
			return
		case <-ticker.C:
			job.Run(ctx)
		}
	}
}
