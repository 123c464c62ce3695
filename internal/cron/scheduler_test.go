package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ibisek/ogn-logbook/pkg/logger"
)

type countingJob struct {
	interval time.Duration
	runs     atomic.Int64
}

func (j *countingJob) Name() string            { return "counting" }
func (j *countingJob) Interval() time.Duration { return j.interval }
func (j *countingJob) Run(ctx context.Context) { j.runs.Add(1) }

func TestSchedulerRunsAndStops(t *testing.T) {
	job := &countingJob{interval: 10 * time.Millisecond}
	s := NewScheduler(logger.NewNop(), job)

	s.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	count := job.runs.Load()
	if count == 0 {
		t.Fatal("job never ran")
	}

	time.Sleep(50 * time.Millisecond)
	if got := job.runs.Load(); got != count {
		t.Errorf("job ran %d more times after Stop", got-count)
	}
}
