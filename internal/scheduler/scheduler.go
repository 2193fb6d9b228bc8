// Package scheduler runs the engine's recurring jobs on independent tickers.
// A job that is still running when its ticker fires is skipped, not queued;
// the next tick re-evaluates from current data.
package scheduler

import (
	"context"
	"io"
	"log"
	"sync"
	"time"
)

// Job is one recurring task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	// RunOnStart runs the job immediately when the loop starts, before the
	// first tick.
	RunOnStart bool
}

// JobStatus is a point-in-time view of one job for the status endpoint.
type JobStatus struct {
	Name      string    `json:"name"`
	Interval  string    `json:"interval"`
	Running   bool      `json:"running"`
	Runs      uint64    `json:"runs"`
	Skips     uint64    `json:"skips"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

type jobState struct {
	job Job

	mu      sync.Mutex
	running bool
	runs    uint64
	skips   uint64
	lastRun time.Time
	lastErr error
}

// Scheduler owns a set of recurring jobs.
type Scheduler struct {
	jobs   []*jobState
	logger *log.Logger
	wg     sync.WaitGroup
}

// New creates a scheduler.
func New(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scheduler{logger: logger}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, &jobState{job: job})
}

// Start launches one loop per job and returns. The loops stop when ctx is
// cancelled; Wait blocks until they have all returned.
func (s *Scheduler) Start(ctx context.Context) {
	for _, state := range s.jobs {
		s.wg.Add(1)
		go func(state *jobState) {
			defer s.wg.Done()
			s.runLoop(ctx, state)
		}(state)
	}
}

// Wait blocks until every job loop has stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Status returns a snapshot of every job.
func (s *Scheduler) Status() []JobStatus {
	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, state := range s.jobs {
		state.mu.Lock()
		status := JobStatus{
			Name:     state.job.Name,
			Interval: state.job.Interval.String(),
			Running:  state.running,
			Runs:     state.runs,
			Skips:    state.skips,
			LastRun:  state.lastRun,
		}
		if state.lastErr != nil {
			status.LastError = state.lastErr.Error()
		}
		state.mu.Unlock()
		statuses = append(statuses, status)
	}
	return statuses
}

func (s *Scheduler) runLoop(ctx context.Context, state *jobState) {
	s.logger.Printf("starting %s (interval: %v)", state.job.Name, state.job.Interval)

	if state.job.RunOnStart {
		s.runOnce(ctx, state)
	}

	ticker := time.NewTicker(state.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, state)
		}
	}
}

// runOnce executes the job unless a previous run is still in flight.
func (s *Scheduler) runOnce(ctx context.Context, state *jobState) {
	state.mu.Lock()
	if state.running {
		state.skips++
		state.mu.Unlock()
		s.logger.Printf("%s still running, skipping tick", state.job.Name)
		return
	}
	state.running = true
	state.mu.Unlock()

	start := time.Now()
	err := state.job.Run(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Printf("%s failed after %v: %v", state.job.Name, time.Since(start), err)
	}

	state.mu.Lock()
	state.running = false
	state.runs++
	state.lastRun = time.Now()
	state.lastErr = err
	state.mu.Unlock()
}
