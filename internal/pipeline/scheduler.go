// Package pipeline runs counting jobs end to end: it owns the FIFO job
// queue, the worker pool, and the per-job decode → detect → track →
// aggregate loop.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/eyu/animal-counter/internal/logger"
)

// ErrSchedulerStopped is returned by Enqueue once Stop has been called.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// Task is one unit of queued work.
type Task func(ctx context.Context)

// Scheduler feeds queued tasks to a fixed pool of workers in submission
// order. The queue is unbounded, so Enqueue never blocks and, until Stop,
// never rejects; backpressure shows up as queue depth, not as submit
// failures.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with the given number of workers and
// starts them. Worker count is clamped to at least one.
func NewScheduler(ctx context.Context, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{}
	s.cond = sync.NewCond(&s.mu)

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker(ctx, i)
	}
	return s
}

// Enqueue appends a task to the queue. It is safe to call from any
// goroutine and returns immediately. After Stop it returns
// ErrSchedulerStopped instead of silently dropping the task.
func (s *Scheduler) Enqueue(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	s.queue = append(s.queue, task)
	s.cond.Signal()
	return nil
}

// Depth returns the number of tasks waiting for a worker.
func (s *Scheduler) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stop prevents new tasks from being accepted and waits for the workers to
// finish what they have already started. Tasks still waiting in the queue
// are not run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	workerCtx := logger.WithField(ctx, logger.FieldWorkerID, id)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.runTask(workerCtx, task)
	}
}

// runTask isolates a task so a panic in one job cannot take down the
// worker pool.
func (s *Scheduler) runTask(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.CtxError(ctx, "recovered panic in job task: %v", r)
		}
	}()
	task(ctx)
}
