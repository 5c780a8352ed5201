package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSchedulerRunsTasksInSubmissionOrder(t *testing.T) {
	sched := NewScheduler(context.Background(), 1)
	defer sched.Stop()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		i := i
		sched.Enqueue(func(ctx context.Context) {
			mu.Lock()
			order = append(order, i)
			if len(order) == 5 {
				close(done)
			}
			mu.Unlock()
		})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want FIFO", order)
		}
	}
}

func TestSchedulerEnqueueNeverBlocks(t *testing.T) {
	sched := NewScheduler(context.Background(), 1)
	defer sched.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	sched.Enqueue(func(ctx context.Context) {
		close(started)
		<-release
	})
	<-started

	// The single worker is busy; submissions must still return immediately.
	submitted := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sched.Enqueue(func(ctx context.Context) {})
		}
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a busy pool")
	}
	if sched.Depth() != 100 {
		t.Fatalf("depth = %d, want 100", sched.Depth())
	}
	close(release)
}

func TestSchedulerSurvivesPanickingTask(t *testing.T) {
	sched := NewScheduler(context.Background(), 1)
	defer sched.Stop()

	done := make(chan struct{})
	sched.Enqueue(func(ctx context.Context) {
		panic("detector blew up")
	})
	sched.Enqueue(func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker died after panic")
	}
}

func TestSchedulerStopWaitsForInFlight(t *testing.T) {
	sched := NewScheduler(context.Background(), 2)

	var finished bool
	var mu sync.Mutex
	started := make(chan struct{})
	sched.Enqueue(func(ctx context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		finished = true
		mu.Unlock()
	})
	<-started

	sched.Stop()

	mu.Lock()
	defer mu.Unlock()
	if !finished {
		t.Fatal("Stop returned before in-flight task finished")
	}
}

func TestSchedulerRejectsEnqueueAfterStop(t *testing.T) {
	sched := NewScheduler(context.Background(), 1)
	sched.Stop()

	err := sched.Enqueue(func(ctx context.Context) {
		t.Error("task ran after Stop")
	})
	if !errors.Is(err, ErrSchedulerStopped) {
		t.Fatalf("err = %v, want ErrSchedulerStopped", err)
	}
}
