package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/memorymesh/logging"
)

// Task is a handle onto a scheduled background job. Done closes when the
// job finishes or is cancelled; Err is valid after Done.
type Task struct {
	done   chan struct{}
	timer  *time.Timer
	cancel context.CancelFunc

	mu        sync.Mutex
	err       error
	cancelled bool
}

// Done returns a channel closed when the task has finished or been
// cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task's failure, if any. Only meaningful after Done.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Cancel stops a pending task. A task already running is interrupted via
// its context; a task already finished is unaffected.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	t.mu.Unlock()

	if t.timer.Stop() {
		// Stopped before the timer fired, the job never ran.
		t.cancel()
		close(t.done)
		return
	}
	t.cancel()
}

// Scheduler runs delayed fire-and-forget jobs on detached contexts. A job
// outlives the request that submitted it; its failure is logged and exposed
// on the Task, never propagated into a live turn.
type Scheduler struct {
	logger logging.Logger
}

// NewScheduler creates a scheduler logging through the given logger.
func NewScheduler(logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Scheduler{logger: logger}
}

// Submit schedules fn to run after delay. The function receives a context
// detached from any request context, cancelled only via Task.Cancel.
func (s *Scheduler) Submit(fn func(ctx context.Context) error, delay time.Duration) *Task {
	ctx, cancel := context.WithCancel(context.Background())

	task := &Task{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	task.timer = time.AfterFunc(delay, func() {
		defer close(task.done)

		task.mu.Lock()
		cancelled := task.cancelled
		task.mu.Unlock()
		if cancelled {
			return
		}

		if err := fn(ctx); err != nil {
			task.mu.Lock()
			task.err = err
			task.mu.Unlock()
			s.logger.Error("background task failed", "error", err)
		}
	})

	return task
}
