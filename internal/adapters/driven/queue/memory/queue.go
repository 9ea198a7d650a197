package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

var _ driven.TaskQueue = (*Queue)(nil)

// Queue is an in-process TaskQueue for single-binary deployments and tests.
// Tasks are lost on restart.
type Queue struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	pending []string
	closed  bool

	// wake is closed and replaced on every enqueue, releasing all waiters
	wake chan struct{}
}

// NewQueue creates an empty in-memory queue.
func NewQueue() *Queue {
	return &Queue{
		tasks: make(map[string]*domain.Task),
		wake:  make(chan struct{}),
	}
}

// Enqueue adds a task to the back of the queue.
func (q *Queue) Enqueue(_ context.Context, task *domain.Task) error {
	if task == nil {
		return fmt.Errorf("%w: task is required", domain.ErrInvalidInput)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue closed: %w", domain.ErrServiceUnavailable)
	}
	cp := *task
	q.tasks[task.ID] = &cp
	q.pending = append(q.pending, task.ID)
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()
	return nil
}

// DequeueWithTimeout pops the oldest pending task, waiting up to timeout.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		task, wake := q.popOrWait()
		if task != nil {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-timer.C:
			task, _ := q.popOrWait()
			return task, nil
		case <-wake:
		}
	}
}

// popOrWait claims the oldest pending task or, when there is none, returns
// the channel the next Enqueue will close.
func (q *Queue) popOrWait() (*domain.Task, <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) > 0 {
		id := q.pending[0]
		q.pending = q.pending[1:]
		task, ok := q.tasks[id]
		if !ok || task.Status != domain.TaskStatusPending {
			continue
		}
		task.MarkProcessing()
		cp := *task
		return &cp, nil
	}
	return nil, q.wake
}

// Ack marks a task completed.
func (q *Queue) Ack(_ context.Context, taskID string) error {
	return q.update(taskID, func(t *domain.Task) { t.MarkCompleted() })
}

// Nack marks a task failed. It is not requeued.
func (q *Queue) Nack(_ context.Context, taskID string, reason string) error {
	return q.update(taskID, func(t *domain.Task) { t.MarkFailed(reason) })
}

func (q *Queue) update(taskID string, fn func(*domain.Task)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	fn(task)
	return nil
}

// GetTask returns a copy of the task.
func (q *Queue) GetTask(_ context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	cp := *task
	return &cp, nil
}

// ListTasks returns matching tasks, newest first.
func (q *Queue) ListTasks(_ context.Context, filter driven.TaskFilter) ([]*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var tasks []*domain.Task
	for _, task := range q.tasks {
		if filter.ParentID != "" && task.ParentID != filter.ParentID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		cp := *task
		tasks = append(tasks, &cp)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	if filter.Limit > 0 && len(tasks) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}
	return tasks, nil
}

// PurgeTasks drops finished tasks last updated before now-olderThan.
func (q *Queue) PurgeTasks(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	q.mu.Lock()
	defer q.mu.Unlock()

	var purged int
	for id, task := range q.tasks {
		if task.IsFinished() && task.UpdatedAt.Before(cutoff) {
			delete(q.tasks, id)
			purged++
		}
	}
	return purged, nil
}

// Stats counts tasks by status.
func (q *Queue) Stats(_ context.Context) (*driven.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := &driven.QueueStats{}
	for _, task := range q.tasks {
		switch task.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

// Ping fails once the queue is closed.
func (q *Queue) Ping(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.ErrServiceUnavailable
	}
	return nil
}

// Close rejects further enqueues.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}
