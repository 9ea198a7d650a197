package driven

import (
	"context"
	"time"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

// TaskQueue hands ingestion work from the upload boundary to workers.
// Implementations can use Redis (preferred), Postgres or process memory.
// Delivery is at most once: Nack fails the task instead of requeuing it.
type TaskQueue interface {
	// Enqueue adds a task to the queue for processing.
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout retrieves the next pending task, waiting up to timeout.
	// The task is marked as processing and will not be returned to other workers.
	// Returns nil, nil if timeout is reached with no tasks available.
	DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error)

	// Ack marks a task as completed.
	Ack(ctx context.Context, taskID string) error

	// Nack marks a task as failed with the given reason.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask retrieves a task by ID (for status checking).
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// ListTasks retrieves tasks matching the filter criteria.
	ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// PurgeTasks removes completed/failed tasks last updated before olderThan ago.
	PurgeTasks(ctx context.Context, olderThan time.Duration) (int, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// TaskFilter specifies criteria for listing tasks
type TaskFilter struct {
	// ParentID filters by deal (optional, empty means all)
	ParentID string

	// Status filters by task status (optional, empty means all)
	Status domain.TaskStatus

	// Limit is the maximum number of tasks to return
	Limit int
}

// QueueStats contains queue statistics
type QueueStats struct {
	PendingCount    int64 `json:"pending_count"`
	ProcessingCount int64 `json:"processing_count"`
	CompletedCount  int64 `json:"completed_count"`
	FailedCount     int64 `json:"failed_count"`
}
