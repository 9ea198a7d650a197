package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

func setupTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q, err := NewQueue(context.Background(), client, "worker-test")
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	return q, mr
}

func TestNewQueue_NilClient(t *testing.T) {
	if _, err := NewQueue(context.Background(), nil, ""); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestNewQueue_GroupAlreadyExists(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	if _, err := NewQueue(context.Background(), client, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := NewQueue(context.Background(), client, "b"); err != nil {
		t.Errorf("second queue should reuse the group: %v", err)
	}
}

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewIngestTask("deal-1", "memo.pdf")
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got == nil || got.ID != task.ID {
		t.Fatalf("expected task %s, got %+v", task.ID, got)
	}
	if got.Status != domain.TaskStatusProcessing || got.Attempts != 1 {
		t.Errorf("expected processing with 1 attempt, got %s/%d", got.Status, got.Attempts)
	}
	if got.DocumentKey() != "memo.pdf" {
		t.Errorf("unexpected document key %q", got.DocumentKey())
	}

	if err := q.Ack(ctx, task.ID); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	stored, err := q.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", stored.Status)
	}
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q, _ := setupTestQueue(t)

	got, err := q.DequeueWithTimeout(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no task, got %+v", got)
	}
}

func TestQueue_NackDoesNotRedeliver(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewIngestTask("deal-1", "broken.pdf")
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatal(err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if err := q.Nack(ctx, task.ID, "PARSING: parse failed"); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	stored, err := q.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.TaskStatusFailed || stored.Error != "PARSING: parse failed" {
		t.Errorf("unexpected task state %s %q", stored.Status, stored.Error)
	}

	again, err := q.DequeueWithTimeout(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if again != nil {
		t.Error("failed task must not be redelivered")
	}
}

func TestQueue_GetTaskNotFound(t *testing.T) {
	q, _ := setupTestQueue(t)
	if _, err := q.GetTask(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := q.Ack(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound from Ack, got %v", err)
	}
}

func TestQueue_ListTasksFilter(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	for _, parent := range []string{"deal-1", "deal-1", "deal-2"} {
		if err := q.Enqueue(ctx, domain.NewIngestTask(parent, "x.pdf")); err != nil {
			t.Fatal(err)
		}
	}

	tasks, err := q.ListTasks(ctx, driven.TaskFilter{ParentID: "deal-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Errorf("expected 2 tasks for deal-1, got %d", len(tasks))
	}

	tasks, err = q.ListTasks(ctx, driven.TaskFilter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Errorf("expected limit to apply, got %d", len(tasks))
	}
}

func TestQueue_StatsAndPurge(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	done := domain.NewIngestTask("deal-1", "a.pdf")
	waiting := domain.NewIngestTask("deal-1", "b.pdf")
	for _, task := range []*domain.Task{done, waiting} {
		if err := q.Enqueue(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	got, err := q.DequeueWithTimeout(ctx, 0)
	if err != nil || got == nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := q.Ack(ctx, got.ID); err != nil {
		t.Fatal(err)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.PendingCount != 1 || stats.CompletedCount != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	purged, err := q.PurgeTasks(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if purged != 0 {
		t.Errorf("recent tasks must survive, purged %d", purged)
	}

	purged, err = q.PurgeTasks(ctx, -time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged, got %d", purged)
	}
}

func TestQueue_Ping(t *testing.T) {
	q, mr := setupTestQueue(t)
	if err := q.Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
	mr.Close()
	if err := q.Ping(context.Background()); err == nil {
		t.Error("expected ping error after shutdown")
	}
}
