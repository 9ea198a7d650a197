package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
	"github.com/innovest/innovest-rag/internal/core/ports/driven/mocks"
	"github.com/innovest/innovest-rag/internal/core/services"
)

// mockTaskQueue implements driven.TaskQueue for testing
type mockTaskQueue struct {
	mu           sync.Mutex
	tasks        []*domain.Task
	dequeueDelay time.Duration
	dequeueFn    func() (*domain.Task, error)
	pingFn       func() error

	acked  []string
	nacked map[string]string
}

func newMockTaskQueue() *mockTaskQueue {
	return &mockTaskQueue{nacked: make(map[string]string)}
}

func (m *mockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	if m.dequeueDelay > 0 {
		select {
		case <-time.After(m.dequeueDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.dequeueFn != nil {
		return m.dequeueFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return nil, nil
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	return task, nil
}

func (m *mockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, taskID)
	return nil
}

func (m *mockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nacked[taskID] = reason
	return nil
}

func (m *mockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return nil, domain.ErrNotFound
}

func (m *mockTaskQueue) ListTasks(ctx context.Context, filter driven.TaskFilter) ([]*domain.Task, error) {
	return nil, nil
}

func (m *mockTaskQueue) PurgeTasks(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}

func (m *mockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &driven.QueueStats{PendingCount: int64(len(m.tasks))}, nil
}

func (m *mockTaskQueue) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn()
	}
	return nil
}

func (m *mockTaskQueue) Close() error {
	return nil
}

func (m *mockTaskQueue) outcome(taskID string) (acked bool, reason string, done bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.acked {
		if id == taskID {
			return true, "", true
		}
	}
	reason, nacked := m.nacked[taskID]
	return false, reason, nacked
}

// mockIngestion records the jobs handed to Process
type mockIngestion struct {
	mu        sync.Mutex
	jobs      map[string]*domain.IngestionJob
	processed []*domain.IngestionJob
	processFn func(*domain.IngestionJob) error
}

func newMockIngestion() *mockIngestion {
	return &mockIngestion{jobs: make(map[string]*domain.IngestionJob)}
}

func (m *mockIngestion) Ingest(ctx context.Context, parentID, documentKey string) (*domain.IngestionJob, error) {
	return nil, errors.New("not used")
}

func (m *mockIngestion) Process(ctx context.Context, job *domain.IngestionJob) error {
	m.mu.Lock()
	m.processed = append(m.processed, job)
	m.mu.Unlock()
	if m.processFn != nil {
		return m.processFn(job)
	}
	return nil
}

func (m *mockIngestion) GetJob(ctx context.Context, id string) (*domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		return job, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockIngestion) ListJobs(ctx context.Context, parentID string, limit int) ([]*domain.IngestionJob, error) {
	return nil, nil
}

func (m *mockIngestion) processedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.processed)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewWorker(t *testing.T) {
	w := NewWorker(WorkerConfig{
		TaskQueue:      newMockTaskQueue(),
		Ingestion:      newMockIngestion(),
		Concurrency:    2,
		DequeueTimeout: 3 * time.Second,
	})

	if w.concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 3*time.Second {
		t.Errorf("expected dequeue timeout 3s, got %v", w.dequeueTimeout)
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: newMockTaskQueue()})

	if w.concurrency != 1 {
		t.Errorf("expected default concurrency 1, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 5*time.Second {
		t.Errorf("expected default dequeue timeout 5s, got %v", w.dequeueTimeout)
	}
	if w.errorBackoff != time.Second {
		t.Errorf("expected default backoff 1s, got %v", w.errorBackoff)
	}
	if w.logger == nil {
		t.Error("expected default logger")
	}
}

func TestWorker_StartStop(t *testing.T) {
	queue := newMockTaskQueue()
	queue.dequeueDelay = 20 * time.Millisecond

	w := NewWorker(WorkerConfig{TaskQueue: queue, Ingestion: newMockIngestion()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	if !w.Health(ctx).Running {
		t.Error("expected worker to be running")
	}
	if err := w.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	w.Stop()
	if w.Health(ctx).Running {
		t.Error("expected worker to be stopped")
	}
	w.Stop()
}

func TestWorker_Health_QueueError(t *testing.T) {
	queue := newMockTaskQueue()
	queue.pingFn = func() error { return errors.New("connection failed") }

	w := NewWorker(WorkerConfig{TaskQueue: queue})

	health := w.Health(context.Background())
	if health.QueueHealth {
		t.Error("expected queue to be unhealthy")
	}
	if health.Error != "connection failed" {
		t.Errorf("expected error message, got %q", health.Error)
	}
}

func TestWorker_ProcessesIngestTask(t *testing.T) {
	queue := newMockTaskQueue()
	ingestion := newMockIngestion()

	task := domain.NewIngestTask("deal-1", "deal-1/memo.pdf")
	job := domain.NewIngestionJob(task.ID, "deal-1", "deal-1/memo.pdf")
	ingestion.jobs[task.ID] = job
	_ = queue.Enqueue(context.Background(), task)

	w := NewWorker(WorkerConfig{TaskQueue: queue, Ingestion: ingestion, Concurrency: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = w.Start(ctx)
	defer w.Stop()

	waitFor(t, func() bool {
		_, _, done := queue.outcome(task.ID)
		return done
	})

	acked, _, _ := queue.outcome(task.ID)
	if !acked {
		t.Error("expected task to be acked")
	}
	if ingestion.processed[0] != job {
		t.Error("expected the recorded job to be processed")
	}
}

func TestWorker_CreatesMissingJob(t *testing.T) {
	queue := newMockTaskQueue()
	ingestion := newMockIngestion()
	task := domain.NewIngestTask("deal-2", "deal-2/model.pdf")

	w := NewWorker(WorkerConfig{TaskQueue: queue, Ingestion: ingestion})
	w.processTask(context.Background(), task, w.logger)

	if ingestion.processedCount() != 1 {
		t.Fatal("expected one processed job")
	}
	job := ingestion.processed[0]
	if job.ID != task.ID || job.ParentID != "deal-2" || job.DocumentKey != "deal-2/model.pdf" {
		t.Errorf("unexpected job %+v", job)
	}
	if job.State != domain.JobStatePending {
		t.Errorf("expected pending job, got %s", job.State)
	}
}

func TestWorker_SkipsFinishedJob(t *testing.T) {
	queue := newMockTaskQueue()
	ingestion := newMockIngestion()
	task := domain.NewIngestTask("deal-1", "a.pdf")
	job := domain.NewIngestionJob(task.ID, "deal-1", "a.pdf")
	job.Fail(domain.ErrParse)
	ingestion.jobs[task.ID] = job

	w := NewWorker(WorkerConfig{TaskQueue: queue, Ingestion: ingestion})
	w.processTask(context.Background(), task, w.logger)

	if ingestion.processedCount() != 0 {
		t.Error("finished jobs must not be processed again")
	}
	if acked, _, _ := queue.outcome(task.ID); !acked {
		t.Error("expected task to be acked")
	}
}

func TestWorker_ProcessFailureNacks(t *testing.T) {
	queue := newMockTaskQueue()
	ingestion := newMockIngestion()
	ingestion.processFn = func(*domain.IngestionJob) error {
		return domain.NewStageError(domain.JobStateParsing, domain.ErrParse, errors.New("bad header"))
	}
	task := domain.NewIngestTask("deal-1", "a.pdf")

	w := NewWorker(WorkerConfig{TaskQueue: queue, Ingestion: ingestion})
	w.processTask(context.Background(), task, w.logger)

	acked, reason, done := queue.outcome(task.ID)
	if !done || acked {
		t.Fatal("expected task to be nacked")
	}
	if !strings.Contains(reason, "PARSING") {
		t.Errorf("expected stage in reason, got %q", reason)
	}
}

func TestWorker_UnknownTaskType(t *testing.T) {
	queue := newMockTaskQueue()
	task := &domain.Task{ID: "t-1", Type: "reindex"}

	w := NewWorker(WorkerConfig{TaskQueue: queue, Ingestion: newMockIngestion()})
	w.processTask(context.Background(), task, w.logger)

	_, reason, done := queue.outcome("t-1")
	if !done || !strings.Contains(reason, "unknown task type") {
		t.Errorf("expected nack for unknown type, got %q", reason)
	}
}

func TestWorker_MissingDocumentKey(t *testing.T) {
	queue := newMockTaskQueue()
	task := &domain.Task{ID: "t-2", Type: domain.TaskTypeIngestDocument, ParentID: "deal-1"}

	w := NewWorker(WorkerConfig{TaskQueue: queue, Ingestion: newMockIngestion()})
	w.processTask(context.Background(), task, w.logger)

	if _, reason, done := queue.outcome("t-2"); !done || !strings.Contains(reason, "document_key") {
		t.Errorf("expected nack for missing key, got %q", reason)
	}
}

func TestWorker_RecoversPanic(t *testing.T) {
	queue := newMockTaskQueue()
	ingestion := newMockIngestion()
	ingestion.processFn = func(*domain.IngestionJob) error { panic("boom") }
	task := domain.NewIngestTask("deal-1", "a.pdf")

	w := NewWorker(WorkerConfig{TaskQueue: queue, Ingestion: ingestion})
	w.processTask(context.Background(), task, w.logger)

	if _, reason, done := queue.outcome(task.ID); !done || !strings.Contains(reason, "boom") {
		t.Errorf("expected nack with panic message, got %q", reason)
	}
}

func TestWorker_DequeueErrorBacksOff(t *testing.T) {
	queue := newMockTaskQueue()
	var mu sync.Mutex
	calls := 0
	queue.dequeueFn = func() (*domain.Task, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil, errors.New("redis: connection refused")
	}

	w := NewWorker(WorkerConfig{TaskQueue: queue, ErrorBackoff: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = w.Start(ctx)
	time.Sleep(120 * time.Millisecond)
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	if calls == 0 || calls > 4 {
		t.Errorf("expected a few backed-off dequeues, got %d", calls)
	}
}

func TestWorker_ContextCancellation(t *testing.T) {
	queue := newMockTaskQueue()
	queue.dequeueDelay = 10 * time.Millisecond

	w := NewWorker(WorkerConfig{TaskQueue: queue})
	ctx, cancel := context.WithCancel(context.Background())
	_ = w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after cancel")
	}
}

func TestWorker_RunsJanitor(t *testing.T) {
	queue := newMockTaskQueue()
	queue.dequeueDelay = 10 * time.Millisecond
	purgeQueue := mocks.NewMockTaskQueue()
	janitor := services.NewJanitor(services.JanitorConfig{TaskQueue: purgeQueue, Interval: time.Hour})

	w := NewWorker(WorkerConfig{TaskQueue: queue, Janitor: janitor})
	_ = w.Start(context.Background())
	waitFor(t, func() bool { return purgeQueue.Purges() == 1 })
	w.Stop()
}
