package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/innovest/innovest-rag/internal/chunking"
	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven/mocks"
	"github.com/innovest/innovest-rag/internal/observability"
)

type pipelineFixture struct {
	pipeline *IngestionPipeline
	queue    *mocks.MockTaskQueue
	jobs     *mocks.MockJobStore
	blobs    *mocks.MockBlobStore
	parser   *mocks.MockDocumentParser
	embedder *mocks.MockEmbeddingService
	store    *mocks.MockVectorStore
}

func newPipelineFixture(t *testing.T, batchSize int) *pipelineFixture {
	t.Helper()
	chunker, err := chunking.NewChunker(chunking.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	f := &pipelineFixture{
		queue:    mocks.NewMockTaskQueue(),
		jobs:     mocks.NewMockJobStore(),
		blobs:    mocks.NewMockBlobStore(),
		parser:   mocks.NewMockDocumentParser(),
		embedder: mocks.NewMockEmbeddingService(),
		store:    mocks.NewMockVectorStore(),
	}
	f.pipeline = NewIngestionPipeline(IngestionPipelineConfig{
		Queue:          f.queue,
		Jobs:           f.jobs,
		Blobs:          f.blobs,
		Parser:         f.parser,
		Splitter:       chunker,
		Embedder:       f.embedder,
		Store:          f.store,
		Metrics:        observability.NewMetrics(),
		EmbedBatchSize: batchSize,
	})
	return f
}

func TestIngest_EnqueuesTaskAndRecordsJob(t *testing.T) {
	f := newPipelineFixture(t, 0)
	ctx := context.Background()

	job, err := f.pipeline.Ingest(ctx, "deal-1", "deal-1/memo.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.State != domain.JobStatePending || job.ParentID != "deal-1" {
		t.Errorf("unexpected job %+v", job)
	}

	task, err := f.queue.GetTask(ctx, job.ID)
	if err != nil {
		t.Fatalf("expected task with the job id: %v", err)
	}
	if task.Type != domain.TaskTypeIngestDocument || task.DocumentKey() != "deal-1/memo.pdf" {
		t.Errorf("unexpected task %+v", task)
	}

	stored, err := f.pipeline.GetJob(ctx, job.ID)
	if err != nil || stored.State != domain.JobStatePending {
		t.Errorf("expected PENDING job on record, got %+v, %v", stored, err)
	}
}

func TestIngest_InvalidInput(t *testing.T) {
	f := newPipelineFixture(t, 0)
	for _, tc := range [][2]string{{"", "a.pdf"}, {"deal-1", " "}, {" deal-1 ", "a.pdf"}, {"   ", "a.pdf"}} {
		if _, err := f.pipeline.Ingest(context.Background(), tc[0], tc[1]); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Ingest(%q, %q): expected ErrInvalidInput, got %v", tc[0], tc[1], err)
		}
	}
}

func TestIngest_EnqueueFailure(t *testing.T) {
	f := newPipelineFixture(t, 0)
	var taskID string
	f.queue.EnqueueFn = func(task *domain.Task) error {
		taskID = task.ID
		return errors.New("redis down")
	}

	_, err := f.pipeline.Ingest(context.Background(), "deal-1", "a.pdf")
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	job, err := f.jobs.Get(context.Background(), taskID)
	if err != nil {
		t.Fatal(err)
	}
	if job.State != domain.JobStateFailed {
		t.Errorf("expected FAILED job, got %s", job.State)
	}
}

func TestProcess_SixHundredCharsMakesTwoSegments(t *testing.T) {
	f := newPipelineFixture(t, 0)
	f.blobs.Put("deal-1/memo.txt", []byte(strings.Repeat("abcdefghij", 60)))
	job := domain.NewIngestionJob("", "deal-1", "deal-1/memo.txt")

	if err := f.pipeline.Process(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.State != domain.JobStateStored {
		t.Errorf("expected STORED, got %s", job.State)
	}
	if job.Segments != 2 {
		t.Errorf("expected 2 segments on the job, got %d", job.Segments)
	}

	segments := f.store.Segments()
	if len(segments) != 2 {
		t.Fatalf("expected 2 stored segments, got %d", len(segments))
	}
	for i, s := range segments {
		if s.ParentID() != "deal-1" {
			t.Errorf("segment %d missing parent_id", i)
		}
		if s.Metadata[domain.MetadataChunkIndex] != []string{"0", "1"}[i] {
			t.Errorf("segment %d has chunk index %q", i, s.Metadata[domain.MetadataChunkIndex])
		}
		if len(s.Embedding) != domain.Dimension {
			t.Errorf("segment %d has %d dimensions", i, len(s.Embedding))
		}
	}
	segments[0].Metadata["x"] = "y"
	if _, ok := segments[1].Metadata["x"]; ok {
		t.Error("segments must not share metadata maps")
	}

	want := []domain.JobState{
		domain.JobStateParsing, domain.JobStateSplitting, domain.JobStateEmbedding,
		domain.JobStateStoring, domain.JobStateStored,
	}
	states := f.jobs.States(job.ID)
	for i, s := range want {
		if i >= len(states) || states[i] != s {
			t.Fatalf("expected states to start with %v, got %v", want, states)
		}
	}
}

// ingestAndProcess runs Ingest and then processes the recorded job inline.
func (f *pipelineFixture) ingestAndProcess(t *testing.T, parentID, key string) *domain.IngestionJob {
	t.Helper()
	ctx := context.Background()
	job, err := f.pipeline.Ingest(ctx, parentID, key)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := f.pipeline.Process(ctx, job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	return job
}

func TestProcess_ParentIDStoredAsGiven(t *testing.T) {
	f := newPipelineFixture(t, 0)
	parentID := "Deal 7/Série A"
	f.blobs.Put("deck.txt", []byte("Series A term sheet"))

	f.ingestAndProcess(t, parentID, "deck.txt")

	segments := f.store.Segments()
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if got := segments[0].Metadata[domain.MetadataParentID]; got != parentID {
		t.Errorf("expected parent_id %q, got %q", parentID, got)
	}
}

func TestProcess_ReingestDuplicatesRows(t *testing.T) {
	f := newPipelineFixture(t, 0)
	f.blobs.Put("deal-1/memo.txt", []byte(strings.Repeat("abcdefghij", 60)))

	first := f.ingestAndProcess(t, "deal-1", "deal-1/memo.txt")
	second := f.ingestAndProcess(t, "deal-1", "deal-1/memo.txt")

	if first.ID == second.ID {
		t.Error("each ingestion must get its own job")
	}
	if first.State != domain.JobStateStored || second.State != domain.JobStateStored {
		t.Fatalf("expected both jobs STORED, got %s and %s", first.State, second.State)
	}
	if got := len(f.store.Segments()); got != 2*first.Segments {
		t.Errorf("expected %d rows after re-ingestion, got %d", 2*first.Segments, got)
	}
	jobs, err := f.pipeline.ListJobs(context.Background(), "deal-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs for the deal, got %d", len(jobs))
	}
}

func TestProcess_EmptyDocumentIsStored(t *testing.T) {
	f := newPipelineFixture(t, 0)
	f.blobs.Put("empty.txt", []byte(""))
	job := domain.NewIngestionJob("", "deal-1", "empty.txt")

	if err := f.pipeline.Process(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.State != domain.JobStateStored || job.Segments != 0 {
		t.Errorf("expected STORED with no segments, got %s/%d", job.State, job.Segments)
	}
	if f.embedder.Calls() != 0 {
		t.Error("embedder must not be called for an empty document")
	}
	if len(f.store.Segments()) != 0 {
		t.Error("nothing should be stored")
	}
}

func TestProcess_FetchFailure(t *testing.T) {
	f := newPipelineFixture(t, 0)
	job := domain.NewIngestionJob("", "deal-1", "missing.pdf")

	err := f.pipeline.Process(context.Background(), job)
	if !errors.Is(err, domain.ErrFetch) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected fetch error wrapping not found, got %v", err)
	}
	if job.State != domain.JobStateFailed || job.Error == "" {
		t.Errorf("expected FAILED with reason, got %s %q", job.State, job.Error)
	}

	stored, _ := f.jobs.Get(context.Background(), job.ID)
	if stored == nil || stored.State != domain.JobStateFailed {
		t.Error("final FAILED state must be recorded")
	}
}

func TestProcess_ParseFailure(t *testing.T) {
	f := newPipelineFixture(t, 0)
	f.blobs.Put("bad.pdf", []byte("%PDF-garbage"))
	f.parser.ParseFn = func([]byte) (string, error) { return "", domain.ErrParse }
	job := domain.NewIngestionJob("", "deal-1", "bad.pdf")

	err := f.pipeline.Process(context.Background(), job)
	var stageErr *domain.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != domain.JobStateParsing {
		t.Fatalf("expected stage error in PARSING, got %v", err)
	}
	if !errors.Is(err, domain.ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
	if len(f.store.Segments()) != 0 {
		t.Error("nothing should be stored")
	}
}

func TestProcess_EmbeddingFailure(t *testing.T) {
	f := newPipelineFixture(t, 0)
	f.blobs.Put("a.txt", []byte("Gamma holdings quarterly report"))
	f.embedder.SetError(errors.New("model unavailable"))
	job := domain.NewIngestionJob("", "deal-1", "a.txt")

	err := f.pipeline.Process(context.Background(), job)
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if job.State != domain.JobStateFailed {
		t.Errorf("expected FAILED, got %s", job.State)
	}
}

func TestProcess_PartialStoreIsKept(t *testing.T) {
	f := newPipelineFixture(t, 0)
	f.blobs.Put("long.txt", []byte(strings.Repeat("x", 1400)))
	calls := 0
	f.store.UpsertFn = func(*domain.Segment) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("disk full")
		}
		return "row", nil
	}
	job := domain.NewIngestionJob("", "deal-1", "long.txt")

	err := f.pipeline.Process(context.Background(), job)
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if job.State != domain.JobStateFailed {
		t.Errorf("expected FAILED, got %s", job.State)
	}
	if job.Segments != 1 || len(f.store.Segments()) != 1 {
		t.Errorf("expected the first segment to remain, got %d/%d", job.Segments, len(f.store.Segments()))
	}
}

func TestProcess_PanicBecomesFailed(t *testing.T) {
	f := newPipelineFixture(t, 0)
	f.blobs.Put("a.txt", []byte("text"))
	f.parser.ParseFn = func([]byte) (string, error) { panic("corrupt xref") }
	job := domain.NewIngestionJob("", "deal-1", "a.txt")

	err := f.pipeline.Process(context.Background(), job)
	if err == nil || !strings.Contains(err.Error(), "corrupt xref") {
		t.Fatalf("expected panic to surface as error, got %v", err)
	}
	if job.State != domain.JobStateFailed {
		t.Errorf("expected FAILED, got %s", job.State)
	}
}

func TestProcess_EmbedsInBatches(t *testing.T) {
	f := newPipelineFixture(t, 1)
	f.blobs.Put("a.txt", []byte(strings.Repeat("y", 600)))
	job := domain.NewIngestionJob("", "deal-1", "a.txt")

	if err := f.pipeline.Process(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if f.embedder.Calls() != 2 {
		t.Errorf("expected one Embed call per chunk, got %d", f.embedder.Calls())
	}
}

func TestListJobs(t *testing.T) {
	f := newPipelineFixture(t, 0)
	ctx := context.Background()
	for _, key := range []string{"a.pdf", "b.pdf"} {
		if _, err := f.pipeline.Ingest(ctx, "deal-1", key); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := f.pipeline.ListJobs(ctx, "deal-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}
	if _, err := f.pipeline.ListJobs(ctx, "", 10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
