package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
	"github.com/innovest/innovest-rag/internal/core/ports/driving"
	"github.com/innovest/innovest-rag/internal/observability"
)

var _ driving.IngestionService = (*IngestionPipeline)(nil)

const defaultEmbedBatchSize = 64

// IngestionPipeline turns one uploaded document into stored segments:
//  1. Fetch bytes from the blob store
//  2. Parse to plain text
//  3. Attach parent_id to the shared metadata
//  4. Split into overlapping chunks
//  5. Embed all chunks, then upsert each one
//
// A failed job is never retried and rows written before the failure stay.
type IngestionPipeline struct {
	queue    driven.TaskQueue
	jobs     driven.JobStore
	blobs    driven.BlobStore
	parser   driven.DocumentParser
	splitter driven.TextSplitter
	embedder driven.EmbeddingService
	store    driven.VectorStore
	metrics  *observability.Metrics
	logger   *slog.Logger

	embedBatchSize int
}

// IngestionPipelineConfig holds dependencies for IngestionPipeline.
type IngestionPipelineConfig struct {
	Queue    driven.TaskQueue
	Jobs     driven.JobStore
	Blobs    driven.BlobStore
	Parser   driven.DocumentParser
	Splitter driven.TextSplitter
	Embedder driven.EmbeddingService
	Store    driven.VectorStore
	Metrics  *observability.Metrics // Optional
	Logger   *slog.Logger

	// EmbedBatchSize bounds texts per Embed call (default: 64)
	EmbedBatchSize int
}

// NewIngestionPipeline creates a new ingestion pipeline.
func NewIngestionPipeline(cfg IngestionPipelineConfig) *IngestionPipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batch := cfg.EmbedBatchSize
	if batch <= 0 {
		batch = defaultEmbedBatchSize
	}

	return &IngestionPipeline{
		queue:          cfg.Queue,
		jobs:           cfg.Jobs,
		blobs:          cfg.Blobs,
		parser:         cfg.Parser,
		splitter:       cfg.Splitter,
		embedder:       cfg.Embedder,
		store:          cfg.Store,
		metrics:        cfg.Metrics,
		logger:         logger,
		embedBatchSize: batch,
	}
}

// Ingest records a PENDING job and enqueues it. The job ID is the task ID.
func (p *IngestionPipeline) Ingest(ctx context.Context, parentID, documentKey string) (*domain.IngestionJob, error) {
	if parentID == "" || strings.TrimSpace(documentKey) == "" {
		return nil, fmt.Errorf("%w: parent id and document key are required", domain.ErrInvalidInput)
	}
	// parent_id is stored exactly as given and matched exactly at query time
	if strings.TrimSpace(parentID) != parentID {
		return nil, fmt.Errorf("%w: parent id %q has surrounding whitespace", domain.ErrInvalidInput, parentID)
	}

	task := domain.NewIngestTask(parentID, documentKey)
	job := domain.NewIngestionJob(task.ID, parentID, documentKey)
	if err := p.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("record job: %w", err)
	}

	if err := p.queue.Enqueue(ctx, task); err != nil {
		job.Fail(err)
		p.save(ctx, job)
		return nil, fmt.Errorf("%w: enqueue ingestion: %v", domain.ErrServiceUnavailable, err)
	}

	p.logger.Info("ingestion enqueued",
		"job_id", job.ID,
		"parent_id", parentID,
		"document_key", documentKey,
	)
	return job, nil
}

// Process runs the pipeline for one job. The job ends in STORED or FAILED and
// its final state is saved; the returned error is the failure, if any.
func (p *IngestionPipeline) Process(ctx context.Context, job *domain.IngestionJob) (err error) {
	start := time.Now()
	logger := p.logger.With("job_id", job.ID, "parent_id", job.ParentID, "document_key", job.DocumentKey)

	ctx, span := observability.StartJobSpan(ctx, job.ID, job.ParentID, job.DocumentKey)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in ingestion: %v", r)
		}
		if err != nil {
			job.Fail(err)
			logger.Error("ingestion failed", "state", job.State, "error", err)
		} else {
			logger.Info("ingestion stored", "segments", job.Segments, "duration", time.Since(start))
		}
		p.save(context.WithoutCancel(ctx), job)
		p.metrics.ObserveJob(string(job.State), job.Segments, time.Since(start))
		observability.EndSpan(span, err)
	}()

	logger.Info("ingestion started")

	data, err := p.fetch(ctx, job)
	if err != nil {
		return err
	}

	text, err := p.parse(ctx, job, data)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		domain.MetadataParentID:    job.ParentID,
		domain.MetadataDocumentKey: job.DocumentKey,
	}

	chunks, err := p.split(ctx, job, text)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		logger.Info("document has no text, nothing to store")
		return p.advance(ctx, job, domain.JobStateStored)
	}

	vectors, err := p.embed(ctx, job, chunks)
	if err != nil {
		return err
	}

	if err := p.upsert(ctx, job, chunks, vectors, metadata); err != nil {
		return err
	}
	return p.advance(ctx, job, domain.JobStateStored)
}

func (p *IngestionPipeline) fetch(ctx context.Context, job *domain.IngestionJob) ([]byte, error) {
	ctx, span := observability.StartStageSpan(ctx, "FETCHING")
	data, err := p.blobs.FetchBytes(ctx, job.DocumentKey)
	if err != nil {
		err = domain.NewStageError(job.State, domain.ErrFetch, err)
	}
	observability.EndSpan(span, err)
	return data, err
}

func (p *IngestionPipeline) parse(ctx context.Context, job *domain.IngestionJob, data []byte) (string, error) {
	if err := p.advance(ctx, job, domain.JobStateParsing); err != nil {
		return "", err
	}
	ctx, span := observability.StartStageSpan(ctx, string(domain.JobStateParsing))
	text, err := p.parser.Parse(ctx, data)
	if err != nil {
		err = domain.NewStageError(job.State, domain.ErrParse, err)
	}
	observability.EndSpan(span, err)
	return text, err
}

func (p *IngestionPipeline) split(ctx context.Context, job *domain.IngestionJob, text string) ([]string, error) {
	if err := p.advance(ctx, job, domain.JobStateSplitting); err != nil {
		return nil, err
	}
	_, span := observability.StartStageSpan(ctx, string(domain.JobStateSplitting))
	chunks := p.splitter.Split(text)
	span.End()
	return chunks, nil
}

func (p *IngestionPipeline) embed(ctx context.Context, job *domain.IngestionJob, chunks []string) ([][]float32, error) {
	if err := p.advance(ctx, job, domain.JobStateEmbedding); err != nil {
		return nil, err
	}
	ctx, span := observability.StartStageSpan(ctx, string(domain.JobStateEmbedding))

	vectors := make([][]float32, 0, len(chunks))
	var err error
	for start := 0; start < len(chunks); start += p.embedBatchSize {
		end := min(start+p.embedBatchSize, len(chunks))
		var batch [][]float32
		batch, err = p.embedder.Embed(ctx, chunks[start:end])
		if err == nil && len(batch) != end-start {
			err = fmt.Errorf("got %d vectors for %d chunks", len(batch), end-start)
		}
		if err != nil {
			err = domain.NewStageError(job.State, domain.ErrEmbedding, err)
			break
		}
		vectors = append(vectors, batch...)
	}
	observability.EndSpan(span, err)
	return vectors, err
}

// upsert writes segments one by one so each is committed on its own.
func (p *IngestionPipeline) upsert(ctx context.Context, job *domain.IngestionJob, chunks []string, vectors [][]float32, metadata map[string]string) error {
	if err := p.advance(ctx, job, domain.JobStateStoring); err != nil {
		return err
	}
	ctx, span := observability.StartStageSpan(ctx, string(domain.JobStateStoring))

	var err error
	for i, chunk := range chunks {
		segment := domain.NewSegment(chunk, vectors[i], metadata)
		segment.Metadata[domain.MetadataChunkIndex] = strconv.Itoa(i)

		if _, err = p.store.Upsert(ctx, segment); err != nil {
			err = domain.NewStageError(job.State, domain.ErrStore, err)
			break
		}
		job.Segments++
	}
	observability.EndSpan(span, err)
	return err
}

func (p *IngestionPipeline) advance(ctx context.Context, job *domain.IngestionJob, to domain.JobState) error {
	if err := job.Advance(to); err != nil {
		return err
	}
	p.save(ctx, job)
	return nil
}

// save records job state; a bookkeeping failure never fails the job itself.
func (p *IngestionPipeline) save(ctx context.Context, job *domain.IngestionJob) {
	if err := p.jobs.Save(ctx, job); err != nil {
		p.logger.Warn("failed to record job state", "job_id", job.ID, "state", job.State, "error", err)
	}
}

// GetJob returns the recorded state of an ingestion job.
func (p *IngestionPipeline) GetJob(ctx context.Context, id string) (*domain.IngestionJob, error) {
	return p.jobs.Get(ctx, id)
}

// ListJobs returns the ingestion jobs of a deal, newest first.
func (p *IngestionPipeline) ListJobs(ctx context.Context, parentID string, limit int) ([]*domain.IngestionJob, error) {
	if strings.TrimSpace(parentID) == "" {
		return nil, fmt.Errorf("%w: parent id is required", domain.ErrInvalidInput)
	}
	return p.jobs.ListByParent(ctx, parentID, limit)
}
