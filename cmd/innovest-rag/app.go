package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/innovest/innovest-rag/internal/adapters/driven/ai"
	"github.com/innovest/innovest-rag/internal/adapters/driven/auth"
	"github.com/innovest/innovest-rag/internal/adapters/driven/blob/filesystem"
	memoryjobs "github.com/innovest/innovest-rag/internal/adapters/driven/jobstore/memory"
	"github.com/innovest/innovest-rag/internal/adapters/driven/postgres"
	memoryqueue "github.com/innovest/innovest-rag/internal/adapters/driven/queue/memory"
	postgresqueue "github.com/innovest/innovest-rag/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/innovest/innovest-rag/internal/adapters/driven/queue/redis"
	redisadapter "github.com/innovest/innovest-rag/internal/adapters/driven/redis"
	memoryvectors "github.com/innovest/innovest-rag/internal/adapters/driven/vectorstore/memory"
	"github.com/innovest/innovest-rag/internal/adapters/driven/vectorstore/qdrant"
	"github.com/innovest/innovest-rag/internal/chunking"
	"github.com/innovest/innovest-rag/internal/config"
	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
	"github.com/innovest/innovest-rag/internal/core/ports/driving"
	"github.com/innovest/innovest-rag/internal/core/services"
	"github.com/innovest/innovest-rag/internal/observability"
	"github.com/innovest/innovest-rag/internal/parsers"
)

// app holds every long-lived component built from configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db    *postgres.DB
	redis *redis.Client

	taskQueue driven.TaskQueue
	lock      driven.DistributedLock
	jobs      driven.JobStore
	blobs     *filesystem.Store
	embedder  driven.EmbeddingService
	store     driven.VectorStore
	auth      driven.AuthAdapter
	metrics   *observability.Metrics

	ingestion *services.IngestionPipeline
	retrieval driving.RetrievalService

	closers []func() error
}

func chunkerConfig(cfg config.ChunkingConfig) chunking.Config {
	return chunking.Config{
		MaxChunkSize:       cfg.Size,
		Overlap:            cfg.Overlap,
		PreserveSentences:  cfg.PreserveSentences,
		PreserveParagraphs: cfg.PreserveParagraphs,
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// buildApp wires adapters and services. Redis is preferred for the queue and
// lock when configured, then Postgres, then in-process implementations.
func buildApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// ===== PostgreSQL (optional) =====
	if cfg.Database.URL != "" {
		db, err := postgres.Connect(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, db.Close)

		pgvectorVersion, err := db.InitSchema(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
		logger.Info("postgres connected and schema initialized", "pgvector", pgvectorVersion)
	}

	// ===== Redis (optional) =====
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		a.closers = append(a.closers, a.redis.Close)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("redis connected")
	}

	// ===== Task queue and lock =====
	switch {
	case a.redis != nil:
		q, err := redisqueue.NewQueue(ctx, a.redis, fmt.Sprintf("worker-%d", os.Getpid()))
		if err != nil {
			return nil, fmt.Errorf("create task queue: %w", err)
		}
		a.taskQueue = q
		a.lock = redisadapter.NewLock(a.redis)
		logger.Info("using redis task queue")
	case a.db != nil:
		a.taskQueue = postgresqueue.NewQueue(a.db.DB)
		a.lock = postgres.NewAdvisoryLock(a.db)
		logger.Info("using postgres task queue")
	default:
		a.taskQueue = memoryqueue.NewQueue()
		logger.Warn("using in-process task queue; api and worker must share this process")
	}
	a.closers = append(a.closers, a.taskQueue.Close)

	if a.db != nil {
		a.jobs = postgres.NewJobStore(a.db)
	} else {
		a.jobs = memoryjobs.NewStore()
	}

	// ===== Document storage =====
	a.blobs, err = filesystem.NewStore(cfg.Uploads.Dir)
	if err != nil {
		return nil, fmt.Errorf("open uploads dir: %w", err)
	}

	// ===== Embedding model =====
	a.embedder, err = ai.NewEmbeddingService(ai.EmbeddingConfig{
		Provider: cfg.Embedding.Provider,
		OpenAI: ai.OpenAIConfig{
			APIKey:            cfg.Embedding.APIKey,
			Model:             cfg.Embedding.Model,
			BaseURL:           cfg.Embedding.BaseURL,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			Timeout:           cfg.Embedding.Timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding model: %w", err)
	}
	a.closers = append(a.closers, a.embedder.Close)

	// ===== Vector store =====
	switch cfg.Vector.Backend {
	case config.BackendPostgres:
		if a.db == nil {
			return nil, fmt.Errorf("%w: postgres vector backend requires database.url", domain.ErrInvalidInput)
		}
		a.store = postgres.NewVectorStore(a.db, cfg.Vector.EFSearch)
	case config.BackendQdrant:
		store, err := qdrant.New(ctx, qdrant.Config{
			Host:       cfg.Vector.Qdrant.Host,
			Port:       cfg.Vector.Qdrant.Port,
			Collection: cfg.Vector.Qdrant.Collection,
			Dimension:  domain.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant: %w", err)
		}
		a.store = store
	case config.BackendMemory, "":
		a.store = memoryvectors.NewStore(domain.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidInput, cfg.Vector.Backend)
	}
	a.closers = append(a.closers, a.store.Close)
	logger.Info("vector store ready", "backend", cfg.Vector.Backend)

	if cfg.Auth.JWTSecret != "" {
		a.auth = auth.NewAdapter(cfg.Auth.JWTSecret)
	}

	// ===== Services =====
	chunker, err := chunking.NewChunker(chunkerConfig(cfg.Chunking))
	if err != nil {
		return nil, fmt.Errorf("create chunker: %w", err)
	}

	a.ingestion = services.NewIngestionPipeline(services.IngestionPipelineConfig{
		Queue:          a.taskQueue,
		Jobs:           a.jobs,
		Blobs:          a.blobs,
		Parser:         parsers.DefaultRegistry(),
		Splitter:       chunker,
		Embedder:       a.embedder,
		Store:          a.store,
		Metrics:        a.metrics,
		Logger:         logger,
		EmbedBatchSize: cfg.Embedding.BatchSize,
	})
	a.retrieval = services.NewRetrievalService(services.RetrievalServiceConfig{
		Embedder: a.embedder,
		Store:    a.store,
		Metrics:  a.metrics,
		Logger:   logger,
	})

	return a, nil
}

// Close releases components in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
