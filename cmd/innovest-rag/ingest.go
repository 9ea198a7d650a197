package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/innovest/innovest-rag/internal/adapters/driven/queue/memory"
	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/worker"
)

func ingestCMD(load configLoader) *cobra.Command {
	var (
		process bool
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ingest <dealId> <file>",
		Short: "Copy a document into the uploads directory and schedule its ingestion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			dealID, path := args[0], args[1]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			key := dealID + "/" + filepath.Base(path)
			if err := a.blobs.Put(ctx, key, data); err != nil {
				return err
			}

			job, err := a.ingestion.Ingest(ctx, dealID, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s scheduled for %s\n", job.ID, key)

			// An in-process queue has no other consumer.
			if _, ok := a.taskQueue.(*memory.Queue); ok {
				process = true
			}
			if !process && !wait {
				return nil
			}

			if process {
				w := worker.NewWorker(worker.WorkerConfig{
					TaskQueue:      a.taskQueue,
					Ingestion:      a.ingestion,
					Logger:         a.logger,
					Concurrency:    1,
					DequeueTimeout: time.Second,
				})
				workerCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				if err := w.Start(workerCtx); err != nil {
					return err
				}
				defer w.Stop()
			}

			final, err := waitForJob(ctx, a, job.ID, timeout)
			if err != nil {
				return err
			}
			if final.State == domain.JobStateFailed {
				return fmt.Errorf("job %s failed: %s", final.ID, final.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s %s with %d segments\n", final.ID, final.State, final.Segments)
			return nil
		},
	}

	cmd.Flags().BoolVar(&process, "process", false, "run a worker in this process until the job finishes")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for a worker elsewhere to finish the job")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the job")
	return cmd
}

func waitForJob(ctx context.Context, a *app, id string, timeout time.Duration) (*domain.IngestionJob, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, err := a.ingestion.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.State.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("job %s still %s: %w", id, job.State, ctx.Err())
		case <-ticker.C:
		}
	}
}
