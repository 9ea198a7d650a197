// Package watcher ingests documents dropped into the uploads directory.
// Files are expected at <root>/<parent_id>/<file>; anything else is ignored.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/innovest/innovest-rag/internal/core/ports/driving"
)

// KeyResolver maps a file path under the uploads root to a document key.
type KeyResolver interface {
	Root() string
	KeyFor(path string) (string, error)
}

// Config holds dependencies for the watcher.
type Config struct {
	Keys      KeyResolver
	Ingestion driving.IngestionService
	Logger    *slog.Logger

	// Settle is how long a file must stay unchanged before it is ingested (default: 500ms)
	Settle time.Duration
}

// Watcher turns finished uploads into ingestion requests.
type Watcher struct {
	keys      KeyResolver
	ingestion driving.IngestionService
	logger    *slog.Logger
	settle    time.Duration
	root      string

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// New creates a watcher on the uploads root and every existing deal directory.
func New(cfg Config) (*Watcher, error) {
	if cfg.Keys == nil || cfg.Ingestion == nil {
		return nil, errors.New("watcher requires a key resolver and an ingestion service")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	settle := cfg.Settle
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	w := &Watcher{
		keys:      cfg.Keys,
		ingestion: cfg.Ingestion,
		logger:    logger,
		settle:    settle,
		root:      cfg.Keys.Root(),
		fsw:       fsw,
		pending:   make(map[string]*time.Timer),
	}

	if err := fsw.Add(w.root); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.root, err)
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("read %s: %w", w.root, err)
	}
	for _, e := range entries {
		if e.IsDir() && !isHidden(e.Name()) {
			if err := fsw.Add(filepath.Join(w.root, e.Name())); err != nil {
				logger.Warn("failed to watch deal directory", "dir", e.Name(), "error", err)
			}
		}
	}

	return w, nil
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching uploads", "root", w.root, "settle", w.settle)
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if isHidden(filepath.Base(event.Name)) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	depth := len(strings.Split(filepath.ToSlash(rel), "/"))

	switch {
	case info.IsDir() && depth == 1:
		if err := w.fsw.Add(event.Name); err != nil {
			w.logger.Warn("failed to watch deal directory", "dir", rel, "error", err)
		}
	case info.Mode().IsRegular() && depth == 2:
		w.schedule(ctx, event.Name)
	}
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}

	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
	w.pending[path] = t
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	key, err := w.keys.KeyFor(path)
	if err != nil {
		w.logger.Warn("ignoring upload", "path", path, "error", err)
		return
	}
	parentID, _, _ := strings.Cut(key, "/")

	job, err := w.ingestion.Ingest(context.WithoutCancel(ctx), parentID, key)
	if err != nil {
		w.logger.Error("failed to schedule ingestion", "document_key", key, "error", err)
		return
	}
	w.logger.Info("upload scheduled", "job_id", job.ID, "parent_id", parentID, "document_key", key)
}

// stop cancels timers that have not fired and waits for running ingests.
func (w *Watcher) stop() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	_ = w.fsw.Close()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
