// Package worker runs background maintenance loops.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/personaforge/personaforge/internal/config"
	"github.com/personaforge/personaforge/internal/repository"
	"github.com/personaforge/personaforge/internal/security"
	"github.com/personaforge/personaforge/internal/service"
)

// Worker indexes pending messages into long-term memory, prunes stale
// security records, and optionally enforces message retention.
type Worker struct {
	memories     *service.MemoryService
	tracker      *security.Tracker
	messageRepo  repository.MessageRepository
	pollInterval time.Duration
	batchSize    int

	cleanupInterval time.Duration

	retentionEnabled  bool
	retentionMaxAge   time.Duration
	retentionInterval time.Duration

	stop   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates a new worker.
func New(
	cfg *config.Config,
	memories *service.MemoryService,
	tracker *security.Tracker,
	messageRepo repository.MessageRepository,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		memories:          memories,
		tracker:           tracker,
		messageRepo:       messageRepo,
		pollInterval:      cfg.WorkerPollInterval,
		batchSize:         cfg.WorkerBatchSize,
		cleanupInterval:   cfg.SecurityCleanupInterval,
		retentionEnabled:  cfg.RetentionEnabled,
		retentionMaxAge:   cfg.RetentionMaxAge,
		retentionInterval: cfg.RetentionInterval,
		stop:              make(chan struct{}),
		logger:            logger.With("component", "worker"),
	}
}

// Start begins the background loops.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"retention_enabled", w.retentionEnabled)

	w.wg.Add(1)
	go w.runIndexer(ctx)

	w.wg.Add(1)
	go w.runSecurityCleanup(ctx)

	if w.retentionEnabled {
		w.wg.Add(1)
		go w.runRetention(ctx)
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

func (w *Worker) runIndexer(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.indexOnce(ctx)
		}
	}
}

func (w *Worker) indexOnce(ctx context.Context) {
	indexed, err := w.memories.IndexPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("memory indexing failed", "error", err)
		return
	}
	if indexed > 0 {
		w.logger.Info("indexed messages into memory", "count", indexed)
	}
}

func (w *Worker) runSecurityCleanup(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := w.tracker.Cleanup(); removed > 0 {
				w.logger.Info("pruned security records", "count", removed)
			}
		}
	}
}

func (w *Worker) runRetention(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.retainOnce(ctx)
		}
	}
}

func (w *Worker) retainOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.retentionMaxAge)
	deleted, err := w.messageRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.Error("retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		w.logger.Info("deleted expired messages", "count", deleted, "cutoff", cutoff)
	}
}
