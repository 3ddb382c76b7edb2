package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/personaforge/personaforge/internal/config"
	"github.com/personaforge/personaforge/internal/database/migrations"
	"github.com/personaforge/personaforge/internal/llm"
	"github.com/personaforge/personaforge/internal/models"
	"github.com/personaforge/personaforge/internal/repository"
	"github.com/personaforge/personaforge/internal/security"
	"github.com/personaforge/personaforge/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return repository.NewRepositories(db)
}

func newEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.1, 0.2, 0.3}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestWorker(t *testing.T, cfg *config.Config) (*Worker, *repository.Repositories) {
	t.Helper()

	repos := setupTestRepos(t)
	srv := newEmbeddingServer(t)
	ollama := llm.NewOllamaClient(srv.URL, discardLogger())
	memories := service.NewMemoryService(repos, ollama, "nomic-embed-text", discardLogger())
	tracker := security.NewTracker(security.DefaultTrackerConfig(), discardLogger())

	return New(cfg, memories, tracker, repos.Message, discardLogger()), repos
}

func TestWorker_IndexOnce(t *testing.T) {
	cfg := &config.Config{
		WorkerPollInterval:      time.Minute,
		WorkerBatchSize:         10,
		SecurityCleanupInterval: time.Hour,
	}
	w, repos := newTestWorker(t, cfg)
	ctx := context.Background()

	msg := &models.Message{
		ChatID:  42,
		Role:    "user",
		Content: "the production database lives in the eu-west region",
	}
	if err := repos.Message.Create(ctx, msg); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}

	w.indexOnce(ctx)

	memories, err := repos.Memory.GetByChatID(ctx, 42)
	if err != nil {
		t.Fatalf("failed to fetch memories: %v", err)
	}
	if len(memories) != 1 {
		t.Fatalf("got %d memories, want 1", len(memories))
	}

	pending, err := repos.Message.GetUnembedded(ctx, 10)
	if err != nil {
		t.Fatalf("failed to fetch unembedded: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d unembedded messages, want 0", len(pending))
	}
}

func TestWorker_RetainOnce(t *testing.T) {
	cfg := &config.Config{
		WorkerPollInterval:      time.Minute,
		WorkerBatchSize:         10,
		SecurityCleanupInterval: time.Hour,
		RetentionEnabled:        true,
		RetentionMaxAge:         time.Hour,
		RetentionInterval:       time.Hour,
	}
	w, repos := newTestWorker(t, cfg)
	ctx := context.Background()

	old := &models.Message{
		ChatID:    7,
		Role:      "user",
		Content:   "stale",
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	fresh := &models.Message{
		ChatID:  7,
		Role:    "user",
		Content: "current",
	}
	for _, m := range []*models.Message{old, fresh} {
		if err := repos.Message.Create(ctx, m); err != nil {
			t.Fatalf("failed to create message: %v", err)
		}
	}

	w.retainOnce(ctx)

	remaining, err := repos.Message.GetByChatID(ctx, 7)
	if err != nil {
		t.Fatalf("failed to fetch history: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("got %d messages, want 1", len(remaining))
	}
	if remaining[0].Content != "current" {
		t.Errorf("surviving message = %q, want %q", remaining[0].Content, "current")
	}
}

func TestWorker_StartStop(t *testing.T) {
	cfg := &config.Config{
		WorkerPollInterval:      10 * time.Millisecond,
		WorkerBatchSize:         5,
		SecurityCleanupInterval: 10 * time.Millisecond,
		RetentionEnabled:        true,
		RetentionMaxAge:         time.Hour,
		RetentionInterval:       10 * time.Millisecond,
	}
	w, _ := newTestWorker(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	w.Stop()
}
