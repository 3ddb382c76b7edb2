package service

import (
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
	"github.com/personaforge/personaforge/internal/repository"
	"github.com/personaforge/personaforge/internal/security"
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

func testConfig() *config.Config {
	return &config.Config{
		ChatModel:          "llama3.2",
		EmbeddingModel:     "nomic-embed-text",
		DefaultTemperature: 0.7,
		DefaultMaxTokens:   256,
		DefaultMemoryDepth: 10,
		BotName:            "Assistant",
	}
}

// fakeOllama serves canned generate and embeddings responses and records
// the prompts it received.
type fakeOllama struct {
	srv       *httptest.Server
	reply     string
	embedding []float64
	prompts   []string
}

func newFakeOllama(t *testing.T) *fakeOllama {
	t.Helper()

	f := &fakeOllama{
		reply:     "Hello!",
		embedding: []float64{0.1, 0.2, 0.3},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			var req struct {
				Prompt string `json:"prompt"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			f.prompts = append(f.prompts, req.Prompt)
			json.NewEncoder(w).Encode(map[string]any{"response": f.reply, "done": true})
		case "/api/embeddings":
			json.NewEncoder(w).Encode(map[string]any{"embedding": f.embedding})
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"llama3.2:latest"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOllama) client() *llm.OllamaClient {
	return llm.NewOllamaClient(f.srv.URL, nil)
}

func setupChatService(t *testing.T) (*ChatService, *repository.Repositories, *fakeOllama) {
	t.Helper()

	repos := setupTestRepos(t)
	cfg := testConfig()
	fake := newFakeOllama(t)
	ollama := fake.client()

	tracker := security.NewTracker(security.TrackerConfig{
		StrikeThreshold: 30,
		MaxStrikes:      3,
		BlockDuration:   time.Minute,
		StrikeWindow:    time.Hour,
	}, nil)

	personaSvc := NewPersonaService(repos, discardLogger())
	memorySvc := NewMemoryService(repos, ollama, cfg.EmbeddingModel, discardLogger())
	pageSvc := NewPageContextService(discardLogger())
	chatSvc := NewChatService(cfg, repos, personaSvc, memorySvc, pageSvc, ollama, tracker, discardLogger())

	return chatSvc, repos, fake
}
