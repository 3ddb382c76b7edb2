// Package main is the entry point for the personaforge server.
// Authentication is single-owner: only the configured OWNER_ID can
// manage personas, chat settings, and exports.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/personaforge/personaforge/internal/config"
	"github.com/personaforge/personaforge/internal/database"
	"github.com/personaforge/personaforge/internal/http/handlers"
	"github.com/personaforge/personaforge/internal/http/mw"
	"github.com/personaforge/personaforge/internal/logging"
	"github.com/personaforge/personaforge/internal/repository"
	"github.com/personaforge/personaforge/internal/service"
	"github.com/personaforge/personaforge/internal/version"
	"github.com/personaforge/personaforge/internal/worker"
)

func main() {
	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	// Log version info first thing
	v := version.Get()
	logger.Info("starting personaforge",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// "personaforge token" mints an owner bearer token and exits. Handy
	// for bootstrapping API access without a separate tool.
	if len(os.Args) > 1 && os.Args[1] == "token" {
		token, err := mw.IssueOwnerToken(cfg.TokenSignKey, cfg.OwnerID, cfg.JWTExpiry)
		if err != nil {
			logger.Error("failed to issue owner token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Run migrations (with logging for each migration applied)
	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Log current schema version
	schemaVersion, err := database.GetLatestSchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		migrationCount, _ := database.GetMigrationCount(db)
		logger.Info("database schema ready", "schema_version", schemaVersion, "migrations_applied", migrationCount)
	}

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize services
	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Check the model backend; the server still starts if it is down,
	// message handling will surface the errors.
	if models, err := services.Ollama.Health(context.Background()); err != nil {
		logger.Warn("ollama not reachable at startup", "url", cfg.OllamaURL, "error", err)
	} else {
		logger.Info("ollama ready", "url", cfg.OllamaURL, "models", models)
	}

	// Start background worker for memory indexing, security record
	// cleanup, and history retention
	bgWorker := worker.New(cfg, services.Memory, services.Tracker, repos.Message, logger)
	ctx, cancel := context.WithCancel(context.Background())
	bgWorker.Start(ctx)

	// Create router
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	// Request timeout middleware with different timeouts per endpoint type
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:  30 * time.Second,
		Extended: 3 * time.Minute,
		// Message handling gets extended timeout (page fetch + inference)
		ExtendedPatterns: []string{"/messages"},
	}))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit (1MB) - prevent large payload attacks
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	// Global rate limit by IP (the security tracker applies per-sender
	// limits on top of this)
	router.Use(httprate.LimitByIP(100, time.Minute))

	// Global concurrency throttle - prevent system overload
	router.Use(middleware.Throttle(100))

	// Create Huma API config for main API with OpenAPI docs
	humaConfig := huma.DefaultConfig("PersonaForge API", "1.0.0")
	humaConfig.Info.Description = "Persona-driven chat backend with prompt-injection defense, long-term memory, and Ollama-backed generation."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Owner token authentication. Mint one with `personaforge token`.",
		},
	}

	// Main API with OpenAPI docs
	api := humachi.New(router, humaConfig)

	// Config for hidden routes (K8s probes - no docs needed)
	hiddenConfig := huma.DefaultConfig("PersonaForge API", "1.0.0")
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	// Config for protected routes (documented by the main API)
	protectedConfig := huma.DefaultConfig("PersonaForge API", "1.0.0")
	protectedConfig.Info.Description = humaConfig.Info.Description
	protectedConfig.Servers = humaConfig.Servers
	protectedConfig.DocsPath = ""
	protectedConfig.OpenAPIPath = ""
	protectedConfig.SchemasPath = ""

	// Health check (public, shown in docs)
	huma.Get(api, "/api/v1/health", handlers.HealthCheck)

	// Kubernetes probes (hidden from docs - internal use only)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	readyzHandler := handlers.NewReadyzHandler(db)
	huma.Get(hiddenAPI, "/readyz", readyzHandler.Readyz)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(cfg.TokenSignKey, cfg.OwnerID))

		protectedAPI := humachi.New(r, protectedConfig)

		// Persona management routes
		personaHandler := handlers.NewPersonaHandler(services.Persona)
		huma.Get(protectedAPI, "/api/v1/personas", personaHandler.ListPersonas)
		huma.Post(protectedAPI, "/api/v1/personas", personaHandler.CreatePersona)
		huma.Get(protectedAPI, "/api/v1/personas/{id}", personaHandler.GetPersona)
		huma.Put(protectedAPI, "/api/v1/personas/{id}", personaHandler.UpdatePersona)
		huma.Delete(protectedAPI, "/api/v1/personas/{id}", personaHandler.DeletePersona)
		huma.Post(protectedAPI, "/api/v1/personas/{id}/activate", personaHandler.ActivatePersona)

		// Chat message and history routes
		chatHandler := handlers.NewChatHandler(services.Chat)
		huma.Post(protectedAPI, "/api/v1/chats/{chat_id}/messages", chatHandler.SendMessage)
		huma.Get(protectedAPI, "/api/v1/chats/{chat_id}/messages", chatHandler.GetHistory)

		// Per-chat settings routes
		settingsHandler := handlers.NewSettingsHandler(services.Chat)
		huma.Get(protectedAPI, "/api/v1/chats/{chat_id}/settings", settingsHandler.GetSettings)
		huma.Put(protectedAPI, "/api/v1/chats/{chat_id}/settings", settingsHandler.UpdateSettings)

		// Export routes
		exportHandler := handlers.NewExportHandler(services.Export)
		huma.Post(protectedAPI, "/api/v1/exports/transcripts/{chat_id}", exportHandler.ExportTranscript)
		huma.Post(protectedAPI, "/api/v1/exports/personas", exportHandler.ExportPersonas)
		huma.Get(protectedAPI, "/api/v1/exports", exportHandler.GetExport)

		// Sender moderation routes
		securityHandler := handlers.NewSecurityHandler(services.Tracker)
		huma.Get(protectedAPI, "/api/v1/security/senders/{sender_id}", securityHandler.GetSenderStats)
		huma.Post(protectedAPI, "/api/v1/security/senders/{sender_id}/block", securityHandler.BlockSender)
		huma.Post(protectedAPI, "/api/v1/security/senders/{sender_id}/unblock", securityHandler.UnblockSender)
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		// Stop the worker first
		cancel()
		bgWorker.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
