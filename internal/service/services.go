// Package service contains the business logic layer.
package service

import (
	"fmt"
	"log/slog"

	"github.com/personaforge/personaforge/internal/config"
	"github.com/personaforge/personaforge/internal/llm"
	"github.com/personaforge/personaforge/internal/repository"
	"github.com/personaforge/personaforge/internal/security"
)

// Services holds all service instances.
type Services struct {
	Persona     *PersonaService
	Chat        *ChatService
	Memory      *MemoryService
	PageContext *PageContextService
	Export      *ExportService
	Ollama      *llm.OllamaClient
	Tracker     *security.Tracker
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	ollama := llm.NewOllamaClient(cfg.OllamaURL, logger)

	tracker := security.NewTracker(security.TrackerConfig{
		StrikeThreshold: cfg.SecurityStrikeThreshold,
		MaxStrikes:      cfg.SecurityMaxStrikes,
		BlockDuration:   cfg.SecurityBlockDuration,
		StrikeWindow:    security.DefaultTrackerConfig().StrikeWindow,
	}, logger)

	exportSvc, err := NewExportService(cfg, repos, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create export service: %w", err)
	}

	personaSvc := NewPersonaService(repos, logger)
	memorySvc := NewMemoryService(repos, ollama, cfg.EmbeddingModel, logger)
	pageSvc := NewPageContextService(logger)
	chatSvc := NewChatService(cfg, repos, personaSvc, memorySvc, pageSvc, ollama, tracker, logger)

	return &Services{
		Persona:     personaSvc,
		Chat:        chatSvc,
		Memory:      memorySvc,
		PageContext: pageSvc,
		Export:      exportSvc,
		Ollama:      ollama,
		Tracker:     tracker,
	}, nil
}
