package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/personaforge/personaforge/internal/models"
	"github.com/personaforge/personaforge/internal/repository"
	"github.com/personaforge/personaforge/internal/security"
)

// Persona service errors.
var (
	// ErrPersonaNotFound indicates the persona does not exist.
	ErrPersonaNotFound = errors.New("persona not found")

	// ErrPersonaNameTaken indicates another persona already uses the name.
	ErrPersonaNameTaken = errors.New("persona name already taken")

	// ErrUnsafePrompt indicates the system prompt failed safety validation.
	ErrUnsafePrompt = errors.New("unsafe persona prompt")
)

// PersonaService manages persona lifecycle and trigger resolution.
type PersonaService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewPersonaService creates a new persona service.
func NewPersonaService(repos *repository.Repositories, logger *slog.Logger) *PersonaService {
	return &PersonaService{repos: repos, logger: logger}
}

// CreatePersonaInput holds the fields for creating a persona.
type CreatePersonaInput struct {
	Name         string
	SystemPrompt string
	DisplayName  *string
	Triggers     *string
}

// Create validates and stores a new persona. The system prompt is
// checked for injection patterns before it is accepted.
func (s *PersonaService) Create(ctx context.Context, input CreatePersonaInput) (*models.Persona, error) {
	name := strings.TrimSpace(strings.ToLower(input.Name))
	if name == "" {
		return nil, fmt.Errorf("persona name is required")
	}

	existing, err := s.repos.Persona.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking persona name: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersonaNameTaken, name)
	}

	safe, sanitized, warnings := security.ValidatePersonaPrompt(input.SystemPrompt)
	if !safe {
		s.logger.Warn("rejected unsafe persona prompt",
			slog.String("name", name),
			slog.Any("warnings", warnings))
		return nil, fmt.Errorf("%w: %s", ErrUnsafePrompt, strings.Join(warnings, "; "))
	}

	persona := &models.Persona{
		Name:         name,
		SystemPrompt: sanitized,
		DisplayName:  normalizeOptional(input.DisplayName),
		Triggers:     normalizeTriggers(input.Triggers),
	}
	if err := s.repos.Persona.Create(ctx, persona); err != nil {
		return nil, fmt.Errorf("creating persona: %w", err)
	}

	s.logger.Info("persona created",
		slog.String("persona_id", persona.ID),
		slog.String("name", persona.Name))

	return persona, nil
}

// UpdatePersonaInput holds the updatable fields. Nil pointers leave the
// corresponding column unchanged; SystemPrompt is updated when non-empty.
type UpdatePersonaInput struct {
	SystemPrompt string
	DisplayName  *string
	Triggers     *string
}

// Update modifies an existing persona.
func (s *PersonaService) Update(ctx context.Context, id string, input UpdatePersonaInput) (*models.Persona, error) {
	persona, err := s.repos.Persona.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching persona: %w", err)
	}
	if persona == nil {
		return nil, ErrPersonaNotFound
	}

	if input.SystemPrompt != "" {
		safe, sanitized, warnings := security.ValidatePersonaPrompt(input.SystemPrompt)
		if !safe {
			return nil, fmt.Errorf("%w: %s", ErrUnsafePrompt, strings.Join(warnings, "; "))
		}
		persona.SystemPrompt = sanitized
	}
	if input.DisplayName != nil {
		persona.DisplayName = normalizeOptional(input.DisplayName)
	}
	if input.Triggers != nil {
		persona.Triggers = normalizeTriggers(input.Triggers)
	}

	if err := s.repos.Persona.Update(ctx, persona); err != nil {
		return nil, fmt.Errorf("updating persona: %w", err)
	}
	return persona, nil
}

// Get returns a persona by ID.
func (s *PersonaService) Get(ctx context.Context, id string) (*models.Persona, error) {
	persona, err := s.repos.Persona.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if persona == nil {
		return nil, ErrPersonaNotFound
	}
	return persona, nil
}

// List returns all personas.
func (s *PersonaService) List(ctx context.Context) ([]*models.Persona, error) {
	return s.repos.Persona.List(ctx)
}

// Delete removes a persona.
func (s *PersonaService) Delete(ctx context.Context, id string) error {
	persona, err := s.repos.Persona.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if persona == nil {
		return ErrPersonaNotFound
	}
	return s.repos.Persona.Delete(ctx, id)
}

// Activate marks a persona as the global default responder.
func (s *PersonaService) Activate(ctx context.Context, id string) error {
	if err := s.repos.Persona.SetActive(ctx, id); err != nil {
		return fmt.Errorf("%w: %s", ErrPersonaNotFound, id)
	}
	s.logger.Info("persona activated", slog.String("persona_id", id))
	return nil
}

// ResolveForMessage picks the persona that should answer a message:
// a trigger match wins, then the chat's pinned persona, then the
// globally active one. Returns nil when no persona applies.
func (s *PersonaService) ResolveForMessage(ctx context.Context, text string, settings *models.ChatSettings) (*models.Persona, error) {
	if matched, err := s.matchTrigger(ctx, text); err != nil {
		return nil, err
	} else if matched != nil {
		return matched, nil
	}

	if settings != nil && settings.ActivePersonaID != nil {
		persona, err := s.repos.Persona.GetByID(ctx, *settings.ActivePersonaID)
		if err != nil {
			return nil, err
		}
		if persona != nil {
			return persona, nil
		}
	}

	return s.repos.Persona.GetActive(ctx)
}

// matchTrigger scans triggered personas for a word that appears in the
// message. Matching is case-insensitive on whole trigger phrases.
func (s *PersonaService) matchTrigger(ctx context.Context, text string) (*models.Persona, error) {
	personas, err := s.repos.Persona.ListTriggered(ctx)
	if err != nil {
		return nil, err
	}

	textLower := strings.ToLower(text)
	for _, persona := range personas {
		for _, trigger := range persona.TriggerList() {
			if trigger != "" && strings.Contains(textLower, trigger) {
				return persona, nil
			}
		}
	}
	return nil, nil
}

// normalizeOptional trims the value and maps empty strings to nil.
func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// normalizeTriggers lowercases and tidies a comma-separated trigger list.
func normalizeTriggers(v *string) *string {
	if v == nil {
		return nil
	}
	parts := strings.Split(*v, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.ToLower(strings.TrimSpace(p)); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	joined := strings.Join(cleaned, ", ")
	return &joined
}
