package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/personaforge/personaforge/internal/models"
	"github.com/personaforge/personaforge/internal/service"
)

// PersonaHandler handles persona management endpoints.
type PersonaHandler struct {
	personas *service.PersonaService
}

// NewPersonaHandler creates a new persona handler.
func NewPersonaHandler(personas *service.PersonaService) *PersonaHandler {
	return &PersonaHandler{personas: personas}
}

// PersonaOutput represents a persona in API responses.
type PersonaOutput struct {
	ID           string  `json:"id" doc:"Persona ID"`
	Name         string  `json:"name" doc:"Unique internal name"`
	SystemPrompt string  `json:"system_prompt" doc:"System prompt"`
	DisplayName  *string `json:"display_name,omitempty" doc:"Name shown when the persona replies"`
	Triggers     *string `json:"triggers,omitempty" doc:"Comma-separated trigger phrases"`
	IsActive     bool    `json:"is_active" doc:"Whether this is the default responder"`
	CreatedAt    string  `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt    string  `json:"updated_at" doc:"Last update timestamp"`
}

func personaToOutput(p *models.Persona) PersonaOutput {
	return PersonaOutput{
		ID:           p.ID,
		Name:         p.Name,
		SystemPrompt: p.SystemPrompt,
		DisplayName:  p.DisplayName,
		Triggers:     p.Triggers,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.Format(time.RFC3339),
	}
}

// ListPersonasOutput represents list personas response.
type ListPersonasOutput struct {
	Body struct {
		Personas []PersonaOutput `json:"personas" doc:"All personas"`
	}
}

// ListPersonas returns all personas.
func (h *PersonaHandler) ListPersonas(ctx context.Context, input *struct{}) (*ListPersonasOutput, error) {
	personas, err := h.personas.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list personas: " + err.Error())
	}

	output := &ListPersonasOutput{}
	for _, p := range personas {
		output.Body.Personas = append(output.Body.Personas, personaToOutput(p))
	}
	return output, nil
}

// GetPersonaInput represents get persona request.
type GetPersonaInput struct {
	ID string `path:"id" doc:"Persona ID"`
}

// GetPersonaOutput represents get persona response.
type GetPersonaOutput struct {
	Body PersonaOutput
}

// GetPersona retrieves a single persona.
func (h *PersonaHandler) GetPersona(ctx context.Context, input *GetPersonaInput) (*GetPersonaOutput, error) {
	persona, err := h.personas.Get(ctx, input.ID)
	if err != nil {
		if errors.Is(err, service.ErrPersonaNotFound) {
			return nil, huma.Error404NotFound("persona not found")
		}
		return nil, huma.Error500InternalServerError("failed to get persona: " + err.Error())
	}
	return &GetPersonaOutput{Body: personaToOutput(persona)}, nil
}

// CreatePersonaInput represents create persona request.
type CreatePersonaInput struct {
	Body struct {
		Name         string  `json:"name" minLength:"1" maxLength:"64" doc:"Unique internal name"`
		SystemPrompt string  `json:"system_prompt" minLength:"1" maxLength:"4000" doc:"System prompt"`
		DisplayName  *string `json:"display_name,omitempty" maxLength:"128" doc:"Name shown when the persona replies"`
		Triggers     *string `json:"triggers,omitempty" maxLength:"512" doc:"Comma-separated trigger phrases"`
	}
}

// CreatePersonaOutput represents create persona response.
type CreatePersonaOutput struct {
	Body PersonaOutput
}

// CreatePersona creates a new persona.
func (h *PersonaHandler) CreatePersona(ctx context.Context, input *CreatePersonaInput) (*CreatePersonaOutput, error) {
	persona, err := h.personas.Create(ctx, service.CreatePersonaInput{
		Name:         input.Body.Name,
		SystemPrompt: input.Body.SystemPrompt,
		DisplayName:  input.Body.DisplayName,
		Triggers:     input.Body.Triggers,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPersonaNameTaken):
			return nil, huma.Error409Conflict(err.Error())
		case errors.Is(err, service.ErrUnsafePrompt):
			return nil, huma.Error422UnprocessableEntity(err.Error())
		default:
			return nil, huma.Error500InternalServerError("failed to create persona: " + err.Error())
		}
	}
	return &CreatePersonaOutput{Body: personaToOutput(persona)}, nil
}

// UpdatePersonaInput represents update persona request.
type UpdatePersonaInput struct {
	ID   string `path:"id" doc:"Persona ID"`
	Body struct {
		SystemPrompt string  `json:"system_prompt,omitempty" maxLength:"4000" doc:"New system prompt (unchanged when empty)"`
		DisplayName  *string `json:"display_name,omitempty" maxLength:"128" doc:"New display name (empty string clears)"`
		Triggers     *string `json:"triggers,omitempty" maxLength:"512" doc:"New trigger list (empty string clears)"`
	}
}

// UpdatePersonaOutput represents update persona response.
type UpdatePersonaOutput struct {
	Body PersonaOutput
}

// UpdatePersona modifies an existing persona.
func (h *PersonaHandler) UpdatePersona(ctx context.Context, input *UpdatePersonaInput) (*UpdatePersonaOutput, error) {
	persona, err := h.personas.Update(ctx, input.ID, service.UpdatePersonaInput{
		SystemPrompt: input.Body.SystemPrompt,
		DisplayName:  input.Body.DisplayName,
		Triggers:     input.Body.Triggers,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPersonaNotFound):
			return nil, huma.Error404NotFound("persona not found")
		case errors.Is(err, service.ErrUnsafePrompt):
			return nil, huma.Error422UnprocessableEntity(err.Error())
		default:
			return nil, huma.Error500InternalServerError("failed to update persona: " + err.Error())
		}
	}
	return &UpdatePersonaOutput{Body: personaToOutput(persona)}, nil
}

// DeletePersonaInput represents delete persona request.
type DeletePersonaInput struct {
	ID string `path:"id" doc:"Persona ID"`
}

// DeletePersonaOutput represents delete persona response.
type DeletePersonaOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

// DeletePersona removes a persona.
func (h *PersonaHandler) DeletePersona(ctx context.Context, input *DeletePersonaInput) (*DeletePersonaOutput, error) {
	if err := h.personas.Delete(ctx, input.ID); err != nil {
		if errors.Is(err, service.ErrPersonaNotFound) {
			return nil, huma.Error404NotFound("persona not found")
		}
		return nil, huma.Error500InternalServerError("failed to delete persona: " + err.Error())
	}
	output := &DeletePersonaOutput{}
	output.Body.Deleted = true
	return output, nil
}

// ActivatePersonaInput represents activate persona request.
type ActivatePersonaInput struct {
	ID string `path:"id" doc:"Persona ID"`
}

// ActivatePersonaOutput represents activate persona response.
type ActivatePersonaOutput struct {
	Body struct {
		Activated bool `json:"activated"`
	}
}

// ActivatePersona marks a persona as the default responder.
func (h *PersonaHandler) ActivatePersona(ctx context.Context, input *ActivatePersonaInput) (*ActivatePersonaOutput, error) {
	if err := h.personas.Activate(ctx, input.ID); err != nil {
		if errors.Is(err, service.ErrPersonaNotFound) {
			return nil, huma.Error404NotFound("persona not found")
		}
		return nil, huma.Error500InternalServerError("failed to activate persona: " + err.Error())
	}
	output := &ActivatePersonaOutput{}
	output.Body.Activated = true
	return output, nil
}
