package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/personaforge/personaforge/internal/models"
	"github.com/personaforge/personaforge/internal/service"
)

// SettingsHandler handles per-chat settings endpoints.
type SettingsHandler struct {
	chat *service.ChatService
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(chat *service.ChatService) *SettingsHandler {
	return &SettingsHandler{chat: chat}
}

// ChatSettingsBody represents chat settings in requests and responses.
type ChatSettingsBody struct {
	Model             string  `json:"model" doc:"Ollama model name"`
	Temperature       float64 `json:"temperature" minimum:"0" maximum:"2" doc:"Sampling temperature"`
	MaxTokens         int     `json:"max_tokens" minimum:"1" maximum:"32768" doc:"Response token budget"`
	MemoryDepth       int     `json:"memory_depth" minimum:"1" maximum:"100" doc:"Recent messages included in the prompt"`
	RAGEnabled        bool    `json:"rag_enabled" doc:"Recall long-term memories into the prompt"`
	AutoReply         bool    `json:"auto_reply" doc:"Answer without being asked"`
	ReplyMode         string  `json:"reply_mode" enum:"all,mention" doc:"Reply to every message or only mentions"`
	ReplyCooldownSecs int64   `json:"reply_cooldown_seconds" minimum:"0" doc:"Minimum seconds between replies"`
	ActivePersonaID   *string `json:"active_persona_id,omitempty" doc:"Persona pinned to this chat"`
}

// GetSettingsInput represents get settings request.
type GetSettingsInput struct {
	ChatID int64 `path:"chat_id" doc:"Chat ID"`
}

// GetSettingsOutput represents get settings response.
type GetSettingsOutput struct {
	Body ChatSettingsBody
}

// GetSettings returns the effective settings for a chat.
func (h *SettingsHandler) GetSettings(ctx context.Context, input *GetSettingsInput) (*GetSettingsOutput, error) {
	settings, err := h.chat.Settings(ctx, input.ChatID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to fetch settings: " + err.Error())
	}

	return &GetSettingsOutput{Body: ChatSettingsBody{
		Model:             settings.Model,
		Temperature:       settings.Temperature,
		MaxTokens:         settings.MaxTokens,
		MemoryDepth:       settings.MemoryDepth,
		RAGEnabled:        settings.RAGEnabled,
		AutoReply:         settings.AutoReply,
		ReplyMode:         settings.ReplyMode,
		ReplyCooldownSecs: int64(settings.ReplyCooldown / time.Second),
		ActivePersonaID:   settings.ActivePersonaID,
	}}, nil
}

// UpdateSettingsInput represents update settings request.
type UpdateSettingsInput struct {
	ChatID int64 `path:"chat_id" doc:"Chat ID"`
	Body   ChatSettingsBody
}

// UpdateSettingsOutput represents update settings response.
type UpdateSettingsOutput struct {
	Body ChatSettingsBody
}

// UpdateSettings stores new settings for a chat.
func (h *SettingsHandler) UpdateSettings(ctx context.Context, input *UpdateSettingsInput) (*UpdateSettingsOutput, error) {
	settings := &models.ChatSettings{
		ChatID:          input.ChatID,
		Model:           input.Body.Model,
		Temperature:     input.Body.Temperature,
		MaxTokens:       input.Body.MaxTokens,
		MemoryDepth:     input.Body.MemoryDepth,
		RAGEnabled:      input.Body.RAGEnabled,
		AutoReply:       input.Body.AutoReply,
		ReplyMode:       input.Body.ReplyMode,
		ReplyCooldown:   time.Duration(input.Body.ReplyCooldownSecs) * time.Second,
		ActivePersonaID: input.Body.ActivePersonaID,
	}

	if err := h.chat.UpdateSettings(ctx, settings); err != nil {
		if errors.Is(err, service.ErrPersonaNotFound) {
			return nil, huma.Error422UnprocessableEntity("active persona does not exist")
		}
		return nil, huma.Error500InternalServerError("failed to update settings: " + err.Error())
	}

	return &UpdateSettingsOutput{Body: input.Body}, nil
}
