package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/personaforge/personaforge/internal/models"
	"github.com/personaforge/personaforge/internal/service"
)

// ChatHandler handles the message pipeline and history endpoints.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// SendMessageInput represents an inbound chat message.
type SendMessageInput struct {
	ChatID int64 `path:"chat_id" doc:"Chat ID"`
	Body   struct {
		SenderID  int64  `json:"sender_id" doc:"Sender identity for security tracking"`
		Text      string `json:"text" minLength:"1" maxLength:"8000" doc:"Message text"`
		Mentioned bool   `json:"mentioned,omitempty" doc:"Whether the bot was addressed directly"`
		PageURL   string `json:"page_url,omitempty" format:"uri" doc:"Optional URL to pull in as reference context"`
	}
}

// SendMessageOutput represents the generated reply.
type SendMessageOutput struct {
	Body struct {
		Text          string `json:"text" doc:"Generated reply"`
		PersonaID     string `json:"persona_id" doc:"Persona that answered"`
		ResponderName string `json:"responder_name" doc:"Name the reply is attributed to"`
		Flagged       bool   `json:"flagged" doc:"Whether the inbound message tripped injection detection"`
	}
}

// SendMessage runs one message through the pipeline and returns the reply.
func (h *ChatHandler) SendMessage(ctx context.Context, input *SendMessageInput) (*SendMessageOutput, error) {
	reply, err := h.chat.HandleMessage(ctx, service.HandleMessageInput{
		ChatID:    input.ChatID,
		SenderID:  input.Body.SenderID,
		Text:      input.Body.Text,
		Mentioned: input.Body.Mentioned,
		PageURL:   input.Body.PageURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSenderBlocked), errors.Is(err, service.ErrSenderRateLimited):
			return nil, huma.Error429TooManyRequests(err.Error())
		case errors.Is(err, service.ErrReplySuppressed):
			return nil, huma.Error409Conflict(err.Error())
		case errors.Is(err, service.ErrNoPersona):
			return nil, huma.Error409Conflict("no persona is configured to answer")
		default:
			return nil, huma.Error500InternalServerError("failed to handle message: " + err.Error())
		}
	}

	output := &SendMessageOutput{}
	output.Body.Text = reply.Text
	output.Body.PersonaID = reply.PersonaID
	output.Body.ResponderName = reply.ResponderName
	output.Body.Flagged = reply.Flagged
	return output, nil
}

// MessageOutput represents one stored message.
type MessageOutput struct {
	ID        string  `json:"id" doc:"Message ID"`
	Role      string  `json:"role" doc:"user or assistant"`
	Content   string  `json:"content" doc:"Message text"`
	PersonaID *string `json:"persona_id,omitempty" doc:"Persona that authored an assistant message"`
	CreatedAt string  `json:"created_at" doc:"Creation timestamp"`
}

func messageToOutput(m *models.Message) MessageOutput {
	return MessageOutput{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		PersonaID: m.PersonaID,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

// GetHistoryInput represents history request.
type GetHistoryInput struct {
	ChatID int64 `path:"chat_id" doc:"Chat ID"`
}

// GetHistoryOutput represents history response.
type GetHistoryOutput struct {
	Body struct {
		ChatID   int64           `json:"chat_id"`
		Messages []MessageOutput `json:"messages" doc:"Messages oldest first"`
	}
}

// GetHistory returns the stored conversation for a chat.
func (h *ChatHandler) GetHistory(ctx context.Context, input *GetHistoryInput) (*GetHistoryOutput, error) {
	messages, err := h.chat.History(ctx, input.ChatID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to fetch history: " + err.Error())
	}

	output := &GetHistoryOutput{}
	output.Body.ChatID = input.ChatID
	for _, m := range messages {
		output.Body.Messages = append(output.Body.Messages, messageToOutput(m))
	}
	return output, nil
}
