package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/personaforge/personaforge/internal/config"
	"github.com/personaforge/personaforge/internal/llm"
	"github.com/personaforge/personaforge/internal/models"
	"github.com/personaforge/personaforge/internal/repository"
	"github.com/personaforge/personaforge/internal/security"
)

// Chat service errors.
var (
	// ErrSenderBlocked indicates the sender is temporarily blocked.
	ErrSenderBlocked = errors.New("sender blocked")

	// ErrSenderRateLimited indicates the sender must slow down.
	ErrSenderRateLimited = errors.New("sender rate limited")

	// ErrReplySuppressed indicates reply rules (mention mode, cooldown)
	// decided not to answer this message.
	ErrReplySuppressed = errors.New("reply suppressed")

	// ErrNoPersona indicates no persona could be resolved for the chat.
	ErrNoPersona = errors.New("no persona available")
)

// ChatService runs the message pipeline: security checks, persona
// resolution, context assembly, generation and persistence.
type ChatService struct {
	cfg      *config.Config
	repos    *repository.Repositories
	personas *PersonaService
	memories *MemoryService
	pages    *PageContextService
	ollama   *llm.OllamaClient
	tracker  *security.Tracker
	logger   *slog.Logger

	mu          sync.Mutex
	lastReplyAt map[int64]time.Time
}

// NewChatService creates a new chat service.
func NewChatService(
	cfg *config.Config,
	repos *repository.Repositories,
	personas *PersonaService,
	memories *MemoryService,
	pages *PageContextService,
	ollama *llm.OllamaClient,
	tracker *security.Tracker,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		cfg:         cfg,
		repos:       repos,
		personas:    personas,
		memories:    memories,
		pages:       pages,
		ollama:      ollama,
		tracker:     tracker,
		logger:      logger,
		lastReplyAt: make(map[int64]time.Time),
	}
}

// HandleMessageInput is one inbound chat message.
type HandleMessageInput struct {
	ChatID   int64
	SenderID int64
	Text     string
	// Mentioned is set when the sender addressed the bot directly.
	Mentioned bool
	// PageURL optionally points at a web page whose content should be
	// pulled in as reference context.
	PageURL string
}

// ChatReply is the generated answer and its attribution.
type ChatReply struct {
	Text          string
	PersonaID     string
	ResponderName string
	Flagged       bool
}

// HandleMessage processes one inbound message end to end.
func (s *ChatService) HandleMessage(ctx context.Context, input HandleMessageInput) (*ChatReply, error) {
	if remaining := s.tracker.IsBlocked(input.SenderID); remaining > 0 {
		return nil, fmt.Errorf("%w: %s remaining", ErrSenderBlocked, remaining.Round(time.Second))
	}

	sanitized := security.SanitizeUserInput(input.Text, maxMessageLength)
	check := s.tracker.CheckAndUpdate(input.SenderID, sanitized)
	switch check.Verdict {
	case security.VerdictBlocked, security.VerdictJustBlocked:
		s.logger.Warn("message rejected, sender blocked",
			slog.Int64("chat_id", input.ChatID),
			slog.Int64("sender_id", input.SenderID))
		return nil, fmt.Errorf("%w: %s remaining", ErrSenderBlocked, check.Remaining.Round(time.Second))
	case security.VerdictRateLimited:
		return nil, fmt.Errorf("%w: %s remaining", ErrSenderRateLimited, check.Remaining.Round(time.Second))
	case security.VerdictWarning:
		s.logger.Warn("injection attempt detected",
			slog.Int64("chat_id", input.ChatID),
			slog.Int64("sender_id", input.SenderID),
			slog.Int("risk_score", sanitized.RiskScore),
			slog.Any("patterns", sanitized.DetectedPatterns))
	}

	settings, err := s.effectiveSettings(ctx, input.ChatID)
	if err != nil {
		return nil, err
	}

	if err := s.checkReplyRules(input, settings); err != nil {
		return nil, err
	}

	persona, err := s.personas.ResolveForMessage(ctx, sanitized.Sanitized, settings)
	if err != nil {
		return nil, fmt.Errorf("resolving persona: %w", err)
	}
	if persona == nil {
		return nil, ErrNoPersona
	}

	userMsg := &models.Message{
		ChatID:  input.ChatID,
		Role:    models.RoleUser,
		Content: sanitized.Sanitized,
	}
	if err := s.repos.Message.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("storing user message: %w", err)
	}

	history, err := s.repos.Message.GetRecent(ctx, input.ChatID, settings.MemoryDepth)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}

	sections := s.gatherContext(ctx, input, settings, sanitized.Sanitized)

	responderName := persona.ResponderName(s.cfg.BotName)
	prompt := BuildSafePrompt(persona.SystemPrompt, sections, history, responderName)

	reply, err := s.ollama.Generate(ctx, settings.Model, prompt, llm.GenerateOptions{
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generating reply: %w", err)
	}
	reply = strings.TrimSpace(reply)

	assistantMsg := &models.Message{
		ChatID:    input.ChatID,
		Role:      models.RoleAssistant,
		Content:   reply,
		PersonaID: &persona.ID,
	}
	if err := s.repos.Message.Create(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("storing assistant message: %w", err)
	}

	s.mu.Lock()
	s.lastReplyAt[input.ChatID] = time.Now()
	s.mu.Unlock()

	return &ChatReply{
		Text:          reply,
		PersonaID:     persona.ID,
		ResponderName: responderName,
		Flagged:       check.Verdict == security.VerdictWarning,
	}, nil
}

// History returns the stored conversation for a chat.
func (s *ChatService) History(ctx context.Context, chatID int64) ([]*models.Message, error) {
	return s.repos.Message.GetByChatID(ctx, chatID)
}

// Settings returns the effective settings for a chat, filling defaults
// from configuration when the chat has none stored.
func (s *ChatService) Settings(ctx context.Context, chatID int64) (*models.ChatSettings, error) {
	return s.effectiveSettings(ctx, chatID)
}

// UpdateSettings stores new settings for a chat.
func (s *ChatService) UpdateSettings(ctx context.Context, settings *models.ChatSettings) error {
	if settings.ActivePersonaID != nil {
		persona, err := s.repos.Persona.GetByID(ctx, *settings.ActivePersonaID)
		if err != nil {
			return err
		}
		if persona == nil {
			return fmt.Errorf("%w: %s", ErrPersonaNotFound, *settings.ActivePersonaID)
		}
	}
	return s.repos.ChatSettings.Upsert(ctx, settings)
}

func (s *ChatService) effectiveSettings(ctx context.Context, chatID int64) (*models.ChatSettings, error) {
	settings, err := s.repos.ChatSettings.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("fetching chat settings: %w", err)
	}
	if settings == nil {
		settings = &models.ChatSettings{
			ChatID:        chatID,
			Model:         s.cfg.ChatModel,
			Temperature:   s.cfg.DefaultTemperature,
			MaxTokens:     s.cfg.DefaultMaxTokens,
			MemoryDepth:   s.cfg.DefaultMemoryDepth,
			RAGEnabled:    true,
			AutoReply:     true,
			ReplyMode:     models.ReplyToMention,
			ReplyCooldown: s.cfg.DefaultReplyCooldown,
		}
	}
	if settings.Model == "" {
		settings.Model = s.cfg.ChatModel
	}
	if settings.MemoryDepth <= 0 {
		settings.MemoryDepth = s.cfg.DefaultMemoryDepth
	}
	return settings, nil
}

// checkReplyRules enforces auto-reply mode and per-chat cooldown.
func (s *ChatService) checkReplyRules(input HandleMessageInput, settings *models.ChatSettings) error {
	if !settings.AutoReply && !input.Mentioned {
		return fmt.Errorf("%w: auto-reply disabled", ErrReplySuppressed)
	}
	if settings.ReplyMode == models.ReplyToMention && !input.Mentioned {
		return fmt.Errorf("%w: mention required", ErrReplySuppressed)
	}

	if settings.ReplyCooldown > 0 {
		s.mu.Lock()
		last, ok := s.lastReplyAt[input.ChatID]
		s.mu.Unlock()
		if ok {
			if remaining := settings.ReplyCooldown - time.Since(last); remaining > 0 {
				return fmt.Errorf("%w: cooldown, %s remaining", ErrReplySuppressed, remaining.Round(time.Second))
			}
		}
	}
	return nil
}

// gatherContext collects optional reference sections: recalled memories
// when RAG is enabled, and fetched page content when a URL is supplied.
// Context failures degrade the reply rather than failing it.
func (s *ChatService) gatherContext(ctx context.Context, input HandleMessageInput, settings *models.ChatSettings, query string) []ContextSection {
	var sections []ContextSection

	if settings.RAGEnabled && s.memories != nil {
		memories, err := s.memories.Recall(ctx, input.ChatID, query, 5)
		if err != nil {
			s.logger.Warn("memory recall failed",
				slog.Int64("chat_id", input.ChatID),
				slog.String("error", err.Error()))
		} else if len(memories) > 0 {
			var b strings.Builder
			for _, m := range memories {
				b.WriteString("- ")
				b.WriteString(m.Content)
				b.WriteString("\n")
			}
			sections = append(sections, ContextSection{Name: "MEMORIES", Content: b.String()})
		}
	}

	if input.PageURL != "" && s.pages != nil {
		content, err := s.pages.Fetch(ctx, input.PageURL)
		if err != nil {
			s.logger.Warn("page context fetch failed",
				slog.String("url", input.PageURL),
				slog.String("error", err.Error()))
		} else if content != "" {
			sections = append(sections, ContextSection{Name: "PAGE CONTEXT", Content: content})
		}
	}

	return sections
}
