// Package repository defines repository interfaces for data access.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/personaforge/personaforge/internal/models"
)

// PersonaRepository defines methods for persona data access.
type PersonaRepository interface {
	Create(ctx context.Context, persona *models.Persona) error
	GetByID(ctx context.Context, id string) (*models.Persona, error)
	GetByName(ctx context.Context, name string) (*models.Persona, error)
	List(ctx context.Context) ([]*models.Persona, error)
	Update(ctx context.Context, persona *models.Persona) error
	Delete(ctx context.Context, id string) error
	// GetActive returns the currently active persona, or nil if none is active.
	GetActive(ctx context.Context) (*models.Persona, error)
	// SetActive marks one persona active and deactivates all others.
	SetActive(ctx context.Context, id string) error
	// ListTriggered returns personas that have a non-null triggers column.
	ListTriggered(ctx context.Context) ([]*models.Persona, error)
}

// ChatSettingsRepository defines methods for per-chat settings access.
type ChatSettingsRepository interface {
	// Get returns settings for a chat, or nil if none are stored.
	Get(ctx context.Context, chatID int64) (*models.ChatSettings, error)
	Upsert(ctx context.Context, settings *models.ChatSettings) error
}

// MessageRepository defines methods for conversation history access.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	// GetRecent returns the most recent messages for a chat in
	// chronological order, capped at limit.
	GetRecent(ctx context.Context, chatID int64, limit int) ([]*models.Message, error)
	// GetUnembedded returns messages the memory indexer has not yet
	// processed, oldest first.
	GetUnembedded(ctx context.Context, limit int) ([]*models.Message, error)
	// MarkEmbedded flags messages as indexed into long-term memory.
	MarkEmbedded(ctx context.Context, ids []string) error
	// DeleteOlderThan removes history older than the cutoff, returning the
	// number of rows deleted.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	// GetByChatID returns the full history for a chat, oldest first.
	GetByChatID(ctx context.Context, chatID int64) ([]*models.Message, error)
}

// MemoryRepository defines methods for long-term memory access.
type MemoryRepository interface {
	Create(ctx context.Context, memory *models.Memory) error
	// GetByChatID returns all memories for a chat, newest first.
	GetByChatID(ctx context.Context, chatID int64) ([]*models.Memory, error)
	DeleteByChatID(ctx context.Context, chatID int64) error
}

// Repositories holds all repository instances.
type Repositories struct {
	Persona      PersonaRepository
	ChatSettings ChatSettingsRepository
	Message      MessageRepository
	Memory       MemoryRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Persona:      NewSQLitePersonaRepository(db),
		ChatSettings: NewSQLiteChatSettingsRepository(db),
		Message:      NewSQLiteMessageRepository(db),
		Memory:       NewSQLiteMemoryRepository(db),
	}
}
