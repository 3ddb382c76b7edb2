package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/personaforge/personaforge/internal/models"
)

// SQLiteChatSettingsRepository implements ChatSettingsRepository for SQLite/libsql.
type SQLiteChatSettingsRepository struct {
	db *sql.DB
}

// NewSQLiteChatSettingsRepository creates a new SQLite chat settings repository.
func NewSQLiteChatSettingsRepository(db *sql.DB) *SQLiteChatSettingsRepository {
	return &SQLiteChatSettingsRepository{db: db}
}

// Get returns settings for a chat, or nil if none are stored.
func (r *SQLiteChatSettingsRepository) Get(ctx context.Context, chatID int64) (*models.ChatSettings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT chat_id, model, temperature, max_tokens, memory_depth, rag_enabled,
			   auto_reply, reply_mode, reply_cooldown_seconds, active_persona_id,
			   created_at, updated_at
		FROM chat_settings
		WHERE chat_id = ?
	`, chatID)

	var s models.ChatSettings
	var ragEnabled, autoReply int
	var cooldownSeconds int64
	var activePersonaID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&s.ChatID,
		&s.Model,
		&s.Temperature,
		&s.MaxTokens,
		&s.MemoryDepth,
		&ragEnabled,
		&autoReply,
		&s.ReplyMode,
		&cooldownSeconds,
		&activePersonaID,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.RAGEnabled = ragEnabled != 0
	s.AutoReply = autoReply != 0
	s.ReplyCooldown = time.Duration(cooldownSeconds) * time.Second
	if activePersonaID.Valid {
		s.ActivePersonaID = &activePersonaID.String
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &s, nil
}

// Upsert stores settings for a chat, inserting or replacing as needed.
func (r *SQLiteChatSettingsRepository) Upsert(ctx context.Context, settings *models.ChatSettings) error {
	now := time.Now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_settings (
			chat_id, model, temperature, max_tokens, memory_depth, rag_enabled,
			auto_reply, reply_mode, reply_cooldown_seconds, active_persona_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			model = excluded.model,
			temperature = excluded.temperature,
			max_tokens = excluded.max_tokens,
			memory_depth = excluded.memory_depth,
			rag_enabled = excluded.rag_enabled,
			auto_reply = excluded.auto_reply,
			reply_mode = excluded.reply_mode,
			reply_cooldown_seconds = excluded.reply_cooldown_seconds,
			active_persona_id = excluded.active_persona_id,
			updated_at = excluded.updated_at
	`,
		settings.ChatID,
		settings.Model,
		settings.Temperature,
		settings.MaxTokens,
		settings.MemoryDepth,
		boolToInt(settings.RAGEnabled),
		boolToInt(settings.AutoReply),
		settings.ReplyMode,
		int64(settings.ReplyCooldown/time.Second),
		settings.ActivePersonaID,
		settings.CreatedAt.Format(time.RFC3339),
		settings.UpdatedAt.Format(time.RFC3339),
	)

	return err
}
