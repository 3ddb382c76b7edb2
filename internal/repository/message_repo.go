package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/personaforge/personaforge/internal/models"
)

// SQLiteMessageRepository implements MessageRepository for SQLite/libsql.
type SQLiteMessageRepository struct {
	db *sql.DB
}

// NewSQLiteMessageRepository creates a new SQLite message repository.
func NewSQLiteMessageRepository(db *sql.DB) *SQLiteMessageRepository {
	return &SQLiteMessageRepository{db: db}
}

// Create appends a message to a chat's history.
func (r *SQLiteMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, role, content, persona_id, embedded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.ChatID,
		msg.Role,
		msg.Content,
		msg.PersonaID,
		boolToInt(msg.Embedded),
		msg.CreatedAt.Format(time.RFC3339),
	)

	return err
}

// GetRecent returns the most recent messages for a chat in chronological
// order, capped at limit.
func (r *SQLiteMessageRepository) GetRecent(ctx context.Context, chatID int64, limit int) ([]*models.Message, error) {
	// IDs are ULIDs, so lexicographic order is creation order.
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, role, content, persona_id, embedded, created_at
		FROM (
			SELECT id, chat_id, role, content, persona_id, embedded, created_at
			FROM messages
			WHERE chat_id = ?
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetUnembedded returns messages the memory indexer has not processed yet.
func (r *SQLiteMessageRepository) GetUnembedded(ctx context.Context, limit int) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, role, content, persona_id, embedded, created_at
		FROM messages
		WHERE embedded = 0
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MarkEmbedded flags messages as indexed into long-term memory.
func (r *SQLiteMessageRepository) MarkEmbedded(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET embedded = 1 WHERE id IN (`+placeholders+`)`, args...)
	return err
}

// DeleteOlderThan removes history older than the cutoff.
func (r *SQLiteMessageRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE created_at < ?`, before.Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetByChatID returns the full history for a chat, oldest first.
func (r *SQLiteMessageRepository) GetByChatID(ctx context.Context, chatID int64) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, role, content, persona_id, embedded, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY id ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*models.Message, error) {
	var msgs []*models.Message
	for rows.Next() {
		var m models.Message
		var personaID sql.NullString
		var embedded int
		var createdAt string

		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &personaID, &embedded, &createdAt); err != nil {
			return nil, err
		}

		if personaID.Valid {
			m.PersonaID = &personaID.String
		}
		m.Embedded = embedded != 0
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
