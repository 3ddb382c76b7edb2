package repository

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/personaforge/personaforge/internal/models"
)

// SQLiteMemoryRepository implements MemoryRepository for SQLite/libsql.
// Embeddings are stored as little-endian float64 blobs.
type SQLiteMemoryRepository struct {
	db *sql.DB
}

// NewSQLiteMemoryRepository creates a new SQLite memory repository.
func NewSQLiteMemoryRepository(db *sql.DB) *SQLiteMemoryRepository {
	return &SQLiteMemoryRepository{db: db}
}

// Create stores a memory with its embedding.
func (r *SQLiteMemoryRepository) Create(ctx context.Context, memory *models.Memory) error {
	if memory.ID == "" {
		memory.ID = ulid.Make().String()
	}
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO memories (id, chat_id, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		memory.ID,
		memory.ChatID,
		memory.Content,
		encodeEmbedding(memory.Embedding),
		memory.CreatedAt.Format(time.RFC3339),
	)

	return err
}

// GetByChatID returns all memories for a chat, newest first.
func (r *SQLiteMemoryRepository) GetByChatID(ctx context.Context, chatID int64) ([]*models.Memory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, content, embedding, created_at
		FROM memories
		WHERE chat_id = ?
		ORDER BY id DESC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []*models.Memory
	for rows.Next() {
		var m models.Memory
		var blob []byte
		var createdAt string

		if err := rows.Scan(&m.ID, &m.ChatID, &m.Content, &blob, &createdAt); err != nil {
			return nil, err
		}

		m.Embedding = decodeEmbedding(blob)
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		memories = append(memories, &m)
	}

	return memories, rows.Err()
}

// DeleteByChatID clears all memories for a chat.
func (r *SQLiteMemoryRepository) DeleteByChatID(ctx context.Context, chatID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE chat_id = ?`, chatID)
	return err
}

func encodeEmbedding(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float64 {
	v := make([]float64, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v
}
