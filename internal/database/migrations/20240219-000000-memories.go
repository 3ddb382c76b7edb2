package migrations

func init() {
	Register(Migration{
		Timestamp:   "20240219-000000",
		Description: "Add long-term memory table and message embedding flag",
		Up: []string{
			// Memories - embedded conversation fragments for RAG recall.
			// Embeddings are stored as little-endian float64 blobs.
			`CREATE TABLE IF NOT EXISTS memories (
				id TEXT PRIMARY KEY,
				chat_id INTEGER NOT NULL,
				content TEXT NOT NULL,
				embedding BLOB NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_memories_chat_id ON memories(chat_id, created_at)`,

			// Marks messages the indexing worker has already embedded
			`ALTER TABLE messages ADD COLUMN embedded INTEGER NOT NULL DEFAULT 0`,
			`CREATE INDEX IF NOT EXISTS idx_messages_embedded ON messages(embedded)`,
		},
	})
}
