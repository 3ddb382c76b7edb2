package migrations

func init() {
	Register(Migration{
		Timestamp:   "20240105-000000",
		Description: "Initial schema",
		Up: []string{
			// Personas - configurable bot identities
			`CREATE TABLE IF NOT EXISTS personas (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				system_prompt TEXT NOT NULL,
				is_active INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_personas_name ON personas(name)`,

			// Chat settings - per-chat model parameters and reply behaviour
			`CREATE TABLE IF NOT EXISTS chat_settings (
				chat_id INTEGER PRIMARY KEY,
				model TEXT NOT NULL,
				temperature REAL NOT NULL DEFAULT 0.7,
				max_tokens INTEGER NOT NULL DEFAULT 2048,
				memory_depth INTEGER NOT NULL DEFAULT 10,
				rag_enabled INTEGER NOT NULL DEFAULT 0,
				active_persona_id TEXT REFERENCES personas(id) ON DELETE SET NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			// Messages - conversation history used for prompt context
			`CREATE TABLE IF NOT EXISTS messages (
				id TEXT PRIMARY KEY,
				chat_id INTEGER NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				persona_id TEXT REFERENCES personas(id) ON DELETE SET NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id, created_at)`,
		},
	})
}
