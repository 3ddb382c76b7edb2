package migrations

func init() {
	Register(Migration{
		Timestamp:   "20240501-083000",
		Description: "Add auto-reply mode and cooldown to chat settings",
		Up: []string{
			`ALTER TABLE chat_settings ADD COLUMN auto_reply INTEGER NOT NULL DEFAULT 1`,
			`ALTER TABLE chat_settings ADD COLUMN reply_mode TEXT NOT NULL DEFAULT 'mention'`,
			// Cooldown between bot replies in a chat, in seconds
			`ALTER TABLE chat_settings ADD COLUMN reply_cooldown_seconds INTEGER NOT NULL DEFAULT 0`,
		},
	})
}
