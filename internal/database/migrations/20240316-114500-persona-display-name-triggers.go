package migrations

func init() {
	Register(Migration{
		Timestamp:   "20240316-114500",
		Description: "Add display_name and triggers columns to personas",
		Up: []string{
			// display_name: the name the persona responds to in conversation.
			// NULL means callers fall back to the configured default bot name.
			`ALTER TABLE personas ADD COLUMN display_name TEXT`,

			// triggers: comma-separated keyword list that activates the
			// persona. NULL means no keyword-based activation.
			`ALTER TABLE personas ADD COLUMN triggers TEXT`,

			// Backfill existing personas so they keep answering to their name
			`UPDATE personas SET display_name = name WHERE display_name IS NULL`,
		},
	})
}
