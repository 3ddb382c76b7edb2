package repository

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/personaforge/personaforge/internal/database/migrations"
	"github.com/personaforge/personaforge/internal/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	return NewRepositories(setupTestDB(t))
}

func strPtr(s string) *string {
	return &s
}

func createTestPersona(t *testing.T, repos *Repositories, name string) *models.Persona {
	t.Helper()

	persona := &models.Persona{
		Name:         name,
		SystemPrompt: "You are " + name + ".",
	}
	if err := repos.Persona.Create(context.Background(), persona); err != nil {
		t.Fatalf("failed to create persona %q: %v", name, err)
	}
	return persona
}
