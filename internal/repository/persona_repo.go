package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/personaforge/personaforge/internal/models"
)

// SQLitePersonaRepository implements PersonaRepository for SQLite/libsql.
type SQLitePersonaRepository struct {
	db *sql.DB
}

// NewSQLitePersonaRepository creates a new SQLite persona repository.
func NewSQLitePersonaRepository(db *sql.DB) *SQLitePersonaRepository {
	return &SQLitePersonaRepository{db: db}
}

const personaColumns = `id, name, system_prompt, display_name, triggers, is_active, created_at, updated_at`

// Create creates a new persona.
func (r *SQLitePersonaRepository) Create(ctx context.Context, persona *models.Persona) error {
	now := time.Now()
	if persona.ID == "" {
		persona.ID = ulid.Make().String()
	}
	persona.CreatedAt = now
	persona.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO personas (id, name, system_prompt, display_name, triggers, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		persona.ID,
		persona.Name,
		persona.SystemPrompt,
		persona.DisplayName,
		persona.Triggers,
		boolToInt(persona.IsActive),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)

	return err
}

// GetByID retrieves a persona by ID. Returns nil if not found.
func (r *SQLitePersonaRepository) GetByID(ctx context.Context, id string) (*models.Persona, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+personaColumns+` FROM personas WHERE id = ?
	`, id)

	return r.scanPersona(row)
}

// GetByName retrieves a persona by its internal name. Returns nil if not found.
func (r *SQLitePersonaRepository) GetByName(ctx context.Context, name string) (*models.Persona, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+personaColumns+` FROM personas WHERE name = ?
	`, name)

	return r.scanPersona(row)
}

// List returns all personas ordered by name.
func (r *SQLitePersonaRepository) List(ctx context.Context) ([]*models.Persona, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+personaColumns+` FROM personas ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanPersonas(rows)
}

// Update updates an existing persona.
func (r *SQLitePersonaRepository) Update(ctx context.Context, persona *models.Persona) error {
	persona.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		UPDATE personas SET
			name = ?,
			system_prompt = ?,
			display_name = ?,
			triggers = ?,
			is_active = ?,
			updated_at = ?
		WHERE id = ?
	`,
		persona.Name,
		persona.SystemPrompt,
		persona.DisplayName,
		persona.Triggers,
		boolToInt(persona.IsActive),
		persona.UpdatedAt.Format(time.RFC3339),
		persona.ID,
	)

	return err
}

// Delete removes a persona by ID.
func (r *SQLitePersonaRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM personas WHERE id = ?`, id)
	return err
}

// GetActive returns the active persona, or nil if none is active.
func (r *SQLitePersonaRepository) GetActive(ctx context.Context) (*models.Persona, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+personaColumns+` FROM personas WHERE is_active = 1 LIMIT 1
	`)

	return r.scanPersona(row)
}

// SetActive marks one persona active and deactivates all others.
func (r *SQLitePersonaRepository) SetActive(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE personas SET is_active = 0 WHERE is_active = 1`); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `UPDATE personas SET is_active = 1, updated_at = ? WHERE id = ?`,
		time.Now().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}

// ListTriggered returns personas with a non-null triggers column.
func (r *SQLitePersonaRepository) ListTriggered(ctx context.Context) ([]*models.Persona, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+personaColumns+` FROM personas WHERE triggers IS NOT NULL ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanPersonas(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLitePersonaRepository) scanOne(row rowScanner) (*models.Persona, error) {
	var p models.Persona
	var displayName, triggers sql.NullString
	var isActive int
	var createdAt, updatedAt string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.SystemPrompt,
		&displayName,
		&triggers,
		&isActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if displayName.Valid {
		p.DisplayName = &displayName.String
	}
	if triggers.Valid {
		p.Triggers = &triggers.String
	}
	p.IsActive = isActive != 0
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &p, nil
}

func (r *SQLitePersonaRepository) scanPersona(row *sql.Row) (*models.Persona, error) {
	p, err := r.scanOne(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *SQLitePersonaRepository) scanPersonas(rows *sql.Rows) ([]*models.Persona, error) {
	var personas []*models.Persona
	for rows.Next() {
		p, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
