package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/apperr"
	"github.com/lettertrack/lettertrack/internal/models"
)

// TemplateRepository handles letter template database operations
type TemplateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

const templateColumns = `id, name, description, content, variables, is_default, created_at, updated_at`

// Create inserts a new template.
func (r *TemplateRepository) Create(tx *sql.Tx, tmpl *models.Template) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now

	variables, err := json.Marshal(tmpl.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal template variables: %w", err)
	}

	query := `
		INSERT INTO templates (id, name, description, content, variables, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := []interface{}{
		tmpl.ID, tmpl.Name, tmpl.Description, tmpl.Content,
		string(variables), tmpl.IsDefault, tmpl.CreatedAt, tmpl.UpdatedAt,
	}

	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to create template", zap.Error(err))
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// GetByID retrieves a template by ID. Returns nil when absent.
func (r *TemplateRepository) GetByID(id string) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = ?`

	tmpl, err := scanTemplate(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get template", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tmpl, nil
}

// GetDefault retrieves the default template, or nil when none is set.
func (r *TemplateRepository) GetDefault() (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE is_default = 1 LIMIT 1`

	tmpl, err := scanTemplate(r.db.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get default template", zap.Error(err))
		return nil, fmt.Errorf("failed to get default template: %w", err)
	}
	return tmpl, nil
}

// List retrieves all templates, default first, then by name.
func (r *TemplateRepository) List() ([]*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates ORDER BY is_default DESC, name ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list templates", zap.Error(err))
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

// SetDefault marks one template as default and unsets any previous default
// in the same transaction, so at most one template holds the flag at any
// instant.
func (r *TemplateRepository) SetDefault(tx *sql.Tx, id string) error {
	exec := r.db.Exec
	if tx != nil {
		exec = tx.Exec
	}

	if _, err := exec(`UPDATE templates SET is_default = 0, updated_at = ? WHERE is_default = 1`, time.Now().UTC()); err != nil {
		r.logger.Error("Failed to unset previous default template", zap.Error(err))
		return fmt.Errorf("failed to unset default template: %w", err)
	}

	result, err := exec(`UPDATE templates SET is_default = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to set default template", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to set default template: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("template", id)
	}
	return nil
}

// Patch applies a partial update.
func (r *TemplateRepository) Patch(tx *sql.Tx, id string, patch models.TemplatePatch) error {
	var sets []string
	var args []interface{}

	applyString := func(column string, f models.Field[string]) {
		if f.IsSet() {
			v, _ := f.Value()
			sets = append(sets, column+" = ?")
			args = append(args, v)
		}
	}
	applyString("name", patch.Name)
	applyString("description", patch.Description)
	applyString("content", patch.Content)

	if patch.Variables.IsSet() {
		v, _ := patch.Variables.Value()
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal template variables: %w", err)
		}
		sets = append(sets, "variables = ?")
		args = append(args, string(encoded))
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := "UPDATE templates SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to patch template", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to patch template: %w", err)
	}
	return nil
}

// Delete removes a template. Letters that referenced it keep their content;
// the reference becomes null.
func (r *TemplateRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete template", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var tmpl models.Template
	var variables string

	err := row.Scan(
		&tmpl.ID,
		&tmpl.Name,
		&tmpl.Description,
		&tmpl.Content,
		&variables,
		&tmpl.IsDefault,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if variables != "" {
		if err := json.Unmarshal([]byte(variables), &tmpl.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template variables: %w", err)
		}
	}
	return &tmpl, nil
}
