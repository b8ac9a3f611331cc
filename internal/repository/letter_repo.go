package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/models"
)

// LetterRepository handles letter database operations
type LetterRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLetterRepository creates a new letter repository
func NewLetterRepository(db *sql.DB, logger *zap.Logger) *LetterRepository {
	return &LetterRepository{
		db:     db,
		logger: logger,
	}
}

const letterColumns = `id, request_id, template_id, version, content, pdf_path, created_at`

// Create inserts a new letter, assigning the next version for its request.
func (r *LetterRepository) Create(tx *sql.Tx, letter *models.Letter) error {
	if letter.ID == "" {
		letter.ID = uuid.NewString()
	}
	letter.CreatedAt = time.Now().UTC()

	versionQuery := `SELECT COALESCE(MAX(version), 0) + 1 FROM letters WHERE request_id = ?`
	insertQuery := `
		INSERT INTO letters (id, request_id, template_id, version, content, pdf_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	run := func(q func(query string, args ...interface{}) *sql.Row, exec func(query string, args ...interface{}) (sql.Result, error)) error {
		if err := q(versionQuery, letter.RequestID).Scan(&letter.Version); err != nil {
			return fmt.Errorf("failed to determine letter version: %w", err)
		}
		_, err := exec(insertQuery,
			letter.ID,
			letter.RequestID,
			nullableString(letter.TemplateID),
			letter.Version,
			letter.Content,
			letter.PDFPath,
			letter.CreatedAt,
		)
		return err
	}

	var err error
	if tx != nil {
		err = run(tx.QueryRow, tx.Exec)
	} else {
		err = run(r.db.QueryRow, r.db.Exec)
	}

	if err != nil {
		r.logger.Error("Failed to create letter",
			zap.String("request_id", letter.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to create letter: %w", err)
	}
	return nil
}

// GetByID retrieves a letter by ID. Returns nil when absent.
func (r *LetterRepository) GetByID(id string) (*models.Letter, error) {
	query := `SELECT ` + letterColumns + ` FROM letters WHERE id = ?`

	letter, err := scanLetter(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get letter", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get letter: %w", err)
	}
	return letter, nil
}

// ListByRequest retrieves a request's letters, newest version first.
func (r *LetterRepository) ListByRequest(requestID string) ([]*models.Letter, error) {
	query := `SELECT ` + letterColumns + ` FROM letters WHERE request_id = ? ORDER BY version DESC`

	rows, err := r.db.Query(query, requestID)
	if err != nil {
		r.logger.Error("Failed to list letters", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list letters: %w", err)
	}
	defer rows.Close()

	var letters []*models.Letter
	for rows.Next() {
		letter, err := scanLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan letter: %w", err)
		}
		letters = append(letters, letter)
	}
	return letters, rows.Err()
}

// UpdatePDFPath records where the rendered artifact for a letter lives.
func (r *LetterRepository) UpdatePDFPath(tx *sql.Tx, id, path string) error {
	query := `UPDATE letters SET pdf_path = ? WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, path, id)
	} else {
		_, err = r.db.Exec(query, path, id)
	}

	if err != nil {
		r.logger.Error("Failed to update letter pdf path", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update pdf path: %w", err)
	}
	return nil
}

// Delete removes a letter.
func (r *LetterRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM letters WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete letter", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete letter: %w", err)
	}
	return nil
}

func scanLetter(row rowScanner) (*models.Letter, error) {
	var letter models.Letter
	var templateID sql.NullString

	err := row.Scan(
		&letter.ID,
		&letter.RequestID,
		&templateID,
		&letter.Version,
		&letter.Content,
		&letter.PDFPath,
		&letter.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	letter.TemplateID = templateID.String
	return &letter, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
