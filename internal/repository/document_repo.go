package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/models"
)

// DocumentRepository handles uploaded document metadata
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

const documentColumns = `id, request_id, original_name, stored_path, mime_type, size_bytes, uploaded_at`

// Create inserts metadata for a validated upload.
func (r *DocumentRepository) Create(tx *sql.Tx, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.UploadedAt = time.Now().UTC()

	query := `
		INSERT INTO documents (id, request_id, original_name, stored_path, mime_type, size_bytes, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	args := []interface{}{
		doc.ID, doc.RequestID, doc.OriginalName, doc.StoredPath,
		doc.MimeType, doc.SizeBytes, doc.UploadedAt,
	}

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to create document", zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document by ID. Returns nil when absent.
func (r *DocumentRepository) GetByID(id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	var doc models.Document
	err := r.db.QueryRow(query, id).Scan(
		&doc.ID, &doc.RequestID, &doc.OriginalName, &doc.StoredPath,
		&doc.MimeType, &doc.SizeBytes, &doc.UploadedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// ListByRequest retrieves a request's documents, oldest first.
func (r *DocumentRepository) ListByRequest(requestID string) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE request_id = ? ORDER BY uploaded_at ASC`

	rows, err := r.db.Query(query, requestID)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(
			&doc.ID, &doc.RequestID, &doc.OriginalName, &doc.StoredPath,
			&doc.MimeType, &doc.SizeBytes, &doc.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Delete removes a document record.
func (r *DocumentRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete document", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
