package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/apperr"
	"github.com/lettertrack/lettertrack/internal/models"
	"github.com/lettertrack/lettertrack/pkg/database"
)

// RequestRepository handles letter request database operations
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `id, access_code, code_generated_at, status, student_name,
	student_email, deadline, professor_notes, created_at, updated_at`

// Create inserts a new letter request. A unique-constraint violation on the
// access code surfaces as a Conflict so the issuer can retry.
func (r *RequestRepository) Create(tx *sql.Tx, req *models.LetterRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}

	query := `
		INSERT INTO letter_requests (
			id, access_code, code_generated_at, status, student_name,
			student_email, deadline, professor_notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []interface{}{
		req.ID,
		req.AccessCode,
		req.CodeGeneratedAt,
		req.Status,
		req.StudentName,
		req.StudentEmail,
		nullableTime(req.Deadline),
		req.ProfessorNotes,
		req.CreatedAt,
		req.UpdatedAt,
	}

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("request", "access code already in use")
		}
		r.logger.Error("Failed to create request", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// GetByID retrieves a letter request by ID. Returns nil when absent.
func (r *RequestRepository) GetByID(id string) (*models.LetterRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM letter_requests WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByAccessCode retrieves a letter request by access code. Returns nil
// when absent.
func (r *RequestRepository) GetByAccessCode(code string) (*models.LetterRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM letter_requests WHERE access_code = ?`
	return r.scanOne(r.db.QueryRow(query, code))
}

// CodeExists reports whether any live request holds the access code.
func (r *RequestRepository) CodeExists(code string) (bool, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM letter_requests WHERE access_code = ?`, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check access code: %w", err)
	}
	return n > 0, nil
}

// UpdateStatus updates the status of a request
func (r *RequestRepository) UpdateStatus(tx *sql.Tx, id, status string) error {
	query := `UPDATE letter_requests SET status = ?, updated_at = ? WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, status, time.Now().UTC(), id)
	} else {
		_, err = r.db.Exec(query, status, time.Now().UTC(), id)
	}

	if err != nil {
		r.logger.Error("Failed to update request status",
			zap.String("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

// UpdateAccessCode stores a regenerated access code and its generation
// timestamp. A unique violation surfaces as a Conflict for the retry loop.
func (r *RequestRepository) UpdateAccessCode(tx *sql.Tx, id, code string, generatedAt time.Time) error {
	query := `UPDATE letter_requests SET access_code = ?, code_generated_at = ?, updated_at = ? WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, code, generatedAt, time.Now().UTC(), id)
	} else {
		_, err = r.db.Exec(query, code, generatedAt, time.Now().UTC(), id)
	}

	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("request", "access code already in use")
		}
		r.logger.Error("Failed to update access code", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update access code: %w", err)
	}
	return nil
}

// Patch applies a partial update. Absent fields are untouched; null fields
// are cleared.
func (r *RequestRepository) Patch(tx *sql.Tx, id string, patch models.RequestPatch) error {
	var sets []string
	var args []interface{}

	if v, ok := patch.Status.Value(); ok {
		sets = append(sets, "status = ?")
		args = append(args, v)
	}
	if patch.StudentName.IsSet() {
		v, _ := patch.StudentName.Value()
		sets = append(sets, "student_name = ?")
		args = append(args, v)
	}
	if patch.StudentEmail.IsSet() {
		v, _ := patch.StudentEmail.Value()
		sets = append(sets, "student_email = ?")
		args = append(args, v)
	}
	if patch.Deadline.IsSet() {
		sets = append(sets, "deadline = ?")
		if v, ok := patch.Deadline.Value(); ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	if patch.ProfessorNotes.IsSet() {
		v, _ := patch.ProfessorNotes.Value()
		sets = append(sets, "professor_notes = ?")
		args = append(args, v)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := "UPDATE letter_requests SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to patch request", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to patch request: %w", err)
	}
	return nil
}

// Delete removes a request. Owned documents, destinations and letters go
// with it via foreign-key cascade.
func (r *RequestRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM letter_requests WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete request", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete request: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("request", id)
	}
	return nil
}

// ListFilter narrows a request listing.
type ListFilter struct {
	Status string
	Search string // matches student name or professor notes
	Limit  int
	Offset int
}

// List retrieves requests matching the filter, newest first.
func (r *RequestRepository) List(filter ListFilter) ([]*models.LetterRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM letter_requests`
	var conds []string
	var args []interface{}

	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conds = append(conds, "(student_name LIKE ? OR professor_notes LIKE ?)")
		like := "%" + filter.Search + "%"
		args = append(args, like, like)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.LetterRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *RequestRepository) scanOne(row *sql.Row) (*models.LetterRequest, error) {
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

func scanRequest(row rowScanner) (*models.LetterRequest, error) {
	var req models.LetterRequest
	var deadline sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.AccessCode,
		&req.CodeGeneratedAt,
		&req.Status,
		&req.StudentName,
		&req.StudentEmail,
		&deadline,
		&req.ProfessorNotes,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deadline.Valid {
		req.Deadline = &deadline.Time
	}
	return &req, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
