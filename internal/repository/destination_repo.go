package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/models"
)

// DestinationRepository handles submission destination database operations
type DestinationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDestinationRepository creates a new destination repository
func NewDestinationRepository(db *sql.DB, logger *zap.Logger) *DestinationRepository {
	return &DestinationRepository{
		db:     db,
		logger: logger,
	}
}

const destinationColumns = `id, request_id, method, status, recipient_email,
	recipient_name, institution_name, program_name, sent_at, confirmed_at,
	failure_reason, created_at, updated_at`

// Create inserts a new destination, always starting at PENDING.
func (r *DestinationRepository) Create(tx *sql.Tx, d *models.SubmissionDestination) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.Status = models.DestinationStatusPending

	query := `
		INSERT INTO submission_destinations (
			id, request_id, method, status, recipient_email, recipient_name,
			institution_name, program_name, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []interface{}{
		d.ID, d.RequestID, d.Method, d.Status, d.RecipientEmail,
		d.RecipientName, d.InstitutionName, d.ProgramName, d.CreatedAt, d.UpdatedAt,
	}

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to create destination", zap.Error(err))
		return fmt.Errorf("failed to create destination: %w", err)
	}
	return nil
}

// GetByID retrieves a destination by ID. Returns nil when absent.
func (r *DestinationRepository) GetByID(id string) (*models.SubmissionDestination, error) {
	query := `SELECT ` + destinationColumns + ` FROM submission_destinations WHERE id = ?`

	d, err := scanDestination(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get destination", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get destination: %w", err)
	}
	return d, nil
}

// ListByRequest retrieves all destinations owned by a request, oldest first.
func (r *DestinationRepository) ListByRequest(requestID string) ([]*models.SubmissionDestination, error) {
	query := `SELECT ` + destinationColumns + ` FROM submission_destinations
		WHERE request_id = ? ORDER BY created_at ASC`

	rows, err := r.db.Query(query, requestID)
	if err != nil {
		r.logger.Error("Failed to list destinations", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}
	defer rows.Close()

	var destinations []*models.SubmissionDestination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan destination: %w", err)
		}
		destinations = append(destinations, d)
	}
	return destinations, rows.Err()
}

// UpdateDelivery writes the delivery-state columns after a lifecycle
// transition: status, both timestamps and the failure reason, exactly as the
// tracker computed them.
func (r *DestinationRepository) UpdateDelivery(tx *sql.Tx, d *models.SubmissionDestination) error {
	query := `
		UPDATE submission_destinations
		SET status = ?, sent_at = ?, confirmed_at = ?, failure_reason = ?, updated_at = ?
		WHERE id = ?
	`

	d.UpdatedAt = time.Now().UTC()
	args := []interface{}{
		d.Status,
		nullableTime(d.SentAt),
		nullableTime(d.ConfirmedAt),
		d.FailureReason,
		d.UpdatedAt,
		d.ID,
	}

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to update destination delivery state",
			zap.String("id", d.ID),
			zap.String("status", d.Status),
			zap.Error(err))
		return fmt.Errorf("failed to update destination: %w", err)
	}
	return nil
}

// Patch applies a partial update of the recipient fields.
func (r *DestinationRepository) Patch(tx *sql.Tx, id string, patch models.DestinationPatch) error {
	var sets []string
	var args []interface{}

	apply := func(column string, f models.Field[string]) {
		if f.IsSet() {
			v, _ := f.Value()
			sets = append(sets, column+" = ?")
			args = append(args, v)
		}
	}
	apply("recipient_email", patch.RecipientEmail)
	apply("recipient_name", patch.RecipientName)
	apply("institution_name", patch.InstitutionName)
	apply("program_name", patch.ProgramName)

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := "UPDATE submission_destinations SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to patch destination", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to patch destination: %w", err)
	}
	return nil
}

// Delete removes a destination.
func (r *DestinationRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM submission_destinations WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete destination", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete destination: %w", err)
	}
	return nil
}

func scanDestination(row rowScanner) (*models.SubmissionDestination, error) {
	var d models.SubmissionDestination
	var sentAt, confirmedAt sql.NullTime

	err := row.Scan(
		&d.ID,
		&d.RequestID,
		&d.Method,
		&d.Status,
		&d.RecipientEmail,
		&d.RecipientName,
		&d.InstitutionName,
		&d.ProgramName,
		&sentAt,
		&confirmedAt,
		&d.FailureReason,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sentAt.Valid {
		d.SentAt = &sentAt.Time
	}
	if confirmedAt.Valid {
		d.ConfirmedAt = &confirmedAt.Time
	}
	return &d, nil
}
