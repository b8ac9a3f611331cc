package models

import "time"

// SubmissionDestination represents one place the finished letter must go.
type SubmissionDestination struct {
	ID              string     `json:"id"`
	RequestID       string     `json:"request_id"`
	Method          string     `json:"method"` // EMAIL, DOWNLOAD, PORTAL
	Status          string     `json:"status"` // PENDING, SENT, CONFIRMED, FAILED
	RecipientEmail  string     `json:"recipient_email,omitempty"`
	RecipientName   string     `json:"recipient_name,omitempty"`
	InstitutionName string     `json:"institution_name,omitempty"`
	ProgramName     string     `json:"program_name,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Destination method constants
const (
	MethodEmail    = "EMAIL"
	MethodDownload = "DOWNLOAD"
	MethodPortal   = "PORTAL"
)

// Destination status constants
const (
	DestinationStatusPending   = "PENDING"
	DestinationStatusSent      = "SENT"
	DestinationStatusConfirmed = "CONFIRMED"
	DestinationStatusFailed    = "FAILED"
)

// ValidMethod reports whether m is a supported delivery method.
func ValidMethod(m string) bool {
	switch m {
	case MethodEmail, MethodDownload, MethodPortal:
		return true
	}
	return false
}

// Delivered reports whether the destination no longer needs action for the
// owning request to complete.
func (d *SubmissionDestination) Delivered() bool {
	return d.Status == DestinationStatusSent || d.Status == DestinationStatusConfirmed
}
