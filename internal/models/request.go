package models

import "time"

// LetterRequest represents one solicited recommendation letter.
type LetterRequest struct {
	ID              string     `json:"id"`
	AccessCode      string     `json:"access_code"`
	CodeGeneratedAt time.Time  `json:"code_generated_at"`
	Status          string     `json:"status"` // PENDING, SUBMITTED, IN_PROGRESS, COMPLETED
	StudentName     string     `json:"student_name"`
	StudentEmail    string     `json:"student_email,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	ProfessorNotes  string     `json:"professor_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Request status constants
const (
	RequestStatusPending    = "PENDING"
	RequestStatusSubmitted  = "SUBMITTED"
	RequestStatusInProgress = "IN_PROGRESS"
	RequestStatusCompleted  = "COMPLETED"
)

// MaxProfessorNotesLen bounds the free-text notes field.
const MaxProfessorNotesLen = 5000

// ValidRequestStatus reports whether s is one of the request statuses.
func ValidRequestStatus(s string) bool {
	switch s {
	case RequestStatusPending, RequestStatusSubmitted, RequestStatusInProgress, RequestStatusCompleted:
		return true
	}
	return false
}
