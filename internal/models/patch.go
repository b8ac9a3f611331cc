package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Field is a tri-state optional value for partial updates: absent (zero
// Field), explicit null, or an explicit value. Absent fields are left
// untouched by an update; null fields are cleared.
type Field[T any] struct {
	set   bool
	null  bool
	value T
}

// NewField returns a Field carrying an explicit value.
func NewField[T any](v T) Field[T] {
	return Field[T]{set: true, value: v}
}

// NullField returns a Field that clears the column.
func NullField[T any]() Field[T] {
	return Field[T]{set: true, null: true}
}

// IsSet reports whether the field was supplied at all.
func (f Field[T]) IsSet() bool { return f.set }

// IsNull reports whether the field was supplied as an explicit null.
func (f Field[T]) IsNull() bool { return f.set && f.null }

// Value returns the carried value; ok is false when absent or null.
func (f Field[T]) Value() (v T, ok bool) {
	if !f.set || f.null {
		return v, false
	}
	return f.value, true
}

// UnmarshalJSON distinguishes a JSON null from a value. A field that never
// appears in the document keeps its zero (absent) state.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.null = true
		return nil
	}
	return json.Unmarshal(data, &f.value)
}

// MarshalJSON writes the carried value, or null when absent or cleared.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if v, ok := f.Value(); ok {
		return json.Marshal(v)
	}
	return []byte("null"), nil
}

// RequestPatch is a partial update of a LetterRequest.
type RequestPatch struct {
	Status         Field[string]    `json:"status"`
	StudentName    Field[string]    `json:"student_name"`
	StudentEmail   Field[string]    `json:"student_email"`
	Deadline       Field[time.Time] `json:"deadline"`
	ProfessorNotes Field[string]    `json:"professor_notes"`
}

// DestinationPatch is a partial update of a SubmissionDestination's
// recipient fields. Status and timestamps move only through the tracker.
type DestinationPatch struct {
	RecipientEmail  Field[string] `json:"recipient_email"`
	RecipientName   Field[string] `json:"recipient_name"`
	InstitutionName Field[string] `json:"institution_name"`
	ProgramName     Field[string] `json:"program_name"`
}

// TemplatePatch is a partial update of a Template.
type TemplatePatch struct {
	Name        Field[string]             `json:"name"`
	Description Field[string]             `json:"description"`
	Content     Field[string]             `json:"content"`
	Variables   Field[[]TemplateVariable] `json:"variables"`
}
