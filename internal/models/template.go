package models

import "time"

// Template is reusable letter text with named placeholder tokens.
type Template struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Content     string             `json:"content"`
	Variables   []TemplateVariable `json:"variables"`
	IsDefault   bool               `json:"is_default"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// TemplateVariable declares one placeholder the template expects.
type TemplateVariable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"` // student, professor, institution
}
