package models

import "time"

// Letter is a generated letter body, versioned per request.
type Letter struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	TemplateID string    `json:"template_id,omitempty"`
	Version    int       `json:"version"`
	Content    string    `json:"content"`
	PDFPath    string    `json:"pdf_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Document represents an uploaded supporting file kept on disk.
type Document struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"request_id"`
	OriginalName string    `json:"original_name"`
	StoredPath   string    `json:"stored_path"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
