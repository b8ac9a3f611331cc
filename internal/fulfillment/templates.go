package fulfillment

import (
	"context"
	"database/sql"

	"github.com/lettertrack/lettertrack/internal/apperr"
	"github.com/lettertrack/lettertrack/internal/models"
)

// CreateTemplate stores a reusable letter template.
func (s *Service) CreateTemplate(ctx context.Context, tmpl *models.Template) (*models.Template, error) {
	if tmpl.Name == "" {
		return nil, apperr.Validation("template name is required")
	}
	if tmpl.Content == "" {
		return nil, apperr.Validation("template content is required")
	}
	if err := s.templates.Create(nil, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// GetTemplate retrieves a template by ID.
func (s *Service) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	tmpl, err := s.templates.GetByID(id)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, apperr.NotFound("template", id)
	}
	return tmpl, nil
}

// ListTemplates retrieves all templates.
func (s *Service) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	return s.templates.List()
}

// UpdateTemplate applies a partial update to a template.
func (s *Service) UpdateTemplate(ctx context.Context, id string, patch models.TemplatePatch) (*models.Template, error) {
	if name, ok := patch.Name.Value(); ok && name == "" {
		return nil, apperr.Validation("template name cannot be empty")
	}
	if content, ok := patch.Content.Value(); ok && content == "" {
		return nil, apperr.Validation("template content cannot be empty")
	}
	if _, err := s.GetTemplate(ctx, id); err != nil {
		return nil, err
	}
	if err := s.templates.Patch(nil, id, patch); err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, id)
}

// SetDefaultTemplate marks one template as the default, clearing the flag
// from all others in the same transaction.
func (s *Service) SetDefaultTemplate(ctx context.Context, id string) error {
	return s.db.WithTransaction(func(tx *sql.Tx) error {
		return s.templates.SetDefault(tx, id)
	})
}

// DeleteTemplate removes a template. Letters already produced from it keep
// their content; their template reference is cleared by the store.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := s.GetTemplate(ctx, id); err != nil {
		return err
	}
	return s.templates.Delete(id)
}
