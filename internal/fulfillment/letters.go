package fulfillment

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/apperr"
	"github.com/lettertrack/lettertrack/internal/models"
	"github.com/lettertrack/lettertrack/internal/templates"
)

// CreateLetterInput carries the material for a new letter version. When both
// TemplateID and Content are present the template wins; with neither, the
// default template is used. Variable values of nil substitute as empty
// strings.
type CreateLetterInput struct {
	TemplateID string
	Content    string
	Variables  map[string]*string
}

// CreateLetter produces a new version of the request's letter by
// interpolating variable values into the chosen template (or ad-hoc
// content). Supplied variables must cover every variable the template
// declares; tokens the template text contains beyond the declared set pass
// through verbatim.
func (s *Service) CreateLetter(ctx context.Context, requestID string, input CreateLetterInput) (*models.Letter, error) {
	if _, err := s.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}

	source := input.Content
	templateID := input.TemplateID

	if templateID == "" && source == "" {
		// Fall back to the default template when neither is given.
		tmpl, err := s.templates.GetDefault()
		if err != nil {
			return nil, err
		}
		if tmpl == nil {
			return nil, apperr.Validation("letter needs a template or content")
		}
		templateID = tmpl.ID
	}

	if templateID != "" {
		tmpl, err := s.GetTemplate(ctx, templateID)
		if err != nil {
			return nil, err
		}
		source = tmpl.Content
		if missing := uncoveredVariables(tmpl, input.Variables); len(missing) > 0 {
			return nil, apperr.Validationf("missing template variables: %s", strings.Join(missing, ", "))
		}
	}

	values := make(map[string]string, len(input.Variables))
	for name, v := range input.Variables {
		if v == nil {
			values[name] = ""
			continue
		}
		values[name] = *v
	}

	letter := &models.Letter{
		RequestID:  requestID,
		TemplateID: templateID,
		Content:    templates.Interpolate(source, values),
	}
	if err := s.letters.Create(nil, letter); err != nil {
		return nil, err
	}

	s.logger.Info("Letter created",
		zap.String("request_id", requestID),
		zap.String("letter_id", letter.ID),
		zap.Int("version", letter.Version))
	return letter, nil
}

// GetLetter retrieves a letter by ID.
func (s *Service) GetLetter(ctx context.Context, id string) (*models.Letter, error) {
	letter, err := s.letters.GetByID(id)
	if err != nil {
		return nil, err
	}
	if letter == nil {
		return nil, apperr.NotFound("letter", id)
	}
	return letter, nil
}

// ListLetters retrieves a request's letter versions, newest first.
func (s *Service) ListLetters(ctx context.Context, requestID string) ([]*models.Letter, error) {
	if _, err := s.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.letters.ListByRequest(requestID)
}

// LetterArtifact returns the path of the letter's rendered file, producing
// it on first use.
func (s *Service) LetterArtifact(ctx context.Context, id string) (string, error) {
	letter, err := s.GetLetter(ctx, id)
	if err != nil {
		return "", err
	}
	req, err := s.GetRequest(ctx, letter.RequestID)
	if err != nil {
		return "", err
	}
	return s.artifactFor(letter, req)
}

// DeleteLetter removes a letter version.
func (s *Service) DeleteLetter(ctx context.Context, id string) error {
	if _, err := s.GetLetter(ctx, id); err != nil {
		return err
	}
	return s.letters.Delete(id)
}

// uncoveredVariables returns the names of declared template variables absent
// from values. An explicit nil value counts as covered; it substitutes as an
// empty string.
func uncoveredVariables(tmpl *models.Template, values map[string]*string) []string {
	lowered := make(map[string]bool, len(values))
	for name := range values {
		lowered[strings.ToLower(name)] = true
	}

	var missing []string
	for _, v := range tmpl.Variables {
		if !lowered[strings.ToLower(v.Name)] {
			missing = append(missing, v.Name)
		}
	}
	return missing
}
