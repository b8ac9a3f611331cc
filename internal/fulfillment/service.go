package fulfillment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/access"
	"github.com/lettertrack/lettertrack/internal/apperr"
	"github.com/lettertrack/lettertrack/internal/email"
	"github.com/lettertrack/lettertrack/internal/models"
	"github.com/lettertrack/lettertrack/internal/render"
	"github.com/lettertrack/lettertrack/internal/repository"
	"github.com/lettertrack/lettertrack/internal/storage"
	"github.com/lettertrack/lettertrack/internal/upload"
	"github.com/lettertrack/lettertrack/pkg/database"
	"github.com/lettertrack/lettertrack/pkg/utils"
)

// Service orchestrates the letter request lifecycle: code issuance, document
// intake, letter production, dispatch and completion tracking. All
// collaborators are injected so tests can substitute doubles.
type Service struct {
	db           *database.DB
	requests     *repository.RequestRepository
	destinations *repository.DestinationRepository
	letters      *repository.LetterRepository
	documents    *repository.DocumentRepository
	templates    *repository.TemplateRepository
	issuer       *access.Issuer
	validator    *upload.Validator
	folders      *storage.FolderManager
	renderer     render.Renderer
	transport    email.Transport
	composer     email.ComposerConfig
	logger       *zap.Logger
}

// Deps bundles the service's collaborators.
type Deps struct {
	DB           *database.DB
	Requests     *repository.RequestRepository
	Destinations *repository.DestinationRepository
	Letters      *repository.LetterRepository
	Documents    *repository.DocumentRepository
	Templates    *repository.TemplateRepository
	Issuer       *access.Issuer
	Validator    *upload.Validator
	Folders      *storage.FolderManager
	Renderer     render.Renderer
	Transport    email.Transport
	Composer     email.ComposerConfig
	Logger       *zap.Logger
}

// NewService creates a fulfillment service.
func NewService(deps Deps) *Service {
	return &Service{
		db:           deps.DB,
		requests:     deps.Requests,
		destinations: deps.Destinations,
		letters:      deps.Letters,
		documents:    deps.Documents,
		templates:    deps.Templates,
		issuer:       deps.Issuer,
		validator:    deps.Validator,
		folders:      deps.Folders,
		renderer:     deps.Renderer,
		transport:    deps.Transport,
		composer:     deps.Composer,
		logger:       deps.Logger,
	}
}

// CreateRequestInput carries the professor-supplied fields of a new request.
type CreateRequestInput struct {
	StudentName    string
	StudentEmail   string
	Deadline       *time.Time
	ProfessorNotes string
}

// CreateRequest creates a letter request with a freshly issued access code.
// Code uniqueness runs through the bounded retry protocol; the access-code
// uniqueness constraint in the store is the correctness backstop for
// concurrent issuances.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (*models.LetterRequest, error) {
	if err := validateRequestFields(input.StudentEmail, input.ProfessorNotes); err != nil {
		return nil, err
	}

	var req *models.LetterRequest
	code, err := s.issuer.Issue(ctx, func(ctx context.Context, code string) error {
		candidate := &models.LetterRequest{
			AccessCode:      code,
			CodeGeneratedAt: time.Now().UTC(),
			Status:          models.RequestStatusPending,
			StudentName:     input.StudentName,
			StudentEmail:    input.StudentEmail,
			Deadline:        input.Deadline,
			ProfessorNotes:  input.ProfessorNotes,
		}
		if err := s.requests.Create(nil, candidate); err != nil {
			return err
		}
		req = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Letter request created",
		zap.String("request_id", req.ID),
		zap.String("access_code", code))
	return req, nil
}

// GetRequest retrieves a request by ID.
func (s *Service) GetRequest(ctx context.Context, id string) (*models.LetterRequest, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperr.NotFound("request", id)
	}
	return req, nil
}

// GetRequestByAccessCode retrieves a request by its access code. This is the
// student-facing lookup; it never mutates status.
func (s *Service) GetRequestByAccessCode(ctx context.Context, code string) (*models.LetterRequest, error) {
	req, err := s.requests.GetByAccessCode(code)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperr.NotFound("request", code)
	}
	return req, nil
}

// ListRequests retrieves requests matching the filter.
func (s *Service) ListRequests(ctx context.Context, filter repository.ListFilter) ([]*models.LetterRequest, error) {
	if filter.Status != "" && !models.ValidRequestStatus(filter.Status) {
		return nil, apperr.Validationf("unknown request status %q", filter.Status)
	}
	return s.requests.List(filter)
}

// UpdateRequest applies a partial update by professor action. A later
// destination change re-runs completion aggregation regardless of the status
// set here.
func (s *Service) UpdateRequest(ctx context.Context, id string, patch models.RequestPatch) (*models.LetterRequest, error) {
	if status, ok := patch.Status.Value(); ok && !models.ValidRequestStatus(status) {
		return nil, apperr.Validationf("unknown request status %q", status)
	}
	if notes, ok := patch.ProfessorNotes.Value(); ok && len(notes) > models.MaxProfessorNotesLen {
		return nil, apperr.Validationf("professor notes exceed %d characters", models.MaxProfessorNotesLen)
	}
	if em, ok := patch.StudentEmail.Value(); ok && em != "" {
		if err := utils.ValidateEmail(em); err != nil {
			return nil, apperr.Validation(err.Error())
		}
	}

	if _, err := s.GetRequest(ctx, id); err != nil {
		return nil, err
	}
	if err := s.requests.Patch(nil, id, patch); err != nil {
		return nil, err
	}
	return s.GetRequest(ctx, id)
}

// DeleteRequest removes a request along with its owned documents,
// destinations and letters. On-disk uploads are cleaned best-effort; the
// database cascade is the source of truth.
func (s *Service) DeleteRequest(ctx context.Context, id string) error {
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}

	if err := s.requests.Delete(id); err != nil {
		return err
	}

	if err := s.folders.DeleteRequestFolder(req.AccessCode); err != nil {
		s.logger.Warn("Failed to clean request upload folder",
			zap.String("request_id", id),
			zap.Error(err))
	}

	s.logger.Info("Letter request deleted", zap.String("request_id", id))
	return nil
}

// RegenerateAccessCode replaces a request's access code through the same
// bounded retry protocol and stamps the generation time.
func (s *Service) RegenerateAccessCode(ctx context.Context, id string) (*models.LetterRequest, error) {
	if _, err := s.GetRequest(ctx, id); err != nil {
		return nil, err
	}

	generatedAt := time.Now().UTC()
	code, err := s.issuer.Issue(ctx, func(ctx context.Context, code string) error {
		return s.requests.UpdateAccessCode(nil, id, code, generatedAt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Access code regenerated",
		zap.String("request_id", id),
		zap.String("access_code", code))
	return s.GetRequest(ctx, id)
}

func validateRequestFields(studentEmail, notes string) error {
	if len(notes) > models.MaxProfessorNotesLen {
		return apperr.Validationf("professor notes exceed %d characters", models.MaxProfessorNotesLen)
	}
	if studentEmail != "" {
		if err := utils.ValidateEmail(studentEmail); err != nil {
			return apperr.Validation(err.Error())
		}
	}
	return nil
}
