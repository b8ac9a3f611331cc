package fulfillment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/apperr"
	"github.com/lettertrack/lettertrack/internal/domain/lifecycle"
	"github.com/lettertrack/lettertrack/internal/models"
	"github.com/lettertrack/lettertrack/pkg/utils"
)

// AddDestinationInput carries the fields of a new submission destination.
type AddDestinationInput struct {
	Method          string
	RecipientEmail  string
	RecipientName   string
	InstitutionName string
	ProgramName     string
}

// AddDestination attaches a destination to a request. New destinations
// always start PENDING regardless of anything the caller supplies.
func (s *Service) AddDestination(ctx context.Context, requestID string, input AddDestinationInput) (*models.SubmissionDestination, error) {
	if !models.ValidMethod(input.Method) {
		return nil, apperr.Validationf("unknown delivery method %q", input.Method)
	}
	if input.RecipientEmail != "" {
		if err := utils.ValidateEmail(input.RecipientEmail); err != nil {
			return nil, apperr.Validation(err.Error())
		}
	}
	if _, err := s.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}

	dest := &models.SubmissionDestination{
		RequestID:       requestID,
		Method:          input.Method,
		RecipientEmail:  input.RecipientEmail,
		RecipientName:   input.RecipientName,
		InstitutionName: input.InstitutionName,
		ProgramName:     input.ProgramName,
	}
	if err := s.destinations.Create(nil, dest); err != nil {
		return nil, err
	}
	return dest, nil
}

// GetDestination retrieves a destination by ID.
func (s *Service) GetDestination(ctx context.Context, id string) (*models.SubmissionDestination, error) {
	dest, err := s.destinations.GetByID(id)
	if err != nil {
		return nil, err
	}
	if dest == nil {
		return nil, apperr.NotFound("destination", id)
	}
	return dest, nil
}

// ListDestinations retrieves a request's destinations, oldest first.
func (s *Service) ListDestinations(ctx context.Context, requestID string) ([]*models.SubmissionDestination, error) {
	if _, err := s.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.destinations.ListByRequest(requestID)
}

// UpdateDestination applies a partial update to recipient fields. Status and
// delivery stamps only move through the transition methods below.
func (s *Service) UpdateDestination(ctx context.Context, id string, patch models.DestinationPatch) (*models.SubmissionDestination, error) {
	if em, ok := patch.RecipientEmail.Value(); ok && em != "" {
		if err := utils.ValidateEmail(em); err != nil {
			return nil, apperr.Validation(err.Error())
		}
	}
	if _, err := s.GetDestination(ctx, id); err != nil {
		return nil, err
	}
	if err := s.destinations.Patch(nil, id, patch); err != nil {
		return nil, err
	}
	return s.GetDestination(ctx, id)
}

// RemoveDestination deletes a destination and re-runs completion
// aggregation, since removing a pending destination can leave the request
// fully delivered.
func (s *Service) RemoveDestination(ctx context.Context, id string) error {
	dest, err := s.GetDestination(ctx, id)
	if err != nil {
		return err
	}
	if err := s.destinations.Delete(id); err != nil {
		return err
	}
	return s.reevaluateCompletion(ctx, dest.RequestID)
}

// MarkDestinationSent records delivery of the letter to a destination, for
// methods handled outside the system (DOWNLOAD, PORTAL) or an email the
// professor sent from their own client.
func (s *Service) MarkDestinationSent(ctx context.Context, id string) (*models.SubmissionDestination, error) {
	return s.transition(ctx, id, lifecycle.TriggerMarkSent, "")
}

// ConfirmDestination records institutional receipt of an already-sent
// letter.
func (s *Service) ConfirmDestination(ctx context.Context, id string) (*models.SubmissionDestination, error) {
	return s.transition(ctx, id, lifecycle.TriggerConfirm, "")
}

// FailDestination records a delivery failure with its reason.
func (s *Service) FailDestination(ctx context.Context, id, reason string) (*models.SubmissionDestination, error) {
	return s.transition(ctx, id, lifecycle.TriggerFail, reason)
}

// ResetDestination returns a destination to PENDING, clearing delivery
// stamps. If the owning request was COMPLETED it reverts to IN_PROGRESS.
func (s *Service) ResetDestination(ctx context.Context, id string) (*models.SubmissionDestination, error) {
	return s.transition(ctx, id, lifecycle.TriggerReset, "")
}

// transition drives a destination through the lifecycle machine, stamps the
// delivery fields the new state requires and re-runs completion aggregation
// for the owning request.
func (s *Service) transition(ctx context.Context, id string, trigger lifecycle.Trigger, failureReason string) (*models.SubmissionDestination, error) {
	dest, err := s.GetDestination(ctx, id)
	if err != nil {
		return nil, err
	}

	machine, err := lifecycle.NewMachine(lifecycle.State(dest.Status))
	if err != nil {
		return nil, apperr.Validationf("destination %s has invalid status %q", id, dest.Status)
	}
	if err := machine.Fire(trigger); err != nil {
		return nil, apperr.Preconditionf("cannot %s destination %s in status %s", trigger, id, dest.Status)
	}

	now := time.Now().UTC()
	dest.Status = machine.State().String()
	switch machine.State() {
	case lifecycle.StateSent:
		dest.SentAt = &now
		dest.FailureReason = ""
	case lifecycle.StateConfirmed:
		dest.ConfirmedAt = &now
	case lifecycle.StateFailed:
		dest.FailureReason = failureReason
	case lifecycle.StatePending:
		dest.SentAt = nil
		dest.ConfirmedAt = nil
		dest.FailureReason = ""
	}

	if err := s.destinations.UpdateDelivery(nil, dest); err != nil {
		return nil, err
	}
	s.logger.Info("Destination transitioned",
		zap.String("destination_id", id),
		zap.String("trigger", trigger.String()),
		zap.String("status", dest.Status))

	if err := s.reevaluateCompletion(ctx, dest.RequestID); err != nil {
		return nil, err
	}
	return dest, nil
}

// reevaluateCompletion recomputes the owning request's status from its
// destinations. A request with at least one destination, all of them SENT or
// CONFIRMED, is COMPLETED; a COMPLETED request whose destinations no longer
// all qualify reverts to IN_PROGRESS. A request with zero destinations never
// completes.
func (s *Service) reevaluateCompletion(ctx context.Context, requestID string) error {
	req, err := s.requests.GetByID(requestID)
	if err != nil {
		return err
	}
	if req == nil {
		// Removed concurrently; nothing to aggregate.
		return nil
	}

	dests, err := s.destinations.ListByRequest(requestID)
	if err != nil {
		return err
	}

	allDelivered := len(dests) > 0
	for _, d := range dests {
		if !d.Delivered() {
			allDelivered = false
			break
		}
	}

	switch {
	case allDelivered && req.Status != models.RequestStatusCompleted:
		s.logger.Info("Request completed", zap.String("request_id", requestID))
		return s.requests.UpdateStatus(nil, requestID, models.RequestStatusCompleted)
	case !allDelivered && req.Status == models.RequestStatusCompleted:
		s.logger.Info("Request reverted to in progress", zap.String("request_id", requestID))
		return s.requests.UpdateStatus(nil, requestID, models.RequestStatusInProgress)
	}
	return nil
}
