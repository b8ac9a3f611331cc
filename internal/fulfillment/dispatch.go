package fulfillment

import (
	"context"

	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/apperr"
	"github.com/lettertrack/lettertrack/internal/email"
	"github.com/lettertrack/lettertrack/internal/models"
)

// DispatchEmail sends a rendered letter to an email destination. On success
// the destination moves to SENT; on a transport failure it moves to FAILED
// with the transport's message recorded verbatim, and the failure is
// returned to the caller.
func (s *Service) DispatchEmail(ctx context.Context, letterID, destinationID string) (*models.SubmissionDestination, error) {
	letter, err := s.letters.GetByID(letterID)
	if err != nil {
		return nil, err
	}
	if letter == nil {
		return nil, apperr.NotFound("letter", letterID)
	}

	dest, err := s.destinations.GetByID(destinationID)
	if err != nil {
		return nil, err
	}
	if dest == nil {
		return nil, apperr.NotFound("destination", destinationID)
	}

	if dest.RequestID != letter.RequestID {
		return nil, apperr.Preconditionf("destination %s does not belong to the letter's request", destinationID)
	}
	if dest.Method != models.MethodEmail {
		return nil, apperr.Preconditionf("destination %s has method %s, not %s", destinationID, dest.Method, models.MethodEmail)
	}
	if dest.RecipientEmail == "" {
		return nil, apperr.Validationf("destination %s has no recipient email address", destinationID)
	}

	req, err := s.GetRequest(ctx, letter.RequestID)
	if err != nil {
		return nil, err
	}

	artifact, err := s.artifactFor(letter, req)
	if err != nil {
		return nil, err
	}

	msg := email.ComposeLetterEmail(s.composer, req, dest)
	msg.Attachments = []string{artifact}

	if sendErr := s.transport.Send(ctx, msg); sendErr != nil {
		s.logger.Warn("Email dispatch failed",
			zap.String("destination_id", destinationID),
			zap.Error(sendErr))
		if _, ferr := s.FailDestination(ctx, destinationID, sendErr.Error()); ferr != nil {
			s.logger.Error("Failed to record dispatch failure",
				zap.String("destination_id", destinationID),
				zap.Error(ferr))
		}
		return nil, apperr.Transport("email dispatch failed", sendErr)
	}

	return s.MarkDestinationSent(ctx, destinationID)
}

// artifactFor returns the letter's deliverable file, rendering it lazily and
// recording the path on first use.
func (s *Service) artifactFor(letter *models.Letter, req *models.LetterRequest) (string, error) {
	if path, ok := s.renderer.ExistingArtifactPath(letter); ok {
		return path, nil
	}

	path, err := s.renderer.RenderArtifact(letter, req)
	if err != nil {
		return "", err
	}
	if err := s.letters.UpdatePDFPath(nil, letter.ID, path); err != nil {
		return "", err
	}
	letter.PDFPath = path
	return path, nil
}
