package fulfillment

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/apperr"
	"github.com/lettertrack/lettertrack/internal/models"
	"github.com/lettertrack/lettertrack/internal/upload"
)

// UploadOutcome reports the result of a document batch upload: the persisted
// documents and the original names of the rejected files.
type UploadOutcome struct {
	Accepted []*models.Document `json:"accepted"`
	Rejected []string           `json:"rejected"`
}

// UploadDocuments ingests a batch of student files against the request the
// access code identifies. Each file passes the declared-type check at
// ingress, is stored under an opaque name, and is then content-validated;
// only files whose bytes match their declared type are recorded as
// documents.
func (s *Service) UploadDocuments(ctx context.Context, accessCode string, files []upload.IncomingFile) (*UploadOutcome, error) {
	req, err := s.GetRequestByAccessCode(ctx, accessCode)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperr.Validation("no files supplied")
	}

	stored := make([]upload.StoredFile, 0, len(files))
	for _, f := range files {
		sf, err := s.validator.Store(req.AccessCode, f)
		if err != nil {
			// Roll back files already written in this batch.
			for _, prev := range stored {
				if rmErr := s.validator.Delete(prev.Path); rmErr != nil {
					s.logger.Warn("Failed to remove stored upload",
						zap.String("path", prev.Path),
						zap.Error(rmErr))
				}
			}
			return nil, err
		}
		stored = append(stored, sf)
	}

	result := s.validator.Validate(stored)

	outcome := &UploadOutcome{
		Accepted: make([]*models.Document, 0, len(result.Valid)),
		Rejected: result.Invalid,
	}

	// Record the batch atomically: either every validated file gets a
	// document row, or none does and the stored files are removed.
	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		for _, sf := range result.Valid {
			doc := &models.Document{
				RequestID:    req.ID,
				OriginalName: sf.OriginalName,
				StoredPath:   sf.Path,
				MimeType:     sf.DeclaredMIME,
				SizeBytes:    sf.Size,
			}
			if err := s.documents.Create(tx, doc); err != nil {
				return err
			}
			outcome.Accepted = append(outcome.Accepted, doc)
		}
		return nil
	})
	if err != nil {
		for _, sf := range result.Valid {
			if rmErr := s.validator.Delete(sf.Path); rmErr != nil {
				s.logger.Warn("Failed to remove stored upload",
					zap.String("path", sf.Path),
					zap.Error(rmErr))
			}
		}
		return nil, err
	}

	s.logger.Info("Document batch processed",
		zap.String("request_id", req.ID),
		zap.Int("accepted", len(outcome.Accepted)),
		zap.Int("rejected", len(outcome.Rejected)))
	return outcome, nil
}

// ListDocuments retrieves a request's documents.
func (s *Service) ListDocuments(ctx context.Context, requestID string) ([]*models.Document, error) {
	if _, err := s.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.documents.ListByRequest(requestID)
}

// DeleteDocument removes a document row and its stored file. A missing file
// on disk is not an error.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.documents.GetByID(id)
	if err != nil {
		return err
	}
	if doc == nil {
		return apperr.NotFound("document", id)
	}
	if err := s.documents.Delete(id); err != nil {
		return err
	}
	if err := s.validator.Delete(doc.StoredPath); err != nil {
		s.logger.Warn("Failed to remove document file",
			zap.String("path", doc.StoredPath),
			zap.Error(err))
	}
	return nil
}
