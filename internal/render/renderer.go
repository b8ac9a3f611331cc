package render

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/models"
)

// Renderer produces the deliverable PDF artifact for a letter.
type Renderer interface {
	// ExistingArtifactPath returns the path of an already-rendered artifact,
	// or ok=false when none exists on disk.
	ExistingArtifactPath(letter *models.Letter) (path string, ok bool)

	// RenderArtifact renders the letter body to a PDF and returns its path.
	RenderArtifact(letter *models.Letter, req *models.LetterRequest) (string, error)
}

// PDFRenderer renders letters with gofpdf under outputDir, one subdirectory
// per request access code.
type PDFRenderer struct {
	outputDir string
	logger    *zap.Logger
}

// NewPDFRenderer creates a PDFRenderer.
func NewPDFRenderer(outputDir string, logger *zap.Logger) *PDFRenderer {
	return &PDFRenderer{
		outputDir: outputDir,
		logger:    logger,
	}
}

// ExistingArtifactPath checks the letter's recorded path, falling back to
// the conventional location.
func (r *PDFRenderer) ExistingArtifactPath(letter *models.Letter) (string, bool) {
	if letter.PDFPath != "" {
		if _, err := os.Stat(letter.PDFPath); err == nil {
			return letter.PDFPath, true
		}
	}
	return "", false
}

// RenderArtifact writes {outputDir}/{accessCode}/letter_v{version}.pdf.
func (r *PDFRenderer) RenderArtifact(letter *models.Letter, req *models.LetterRequest) (string, error) {
	dir := filepath.Join(r.outputDir, req.AccessCode)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create letter output directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("letter_v%d.pdf", letter.Version))

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(25, 25, 25)
	pdf.AddPage()
	pdf.SetFont("Times", "", 12)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.MultiCell(0, 6, tr(letter.Content), "", "L", false)

	if err := pdf.OutputFileAndClose(path); err != nil {
		r.logger.Error("Failed to render letter artifact",
			zap.String("letter_id", letter.ID),
			zap.String("path", path),
			zap.Error(err))
		return "", fmt.Errorf("failed to render letter pdf: %w", err)
	}

	r.logger.Info("Letter artifact rendered",
		zap.String("letter_id", letter.ID),
		zap.Int("version", letter.Version),
		zap.String("path", path))

	return path, nil
}
