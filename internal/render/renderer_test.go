package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/models"
)

func TestPDFRenderer_RenderArtifact(t *testing.T) {
	dir := t.TempDir()
	r := NewPDFRenderer(dir, zap.NewNop())

	letter := &models.Letter{
		ID:      "letter-1",
		Version: 2,
		Content: "Dear Admissions Committee,\n\nIt is my pleasure to recommend Ada.",
	}
	req := &models.LetterRequest{AccessCode: "A2B3C4D5"}

	path, err := r.RenderArtifact(letter, req)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "A2B3C4D5", "letter_v2.pdf"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(content), 4)
	assert.Equal(t, "%PDF", string(content[:4]))
}

func TestPDFRenderer_ExistingArtifactPath(t *testing.T) {
	dir := t.TempDir()
	r := NewPDFRenderer(dir, zap.NewNop())

	letter := &models.Letter{ID: "letter-1", Version: 1, Content: "body"}
	req := &models.LetterRequest{AccessCode: "A2B3C4D5"}

	t.Run("not found before rendering", func(t *testing.T) {
		_, ok := r.ExistingArtifactPath(letter)
		assert.False(t, ok)
	})

	t.Run("found after rendering", func(t *testing.T) {
		path, err := r.RenderArtifact(letter, req)
		require.NoError(t, err)
		letter.PDFPath = path

		got, ok := r.ExistingArtifactPath(letter)
		assert.True(t, ok)
		assert.Equal(t, path, got)
	})

	t.Run("stale recorded path is not found", func(t *testing.T) {
		letter := &models.Letter{PDFPath: filepath.Join(dir, "gone.pdf")}
		_, ok := r.ExistingArtifactPath(letter)
		assert.False(t, ok)
	})
}
