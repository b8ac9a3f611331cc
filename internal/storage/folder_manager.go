package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// FolderManager manages per-request upload folders so independent requests
// never share a filesystem namespace.
type FolderManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewFolderManager creates a new FolderManager.
func NewFolderManager(baseDir string, logger *zap.Logger) *FolderManager {
	return &FolderManager{
		baseDir: baseDir,
		logger:  logger,
	}
}

// CreateRequestFolder creates {baseDir}/{requestCode}/ and returns its path.
func (m *FolderManager) CreateRequestFolder(requestCode string) (string, error) {
	if requestCode == "" {
		return "", fmt.Errorf("cannot create folder: empty request code")
	}

	safeName := m.SanitizeFolderName(requestCode)
	folderPath := filepath.Join(m.baseDir, safeName)

	if err := os.MkdirAll(folderPath, 0755); err != nil {
		m.logger.Error("Failed to create request folder",
			zap.String("request_code", requestCode),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	return folderPath, nil
}

// RequestFolderPath returns the folder path for a request code without
// creating it.
func (m *FolderManager) RequestFolderPath(requestCode string) string {
	return filepath.Join(m.baseDir, m.SanitizeFolderName(requestCode))
}

// DeleteRequestFolder removes a request folder and all contents. Deleting a
// folder that does not exist is a no-op.
func (m *FolderManager) DeleteRequestFolder(requestCode string) error {
	folderPath := m.RequestFolderPath(requestCode)

	if _, err := os.Stat(folderPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(folderPath); err != nil {
		m.logger.Error("Failed to delete request folder",
			zap.String("request_code", requestCode),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	m.logger.Debug("Deleted request folder",
		zap.String("request_code", requestCode),
		zap.String("folder_path", folderPath))

	return nil
}

// SanitizeFolderName returns a filesystem-safe version of the name.
// Removes path separators and special characters to prevent directory
// traversal.
func (m *FolderManager) SanitizeFolderName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")

	re := regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	return re.ReplaceAllString(name, "")
}
