package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileStorage defines the filesystem operations the upload pipeline needs.
type FileStorage interface {
	// SaveUpload writes content under the request's subdirectory and returns
	// the stored path. Parent directories are created as needed.
	SaveUpload(requestCode, filename string, content []byte) (string, error)

	// ReadPrefix reads up to n leading bytes of the stored file.
	ReadPrefix(path string, n int) ([]byte, error)

	// Remove deletes a stored file. Removing a path that does not exist is a
	// no-op, not an error.
	Remove(path string) error

	// ValidatePath checks path security (no traversal, within base)
	ValidatePath(path string) error
}

// LocalFileStorage implements FileStorage on the local filesystem, with all
// uploads partitioned under baseDir by request-code subdirectory.
type LocalFileStorage struct {
	baseDir string
	folders *FolderManager
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage.
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		folders: NewFolderManager(baseDir, logger),
		logger:  logger,
	}
}

// SaveUpload writes content to {baseDir}/{requestCode}/{filename}.
func (s *LocalFileStorage) SaveUpload(requestCode, filename string, content []byte) (string, error) {
	dir, err := s.folders.CreateRequestFolder(requestCode)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(dir, filepath.Base(filename))
	if err := s.ValidatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write upload",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Upload saved",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return fullPath, nil
}

// ReadPrefix returns up to n leading bytes of the file at path.
func (s *LocalFileStorage) ReadPrefix(path string, n int) ([]byte, error) {
	if err := s.ValidatePath(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return buf[:read], nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file prefix: %w", err)
	}
	return buf, nil
}

// Remove deletes the file at path. A missing file is treated as already
// removed.
func (s *LocalFileStorage) Remove(path string) error {
	if err := s.ValidatePath(path); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		s.logger.Error("Failed to remove file",
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("failed to remove file: %w", err)
	}

	s.logger.Debug("File removed", zap.String("path", path))
	return nil
}

// ValidatePath checks that the path is safe and within baseDir.
func (s *LocalFileStorage) ValidatePath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", path)
	}

	return nil
}
