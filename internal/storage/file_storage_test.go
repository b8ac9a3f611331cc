package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveUpload(t *testing.T) {
	tempDir := t.TempDir()
	fs := NewLocalFileStorage(tempDir, zap.NewNop())

	t.Run("saves under request subdirectory", func(t *testing.T) {
		path, err := fs.SaveUpload("A2B3C4D5", "transcript.pdf", []byte("%PDF-1.4 content"))

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tempDir, "A2B3C4D5", "transcript.pdf"), path)
		assert.FileExists(t, path)
	})

	t.Run("strips directory components from the filename", func(t *testing.T) {
		path, err := fs.SaveUpload("A2B3C4D5", "../../evil.pdf", []byte("x"))

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tempDir, "A2B3C4D5", "evil.pdf"), path)
	})

	t.Run("rejects empty request code", func(t *testing.T) {
		_, err := fs.SaveUpload("", "file.pdf", []byte("x"))
		assert.Error(t, err)
	})

	t.Run("partitions requests into separate folders", func(t *testing.T) {
		p1, err := fs.SaveUpload("REQUESTA", "cv.pdf", []byte("a"))
		require.NoError(t, err)
		p2, err := fs.SaveUpload("REQUESTB", "cv.pdf", []byte("b"))
		require.NoError(t, err)

		assert.NotEqual(t, p1, p2)
		c1, _ := os.ReadFile(p1)
		assert.Equal(t, []byte("a"), c1)
	})
}

func TestLocalFileStorage_ReadPrefix(t *testing.T) {
	tempDir := t.TempDir()
	fs := NewLocalFileStorage(tempDir, zap.NewNop())

	t.Run("reads leading bytes", func(t *testing.T) {
		path, err := fs.SaveUpload("CODE1234", "a.pdf", []byte("%PDF-1.7 rest of body"))
		require.NoError(t, err)

		prefix, err := fs.ReadPrefix(path, 4)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF"), prefix)
	})

	t.Run("short file returns what exists", func(t *testing.T) {
		path, err := fs.SaveUpload("CODE1234", "tiny.gif", []byte("GIF"))
		require.NoError(t, err)

		prefix, err := fs.ReadPrefix(path, 8)
		require.NoError(t, err)
		assert.Equal(t, []byte("GIF"), prefix)
	})
}

func TestLocalFileStorage_Remove(t *testing.T) {
	tempDir := t.TempDir()
	fs := NewLocalFileStorage(tempDir, zap.NewNop())

	t.Run("removes existing file", func(t *testing.T) {
		path, err := fs.SaveUpload("CODE1234", "doomed.png", []byte("x"))
		require.NoError(t, err)

		require.NoError(t, fs.Remove(path))
		assert.NoFileExists(t, path)
	})

	t.Run("missing file is a no-op", func(t *testing.T) {
		err := fs.Remove(filepath.Join(tempDir, "CODE1234", "never-existed.png"))
		assert.NoError(t, err)
	})

	t.Run("rejects path outside base", func(t *testing.T) {
		err := fs.Remove("/etc/passwd")
		assert.Error(t, err)
	})
}

func TestFolderManager_SanitizeFolderName(t *testing.T) {
	fm := NewFolderManager(t.TempDir(), zap.NewNop())

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean code untouched", "A2B3C4D5", "A2B3C4D5"},
		{"path separators stripped", "a/b\\c", "abc"},
		{"parent references stripped", "..secret", "secret"},
		{"special characters stripped", "code!@#$", "code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, fm.SanitizeFolderName(tt.input))
		})
	}
}

func TestFolderManager_DeleteRequestFolder(t *testing.T) {
	tempDir := t.TempDir()
	fm := NewFolderManager(tempDir, zap.NewNop())

	t.Run("deletes folder and contents", func(t *testing.T) {
		dir, err := fm.CreateRequestFolder("GONE1234")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0644))

		require.NoError(t, fm.DeleteRequestFolder("GONE1234"))
		assert.NoDirExists(t, dir)
	})

	t.Run("missing folder is a no-op", func(t *testing.T) {
		assert.NoError(t, fm.DeleteRequestFolder("NEVERWAS"))
	})
}
