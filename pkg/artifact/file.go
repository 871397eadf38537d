package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore writes artifacts under a base directory on the local
// filesystem. Keys map directly to relative paths.
type FileStore struct {
	baseDir string
}

// NewFileStore builds a file store rooted at baseDir. The directory is
// created on first Put, not here.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("artifact base directory is required")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact directory: %w", err)
	}
	return &FileStore{baseDir: abs}, nil
}

// Put writes data to baseDir/key and returns the absolute path.
func (s *FileStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))

	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact key %q escapes the store root", key)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}
