// Package local implements a local filesystem blob store for development.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where screenshots are written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// BaseURL, if set, is prefixed to object paths instead of a file:// URI;
	// useful when BaseDir is served by a local static file server.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// BlobStore writes screenshots to the local filesystem.
type BlobStore struct {
	baseDir string
	baseURL string
}

// New creates a local filesystem-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	return &BlobStore{
		baseDir: cfg.BaseDir,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// PutObject writes data to a file under the base directory and returns its
// address. Paths escaping the base directory are rejected.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(s.baseDir, path)
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object data: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", s.baseURL, path), nil
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
