// Package storage owns the per-video artifact workspace on local disk.
// Each video gets one directory holding its media file, transcript, and
// index; the directory is the unit of cleanup and is removed as a set.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileStore roots every video workspace under a single base path.
type FileStore struct {
	basePath string
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if abs, err := filepath.Abs(basePath); err == nil {
		basePath = abs
	}
	if err := os.MkdirAll(filepath.Join(basePath, "videos"), 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string { return s.basePath }

// JobDBPath is where the job store database lives, beside the workspaces.
func (s *FileStore) JobDBPath() string { return filepath.Join(s.basePath, "jobs.db") }

// Workspace returns the directory for one video's artifacts, validating
// the id so a crafted identifier cannot escape the storage root.
func (s *FileStore) Workspace(videoID string) (string, error) {
	if !videoIDPattern.MatchString(videoID) {
		return "", fmt.Errorf("storage: invalid video id %q", videoID)
	}
	return filepath.Join(s.basePath, "videos", videoID), nil
}

// EnsureWorkspace creates the video's directory if missing.
func (s *FileStore) EnsureWorkspace(videoID string) (string, error) {
	dir, err := s.Workspace(videoID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure workspace: %w", err)
	}
	return dir, nil
}

// WriteFile persists data at name inside the video workspace via a temp
// file and rename, so readers never observe a partial artifact.
func (s *FileStore) WriteFile(videoID, name string, data []byte) (string, error) {
	dir, err := s.EnsureWorkspace(videoID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("storage: write temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("storage: close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("storage: atomic rename for %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return "", fmt.Errorf("storage: chmod %s: %w", path, err)
	}
	return path, nil
}

// ReadFile reads an artifact from the video workspace.
func (s *FileStore) ReadFile(videoID, name string) ([]byte, error) {
	dir, err := s.Workspace(videoID)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(dir, name))
}

// Exists reports whether an artifact is present in the workspace.
func (s *FileStore) Exists(videoID, name string) bool {
	dir, err := s.Workspace(videoID)
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(dir, name))
	return err == nil
}

// RemoveWorkspace discards every artifact for a video as one unit. The
// directory is renamed aside first, so a crash mid-removal never leaves a
// half-deleted workspace under the live name.
func (s *FileStore) RemoveWorkspace(videoID string) error {
	dir, err := s.Workspace(videoID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	trash := filepath.Join(s.basePath, "videos", ".trash-"+videoID)
	_ = os.RemoveAll(trash)
	if err := os.Rename(dir, trash); err != nil {
		return fmt.Errorf("storage: discard workspace %s: %w", videoID, err)
	}
	if err := os.RemoveAll(trash); err != nil {
		return fmt.Errorf("storage: remove workspace %s: %w", videoID, err)
	}
	return nil
}
