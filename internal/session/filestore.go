package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore persists each session as a JSON file under a base directory.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileStore creates a store rooted at dir, creating the directory when needed.
func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("session filestore: directory not configured")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session filestore: create dir failed: %w", err)
	}
	return &FileStore{baseDir: dir}, nil
}

// BaseDir returns the directory holding session files.
func (s *FileStore) BaseDir() string {
	return s.baseDir
}

// Save writes record to <baseDir>/<id>.json.
func (s *FileStore) Save(_ context.Context, record *Record) error {
	if err := validateRecord("session filestore", record); err != nil {
		return err
	}
	path, err := s.pathFor(record.ID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("session filestore: marshal record failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("session filestore: write file failed: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("session filestore: rename file failed: %w", err)
	}
	return nil
}

// Load reads the record with id. Expired records are removed from disk.
func (s *FileStore) Load(_ context.Context, id string) (*Record, error) {
	path, err := s.pathFor(id)
	if err != nil {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session filestore: read file failed: %w", err)
	}
	record := &Record{}
	if err = json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("session filestore: unmarshal %s failed: %w", filepath.Base(path), err)
	}
	if record.Expired(time.Now()) {
		if errRemove := os.Remove(path); errRemove != nil && !errors.Is(errRemove, fs.ErrNotExist) {
			return nil, fmt.Errorf("session filestore: remove expired file failed: %w", errRemove)
		}
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *FileStore) pathFor(id string) (string, error) {
	if !validID(id) {
		return "", fmt.Errorf("session filestore: invalid session id %q", id)
	}
	return filepath.Join(s.baseDir, id+".json"), nil
}
