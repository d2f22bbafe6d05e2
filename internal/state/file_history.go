package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

// FileHistoryStore persists terminal deployment records as a JSON array on
// local disk, newest record last.
type FileHistoryStore struct {
	path string
	mu   sync.Mutex
}

// NewFileHistoryStore creates a file-backed history store at path
func NewFileHistoryStore(path string) (*FileHistoryStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileHistoryStore{path: path}, nil
}

// Append persists one terminal deployment record
func (s *FileHistoryStore) Append(_ context.Context, deployment *interfaces.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records = append(records, deployment)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode deployment history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write history %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace history %s: %w", s.path, err)
	}
	return nil
}

// Recent returns up to limit records, most recent first
func (s *FileHistoryStore) Recent(_ context.Context, limit int) ([]*interfaces.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = interfaces.DefaultHistoryLimit
	}

	recent := make([]*interfaces.Deployment, 0, limit)
	for i := len(records) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, records[i])
	}
	return recent, nil
}

func (s *FileHistoryStore) load() ([]*interfaces.Deployment, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*interfaces.Deployment{}, nil
		}
		return nil, fmt.Errorf("failed to read history %s: %w", s.path, err)
	}

	var records []*interfaces.Deployment
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", s.path, err)
	}
	return records, nil
}
