package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps preferences in a small JSON document on disk. It backs the
// terminal client, which has no server to talk to.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type fileDocument struct {
	Muted map[string]bool `json:"muted"`
}

// NewFileStore uses path; the file is created on first write
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFilePath returns ~/.dropcatch/prefs.json
func DefaultFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".dropcatch", "prefs.json"), nil
}

// Muted returns the stored flag
func (s *FileStore) Muted(_ context.Context, playerID string) (bool, error) {
	id, err := ValidatePlayerID(playerID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return false, err
	}
	return doc.Muted[id], nil
}

// SetMuted stores the flag, rewriting the file atomically
func (s *FileStore) SetMuted(_ context.Context, playerID string, muted bool) error {
	id, err := ValidatePlayerID(playerID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if muted {
		doc.Muted[id] = true
	} else {
		delete(doc.Muted, id)
	}
	return s.write(doc)
}

func (s *FileStore) read() (fileDocument, error) {
	doc := fileDocument{Muted: make(map[string]bool)}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read preferences %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse preferences %s: %w", s.path, err)
	}
	if doc.Muted == nil {
		doc.Muted = make(map[string]bool)
	}
	return doc, nil
}

func (s *FileStore) write(doc fileDocument) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return os.Rename(tmp, s.path)
}
