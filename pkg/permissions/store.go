// Package permissions persists the names of tools the user has chosen to
// trust, so later calls to them skip the confirmation prompt. Grants live in
// a single JSON file shared by every session of the process.
package permissions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store manages tool trust grants persisted to a JSON file. A Store with an
// empty path keeps grants in memory only.
type Store struct {
	mu       sync.RWMutex
	tools    map[string]struct{}
	filePath string
}

// fileFormat is the JSON structure written to disk.
type fileFormat struct {
	TrustedTools []string `json:"trusted_tools"`
}

// New creates a Store backed by the given file. Existing data is loaded
// immediately.
func New(filePath string) (*Store, error) {
	s := &Store{tools: make(map[string]struct{})}
	if filePath == "" {
		return s, nil
	}

	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("permissions: resolve path: %w", err)
	}
	s.filePath = abs

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// NewMemory creates a Store that never touches disk.
func NewMemory() *Store {
	s, _ := New("")
	return s
}

// Path returns the backing file, or "" for an in-memory store.
func (s *Store) Path() string { return s.filePath }

// IsToolTrusted reports whether the named tool has been trusted.
func (s *Store) IsToolTrusted(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.tools[name]

	return ok
}

// TrustTool marks a tool as trusted and persists the change.
func (s *Store) TrustTool(name string) error {
	s.mu.Lock()
	s.tools[name] = struct{}{}
	snap := s.snapshot()
	s.mu.Unlock()

	return s.persistSnapshot(snap)
}

// RevokeTool removes a trust grant and persists the change.
func (s *Store) RevokeTool(name string) error {
	s.mu.Lock()
	delete(s.tools, name)
	snap := s.snapshot()
	s.mu.Unlock()

	return s.persistSnapshot(snap)
}

// TrustedTools returns the trusted tool names in sorted order.
func (s *Store) TrustedTools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot().TrustedTools
}

// --- persistence ---

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("permissions: read file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	var ff fileFormat
	if err := json.Unmarshal(trimmed, &ff); err != nil {
		return fmt.Errorf("permissions: parse file: %w", err)
	}

	for _, t := range ff.TrustedTools {
		s.tools[t] = struct{}{}
	}

	return nil
}

// snapshot returns a copy of the current grants. Must be called while s.mu is
// held.
func (s *Store) snapshot() fileFormat {
	ff := fileFormat{TrustedTools: make([]string, 0, len(s.tools))}

	for t := range s.tools {
		ff.TrustedTools = append(ff.TrustedTools, t)
	}
	sort.Strings(ff.TrustedTools)

	return ff
}

// persistSnapshot writes the snapshot to disk through a temp file and rename.
// It must be called outside the lock.
func (s *Store) persistSnapshot(ff fileFormat) error {
	if s.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("permissions: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o750); err != nil {
		return fmt.Errorf("permissions: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.filePath), ".perms-*.tmp")
	if err != nil {
		return fmt.Errorf("permissions: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName) //nolint:gosec // tmpName comes from os.CreateTemp
		return fmt.Errorf("permissions: write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:gosec // tmpName comes from os.CreateTemp
		return fmt.Errorf("permissions: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.filePath); err != nil { //nolint:gosec // tmpName comes from os.CreateTemp
		_ = os.Remove(tmpName) //nolint:gosec // tmpName comes from os.CreateTemp
		return fmt.Errorf("permissions: rename temp file: %w", err)
	}

	return nil
}
