// Package statefile persists small JSON state with atomic replacement.
// Writes go to a temp file that is fsynced and renamed over the previous
// state, so a crash never leaves a partial file behind. This protects
// against corruption, not against two writers racing on the same file.
package statefile

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Store reads and writes one JSON state file.
type Store struct {
	path string
}

// New creates a store for the given path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load unmarshals the state into v. A missing or unreadable file is not
// an error: v is left untouched, which deliberately degrades to "never
// run before" for callers that start from an empty value.
func (s *Store) Load(v any) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		// corrupt state degrades to empty as well
		return nil
	}
	return nil
}

// Save marshals v and atomically replaces the state file.
func (s *Store) Save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal state")
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create state directory")
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "open temp state file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrap(err, "write temp state file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "sync temp state file")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close temp state file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "replace state file")
	}
	return nil
}
