package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName   = "quickcourt"
	sessionFileName = "session.json"
)

// fileRecord is the on-disk layout. Legacy files may also carry isLoggedIn,
// which is ignored on read and dropped by the next write.
type fileRecord struct {
	AuthToken string `json:"authToken"`
	AuthUser  string `json:"authUser,omitempty"`
}

// FileStore persists the record as a JSON file, replaced atomically on every write
type FileStore struct {
	path string
}

// NewFileStore uses path, or ~/.config/quickcourt/session.json when empty
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the default session file location
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName, sessionFileName), nil
}

func (f *FileStore) resolve() (string, error) {
	if f.path != "" {
		return f.path, nil
	}
	return DefaultPath()
}

// Load reads the session file
func (f *FileStore) Load() (Record, error) {
	path, err := f.resolve()
	if err != nil {
		return Record{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	if rec.AuthToken == "" {
		return Record{}, ErrNotFound
	}

	return Record{AuthToken: rec.AuthToken, AuthUser: rec.AuthUser}, nil
}

// Save writes to a temporary file in the same directory and renames it over
// the session file, so readers see either the old pair or the new one.
func (f *FileStore) Save(rec Record) error {
	path, err := f.resolve()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(fileRecord{AuthToken: rec.AuthToken, AuthUser: rec.AuthUser}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(dir, sessionFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set session file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	return nil
}

// Clear deletes the session file
func (f *FileStore) Clear() error {
	path, err := f.resolve()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}
