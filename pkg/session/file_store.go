package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists settings blobs as plain JSON files in a directory, one
// file per username. Intended for example callers and tests; prefer the
// keyring or encrypted store for anything long-lived.
type FileStore struct {
	dir string
}

// NewFileStore creates the store, ensuring the directory exists
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) pathFor(username string) string {
	// Usernames are restricted to [a-z0-9._] by the vendor; strip path
	// separators anyway
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, username)
	return filepath.Join(f.dir, safe+".settings.json")
}

// Save writes the settings blob
func (f *FileStore) Save(username string, data []byte) error {
	if username == "" {
		return ErrInvalidUsername
	}
	if err := os.WriteFile(f.pathFor(username), data, 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Load reads the settings blob
func (f *FileStore) Load(username string) ([]byte, error) {
	if username == "" {
		return nil, ErrInvalidUsername
	}
	data, err := os.ReadFile(f.pathFor(username))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return data, nil
}

// Delete removes the settings file
func (f *FileStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidUsername
	}
	if err := os.Remove(f.pathFor(username)); err != nil {
		if os.IsNotExist(err) {
			return ErrSettingsNotFound
		}
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}

// Exists checks whether a settings file exists
func (f *FileStore) Exists(username string) bool {
	_, err := os.Stat(f.pathFor(username))
	return err == nil
}
