package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

var (
	// ErrSettingsNotFound indicates no settings exist for the username
	ErrSettingsNotFound = errors.New("settings not found")

	// ErrInvalidUsername indicates an empty or unusable username key
	ErrInvalidUsername = errors.New("invalid username")
)

// Store persists serialized session settings keyed by username
type Store interface {
	// Save persists a settings blob for the username
	Save(username string, data []byte) error

	// Load retrieves the settings blob for the username
	Load(username string) ([]byte, error)

	// Delete removes the settings for the username
	Delete(username string) error

	// Exists checks whether settings exist for the username
	Exists(username string) bool
}

// Manager chains stores with fallback: saves go to every store, loads try
// each store in order.
type Manager struct {
	stores []Store
}

// NewManager builds the default store chain: system keyring first when
// available, then an encrypted file store under the user config directory.
func NewManager(passphrase string) (*Manager, error) {
	var stores []Store

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "settings.enc"), passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over an explicit chain
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Save persists the blob to every store in the chain. It succeeds when at
// least one store accepts the blob.
func (m *Manager) Save(username string, data []byte) error {
	var lastErr error
	saved := false
	for _, store := range m.stores {
		if err := store.Save(username, data); err != nil {
			lastErr = err
			continue
		}
		saved = true
	}
	if !saved {
		return fmt.Errorf("all settings stores failed: %w", lastErr)
	}
	return nil
}

// Load retrieves the blob from the first store that has it
func (m *Manager) Load(username string) ([]byte, error) {
	for _, store := range m.stores {
		data, err := store.Load(username)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrSettingsNotFound) {
			return nil, err
		}
	}
	return nil, ErrSettingsNotFound
}

// Delete removes the blob from every store
func (m *Manager) Delete(username string) error {
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(username); err != nil && !errors.Is(err, ErrSettingsNotFound) {
			lastErr = err
		}
	}
	return lastErr
}

// Exists checks whether any store has settings for the username
func (m *Manager) Exists(username string) bool {
	for _, store := range m.stores {
		if store.Exists(username) {
			return true
		}
	}
	return false
}

// getConfigDir returns the platform config directory for the client
func getConfigDir() (string, error) {
	var baseDir string
	switch runtime.GOOS {
	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			return "", errors.New("APPDATA not set")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(home, "Library", "Application Support")
	default:
		baseDir = os.Getenv("XDG_CONFIG_HOME")
		if baseDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(home, ".config")
		}
	}

	configDir := filepath.Join(baseDir, "igclient")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}
