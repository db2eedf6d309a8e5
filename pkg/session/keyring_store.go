package session

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "igclient"
	keyringPrefix  = "settings_"
)

// KeyringStore persists settings blobs in the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed store, probing availability first
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)
	return &KeyringStore{}, nil
}

// Save stores the settings blob in the keychain
func (k *KeyringStore) Save(username string, data []byte) error {
	if username == "" {
		return ErrInvalidUsername
	}
	if err := keyring.Set(keyringService, keyringPrefix+username, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Load retrieves the settings blob from the keychain
func (k *KeyringStore) Load(username string) ([]byte, error) {
	if username == "" {
		return nil, ErrInvalidUsername
	}
	data, err := keyring.Get(keyringService, keyringPrefix+username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to read from keyring: %w", err)
	}
	return []byte(data), nil
}

// Delete removes the settings from the keychain
func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidUsername
	}
	if err := keyring.Delete(keyringService, keyringPrefix+username); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrSettingsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks whether the keychain holds settings for the username
func (k *KeyringStore) Exists(username string) bool {
	_, err := keyring.Get(keyringService, keyringPrefix+username)
	return err == nil
}
