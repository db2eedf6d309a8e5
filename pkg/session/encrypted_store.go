package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// EncryptedFileStore persists settings blobs in a single AES-GCM encrypted
// file keyed by a PBKDF2-derived passphrase.
type EncryptedFileStore struct {
	path       string
	passphrase string
}

// encryptedFile is the on-disk shape
type encryptedFile struct {
	Salt      string `json:"salt"`
	Encrypted string `json:"encrypted"`
}

// NewEncryptedFileStore creates the store, ensuring the parent directory
// exists. An empty passphrase falls back to a machine-local default so the
// file is still not plaintext.
func NewEncryptedFileStore(path, passphrase string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if passphrase == "" {
		hostname, _ := os.Hostname()
		passphrase = "igclient-" + hostname
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Save persists the settings blob
func (e *EncryptedFileStore) Save(username string, data []byte) error {
	if username == "" {
		return ErrInvalidUsername
	}
	entries, err := e.loadEntries()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load existing settings: %w", err)
	}
	if entries == nil {
		entries = make(map[string][]byte)
	}
	entries[username] = data
	return e.saveEntries(entries)
}

// Load retrieves the settings blob
func (e *EncryptedFileStore) Load(username string) ([]byte, error) {
	if username == "" {
		return nil, ErrInvalidUsername
	}
	entries, err := e.loadEntries()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	data, ok := entries[username]
	if !ok {
		return nil, ErrSettingsNotFound
	}
	return data, nil
}

// Delete removes the settings for the username
func (e *EncryptedFileStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidUsername
	}
	entries, err := e.loadEntries()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrSettingsNotFound
		}
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if _, ok := entries[username]; !ok {
		return ErrSettingsNotFound
	}
	delete(entries, username)
	return e.saveEntries(entries)
}

// Exists checks whether settings exist for the username
func (e *EncryptedFileStore) Exists(username string) bool {
	entries, err := e.loadEntries()
	if err != nil {
		return false
	}
	_, ok := entries[username]
	return ok
}

func (e *EncryptedFileStore) loadEntries() (map[string][]byte, error) {
	raw, err := os.ReadFile(e.path)
	if err != nil {
		return nil, err
	}

	var file encryptedFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("corrupt settings file: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("corrupt salt: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(file.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("corrupt ciphertext: %w", err)
	}

	plaintext, err := e.decrypt(salt, ciphertext)
	if err != nil {
		return nil, err
	}

	var entries map[string][]byte
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, fmt.Errorf("corrupt settings payload: %w", err)
	}
	return entries, nil
}

func (e *EncryptedFileStore) saveEntries(entries map[string][]byte) error {
	plaintext, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	ciphertext, err := e.encrypt(salt, plaintext)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(encryptedFile{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal settings file: %w", err)
	}
	if err := os.WriteFile(e.path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) deriveKey(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

func (e *EncryptedFileStore) encrypt(salt, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *EncryptedFileStore) decrypt(salt, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, payload := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt settings: %w", err)
	}
	return plaintext, nil
}
