// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package keys stores provider credentials encrypted at rest. Each API key is
// sealed with AES-256-GCM under a key derived from a per-machine master key,
// so the credentials file is useless without the master key file next to it.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/pbkdf2"

	"github.com/sybeez/sybeez/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// EncryptedPrefix marks a stored value as encrypted
// (format: ENC:base64(salt|nonce|ciphertext|tag)).
const EncryptedPrefix = "ENC:"

// NonceSize is the AES-GCM nonce size (96 bits).
const NonceSize = 12

// KeySize is the AES-256 key size.
const KeySize = 32

// SaltSize is the per-value key derivation salt size.
const SaltSize = 16

// DeriveIterations is the PBKDF2 iteration count. The master key is 32 bytes
// of CSPRNG output, not a password, so stretching adds nothing; the KDF here
// only binds the per-value salt into the encryption key.
const DeriveIterations = 4096

// MasterKeyFile is the master key file name under the data directory.
const MasterKeyFile = "master.key"

// CredentialsFile is the encrypted credentials file name.
const CredentialsFile = "credentials.json"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCiphertext indicates the stored value format is invalid.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrDecryptionFailed indicates authentication tag mismatch: wrong master
	// key or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// =============================================================================
// STORE
// =============================================================================

// Store is the encrypted per-provider credential store. Safe for concurrent
// use.
type Store struct {
	mu        sync.RWMutex
	masterKey []byte
	path      string
	values    map[string]string // provider id -> ENC: value
	logger    *log.Logger
}

// NewStore opens (or initializes) the credential store under dir. A missing
// master key is generated on first use with 0600 permissions.
func NewStore(dir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	s := &Store{
		path:   filepath.Join(dir, CredentialsFile),
		values: make(map[string]string),
		logger: logger.With("component", "keys"),
	}

	master, err := loadOrCreateMasterKey(filepath.Join(dir, MasterKeyFile))
	if err != nil {
		return nil, err
	}
	s.masterKey = master

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		s.logger.Warn("credentials file is corrupt, starting empty", "path", s.path, "err", err)
		s.values = make(map[string]string)
	}
	return s, nil
}

// loadOrCreateMasterKey reads the master key file, generating it when absent.
func loadOrCreateMasterKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != KeySize {
			return nil, fmt.Errorf("master key has wrong size: %d bytes", len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	key = make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, key, 0o600, 0o700); err != nil {
		return nil, fmt.Errorf("failed to store master key: %w", err)
	}
	return key, nil
}

// APIKey returns the decrypted credential for a provider. A provider with no
// stored credential returns "", nil.
func (s *Store) APIKey(providerID string) (string, error) {
	s.mu.RLock()
	sealed, ok := s.values[providerID]
	s.mu.RUnlock()
	if !ok {
		return "", nil
	}
	return s.decrypt(sealed)
}

// SetAPIKey encrypts and persists the credential for a provider. An empty
// key removes the stored credential.
func (s *Store) SetAPIKey(providerID, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if apiKey == "" {
		delete(s.values, providerID)
	} else {
		sealed, err := s.encrypt(apiKey)
		if err != nil {
			return err
		}
		s.values[providerID] = sealed
	}
	if err := s.persist(); err != nil {
		return err
	}
	s.logger.Info("credential updated", "provider", providerID, "removed", apiKey == "")
	return nil
}

// HasAPIKey reports whether a credential is stored for a provider.
func (s *Store) HasAPIKey(providerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[providerID]
	return ok
}

// persist writes the encrypted map atomically. Caller holds the lock.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(s.path, data, 0o600, 0o700); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// =============================================================================
// SEALING
// =============================================================================

// deriveKey binds a per-value salt into the encryption key.
func (s *Store) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(s.masterKey, salt, DeriveIterations, KeySize, sha256.New)
}

// encrypt seals plaintext as ENC:base64(salt|nonce|ciphertext|tag).
func (s *Store) encrypt(plaintext string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	key := s.deriveKey(salt)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM cipher: %w", err)
	}

	out := make([]byte, 0, SaltSize+NonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// decrypt opens an ENC: value. Unprefixed values are returned as-is so a
// hand-edited plaintext credentials file still works.
func (s *Store) decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, EncryptedPrefix) {
		return value, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(raw) < SaltSize+NonceSize {
		return "", ErrInvalidCiphertext
	}

	salt := raw[:SaltSize]
	nonce := raw[SaltSize : SaltSize+NonceSize]
	ciphertext := raw[SaltSize+NonceSize:]

	key := s.deriveKey(salt)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM cipher: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// SECURITY: Zero key material to prevent memory disclosure via crash dumps.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
