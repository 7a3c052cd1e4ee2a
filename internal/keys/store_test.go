// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keys

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, s.SetAPIKey("openai", "sk-secret-123"))
	got, err := s.APIKey("openai")
	require.NoError(t, err)
	require.Equal(t, "sk-secret-123", got)
	require.True(t, s.HasAPIKey("openai"))
}

func TestMissingCredentialIsNotAnError(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	got, err := s.APIKey("ollama")
	require.NoError(t, err)
	require.Empty(t, got)
	require.False(t, s.HasAPIKey("ollama"))
}

func TestSecretsNeverStoredInPlaintext(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetAPIKey("claude", "sk-ant-very-secret"))

	raw, err := os.ReadFile(filepath.Join(dir, CredentialsFile))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "sk-ant-very-secret")

	var values map[string]string
	require.NoError(t, json.Unmarshal(raw, &values))
	require.True(t, strings.HasPrefix(values["claude"], EncryptedPrefix))
}

func TestEmptyKeyClearsCredential(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.SetAPIKey("gemini", "AIza-123"))
	require.NoError(t, s.SetAPIKey("gemini", ""))
	require.False(t, s.HasAPIKey("gemini"))

	got, err := s.APIKey("gemini")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReopenWithSameMasterKey(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s1.SetAPIKey("openai", "sk-persisted"))

	s2, err := NewStore(dir, nil)
	require.NoError(t, err)
	got, err := s2.APIKey("openai")
	require.NoError(t, err)
	require.Equal(t, "sk-persisted", got)
}

func TestWrongMasterKeyFailsAuthentication(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s1.SetAPIKey("openai", "sk-sealed"))

	// Replace the master key; the sealed value must refuse to open.
	rotated := make([]byte, KeySize)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MasterKeyFile), rotated, 0o600))

	s2, err := NewStore(dir, nil)
	require.NoError(t, err)
	_, err = s2.APIKey("openai")
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestPlaintextValuePassesThrough(t *testing.T) {
	// A hand-edited credentials file without the ENC: prefix still works.
	dir := t.TempDir()
	_, err := NewStore(dir, nil) // creates master key
	require.NoError(t, err)

	data, _ := json.Marshal(map[string]string{"ollama": "not-encrypted"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, CredentialsFile), data, 0o600))

	s, err := NewStore(dir, nil)
	require.NoError(t, err)
	got, err := s.APIKey("ollama")
	require.NoError(t, err)
	require.Equal(t, "not-encrypted", got)
}

func TestCorruptCredentialsFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, CredentialsFile), []byte("{{{"), 0o600))

	s, err := NewStore(dir, nil)
	require.NoError(t, err)
	require.False(t, s.HasAPIKey("openai"))
}

func TestMasterKeyFilePermissions(t *testing.T) {
	dir := t.TempDir()
	_, err := NewStore(dir, nil)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, MasterKeyFile))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSealedValuesAreSaltedUniquely(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	one, err := s.encrypt("same plaintext")
	require.NoError(t, err)
	two, err := s.encrypt("same plaintext")
	require.NoError(t, err)
	require.NotEqual(t, one, two, "per-value salt and nonce must differ")
}
