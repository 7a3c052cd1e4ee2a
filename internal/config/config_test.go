// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sybeez/sybeez/internal/ai"
	"github.com/sybeez/sybeez/internal/provider"
)

func strp(s string) *string     { return &s }
func intp(n int) *int           { return &n }
func floatp(f float64) *float64 { return &f }
func boolp(b bool) *bool        { return &b }

func TestFreshManagerIsUnconfigured(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	_, ok := m.ActiveConfig()
	require.False(t, ok)
}

func TestSelectProviderAppliesDefaults(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	cfg, err := m.Update(Patch{Provider: strp(provider.OpenAI)})
	require.NoError(t, err)
	require.Equal(t, provider.Defaults(provider.OpenAI), cfg)

	active, ok := m.ActiveConfig()
	require.True(t, ok)
	require.Equal(t, cfg, active)
}

func TestSwitchProviderOverridesInOnePatch(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = m.Update(Patch{Provider: strp(provider.OpenAI)})
	require.NoError(t, err)

	cfg, err := m.Update(Patch{
		Provider:    strp(provider.Claude),
		Temperature: floatp(0.2),
	})
	require.NoError(t, err)
	require.Equal(t, provider.Claude, cfg.Provider)
	require.Equal(t, "claude-3-5-sonnet-20241022", cfg.Model, "switch must reset to the new backend's defaults")
	require.Equal(t, 0.2, cfg.Temperature, "same-patch fields apply after the reset")
}

func TestSwitchProviderDropsStaleFields(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = m.Update(Patch{Provider: strp(provider.Ollama), Model: strp("mistral")})
	require.NoError(t, err)

	cfg, err := m.Update(Patch{Provider: strp(provider.Gemini)})
	require.NoError(t, err)
	require.Equal(t, "gemini-1.5-flash", cfg.Model, "old provider's model must not leak across a switch")
	require.Empty(t, cfg.BaseURL)
}

func TestPatchWithoutProviderWhileUnconfigured(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = m.Update(Patch{Model: strp("gpt-4o")})
	require.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestUnsupportedProviderRejected(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = m.Update(Patch{Provider: strp("minitel")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported provider")
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m1, err := NewManager(dir, nil)
	require.NoError(t, err)

	want, err := m1.Update(Patch{
		Provider:  strp(provider.OpenAI),
		Model:     strp("gpt-4o"),
		MaxTokens: intp(2000),
		Streaming: boolp(false),
	})
	require.NoError(t, err)

	m2, err := NewManager(dir, nil)
	require.NoError(t, err)
	got, ok := m2.ActiveConfig()
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestCorruptFileStartsUnconfigured(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("provider = [not toml"), 0o644))

	m, err := NewManager(dir, nil)
	require.NoError(t, err, "corrupt config must not abort startup")
	_, ok := m.ActiveConfig()
	require.False(t, ok)
}

func TestPartialPatchLeavesOtherFieldsAlone(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = m.Update(Patch{Provider: strp(provider.OpenAI)})
	require.NoError(t, err)

	cfg, err := m.Update(Patch{Temperature: floatp(1.1)})
	require.NoError(t, err)
	require.Equal(t, 1.1, cfg.Temperature)
	require.Equal(t, "gpt-4o-mini", cfg.Model)
	require.True(t, cfg.Streaming)
}
