// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/sybeez/sybeez/internal/ai"
	"github.com/sybeez/sybeez/internal/provider"
	"github.com/sybeez/sybeez/internal/util"
)

// FileName is the configuration file name under the data directory.
const FileName = "config.toml"

// =============================================================================
// PATCH
// =============================================================================

// Patch is a partial configuration update. Nil fields are left untouched.
// Setting Provider to a different backend re-applies that backend's defaults
// first, then the remaining fields of the same patch on top, so a patch like
// {Provider: "claude", Temperature: 0.2} switches and overrides in one step.
type Patch struct {
	Provider    *string
	Model       *string
	BaseURL     *string
	Temperature *float64
	MaxTokens   *int
	Streaming   *bool
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the active configuration. Safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	cfg        ai.Config
	configured bool
	path       string
	logger     *log.Logger
}

// fileSchema is the on-disk shape. A separate type keeps persistence concerns
// out of ai.Config.
type fileSchema struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	BaseURL     string  `toml:"base_url"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	Streaming   bool    `toml:"streaming"`
}

// NewManager creates a manager persisting under dir and loads any existing
// configuration. A corrupt or unreadable file logs a warning and starts
// unconfigured rather than failing startup.
func NewManager(dir string, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		path:   filepath.Join(dir, FileName),
		logger: logger.With("component", "config"),
	}

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var f fileSchema
	if err := toml.Unmarshal(data, &f); err != nil {
		m.logger.Warn("config file is corrupt, starting unconfigured", "path", m.path, "err", err)
		return m, nil
	}
	if f.Provider != "" {
		m.cfg = ai.Config{
			Provider:    f.Provider,
			Model:       f.Model,
			BaseURL:     f.BaseURL,
			Temperature: f.Temperature,
			MaxTokens:   f.MaxTokens,
			Streaming:   f.Streaming,
		}
		m.configured = true
	}
	return m, nil
}

// ActiveConfig returns the active configuration, or false when no provider
// has been selected yet.
func (m *Manager) ActiveConfig() (ai.Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg, m.configured
}

// Update applies a patch and persists the result. Switching providers resets
// to that provider's defaults before applying the rest of the patch.
func (m *Manager) Update(p Patch) (ai.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := m.cfg
	if p.Provider != nil && (*p.Provider != cfg.Provider || !m.configured) {
		if _, ok := provider.Get(*p.Provider); !ok {
			return ai.Config{}, fmt.Errorf("unsupported provider: %s", *p.Provider)
		}
		cfg = provider.Defaults(*p.Provider)
	}
	if !m.configured && p.Provider == nil {
		return ai.Config{}, ai.ErrNotConfigured
	}

	if p.Model != nil {
		cfg.Model = *p.Model
	}
	if p.BaseURL != nil {
		cfg.BaseURL = *p.BaseURL
	}
	if p.Temperature != nil {
		cfg.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		cfg.MaxTokens = *p.MaxTokens
	}
	if p.Streaming != nil {
		cfg.Streaming = *p.Streaming
	}

	if err := m.persist(cfg); err != nil {
		return ai.Config{}, err
	}
	m.cfg = cfg
	m.configured = true
	m.logger.Info("configuration updated", "provider", cfg.Provider, "model", cfg.Model)
	return cfg, nil
}

// persist writes the configuration atomically. Caller holds the lock.
func (m *Manager) persist(cfg ai.Config) error {
	f := fileSchema{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Streaming:   cfg.Streaming,
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(m.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
