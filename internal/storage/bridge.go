// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/sybeez/sybeez/internal/chat"
	"github.com/sybeez/sybeez/internal/util"
)

// Snapshot file names under the data directory.
const (
	SessionsFile = "sessions.json"
	SettingsFile = "settings.json"
)

// Bridge persists conversation state as two independent JSON snapshots.
type Bridge struct {
	dir    string
	logger *log.Logger
}

// NewBridge creates a bridge rooted at dir.
func NewBridge(dir string, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{dir: dir, logger: logger.With("component", "storage")}
}

// Dir returns the data directory.
func (b *Bridge) Dir() string {
	return b.dir
}

// SessionsPath returns the sessions snapshot path.
func (b *Bridge) SessionsPath() string {
	return filepath.Join(b.dir, SessionsFile)
}

// SettingsPath returns the settings snapshot path.
func (b *Bridge) SettingsPath() string {
	return filepath.Join(b.dir, SettingsFile)
}

// =============================================================================
// SESSIONS
// =============================================================================

// LoadSessions reads the session snapshot. A missing or corrupt file yields
// an empty list; corruption is logged, never returned.
func (b *Bridge) LoadSessions() []chat.Session {
	data, err := os.ReadFile(b.SessionsPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("failed to read sessions snapshot", "err", err)
		}
		return []chat.Session{}
	}

	var sessions []chat.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		b.logger.Warn("sessions snapshot is corrupt, starting empty", "path", b.SessionsPath(), "err", err)
		return []chat.Session{}
	}
	return sessions
}

// SaveSessions writes the session snapshot atomically.
func (b *Bridge) SaveSessions(sessions []chat.Session) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sessions: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(b.SessionsPath(), data, 0o644, 0o755); err != nil {
		return fmt.Errorf("failed to write sessions snapshot: %w", err)
	}
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// LoadSettings reads the settings snapshot. Missing or corrupt files yield
// the defaults.
func (b *Bridge) LoadSettings() chat.Settings {
	data, err := os.ReadFile(b.SettingsPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("failed to read settings snapshot", "err", err)
		}
		return chat.DefaultSettings()
	}

	settings := chat.DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		b.logger.Warn("settings snapshot is corrupt, using defaults", "path", b.SettingsPath(), "err", err)
		return chat.DefaultSettings()
	}
	return settings
}

// SaveSettings writes the settings snapshot atomically.
func (b *Bridge) SaveSettings(settings chat.Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(b.SettingsPath(), data, 0o644, 0o755); err != nil {
		return fmt.Errorf("failed to write settings snapshot: %w", err)
	}
	return nil
}

// =============================================================================
// STORE BINDING
// =============================================================================

// Bind subscribes the bridge to a store so every dispatched state persists
// while auto-save is enabled.
// RELIABILITY: Persistence failures are logged and swallowed; a full disk
// must not break the conversation in memory.
func (b *Bridge) Bind(store *chat.Store) {
	store.OnChange(func(s chat.State) {
		if !s.Settings.AutoSave {
			return
		}
		if err := b.SaveSessions(s.Sessions); err != nil {
			b.logger.Error("autosave sessions failed", "err", err)
		}
		if err := b.SaveSettings(s.Settings); err != nil {
			b.logger.Error("autosave settings failed", "err", err)
		}
	})
}
