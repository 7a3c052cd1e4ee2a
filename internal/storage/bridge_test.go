// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sybeez/sybeez/internal/chat"
)

func TestSessionsRoundTrip(t *testing.T) {
	b := NewBridge(t.TempDir(), nil)

	sess := chat.NewSession("Weekend plans")
	sess.Messages = append(sess.Messages,
		chat.NewUserMessage("any hiking ideas?", nil),
		chat.NewAssistantMessage("Plenty."),
	)
	sess.IsPinned = true

	require.NoError(t, b.SaveSessions([]chat.Session{sess}))

	got := b.LoadSessions()
	require.Len(t, got, 1)
	require.Equal(t, sess.ID, got[0].ID)
	require.Equal(t, "Weekend plans", got[0].Title)
	require.True(t, got[0].IsPinned)
	require.Len(t, got[0].Messages, 2)
	require.Equal(t, "any hiking ideas?", got[0].Messages[0].Content)
	require.True(t, got[0].Messages[0].IsUser)
	require.False(t, got[0].Messages[1].IsUser)
}

func TestLoadSessionsMissingFile(t *testing.T) {
	b := NewBridge(t.TempDir(), nil)
	got := b.LoadSessions()
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestLoadSessionsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SessionsFile), []byte(`{"not":"a list"`), 0o644))

	b := NewBridge(dir, nil)
	got := b.LoadSessions()
	require.Empty(t, got, "corrupt snapshot must degrade to an empty list")
}

func TestSettingsRoundTrip(t *testing.T) {
	b := NewBridge(t.TempDir(), nil)

	want := chat.DefaultSettings()
	want.Theme = "dark"
	want.FontSize = 18
	want.Streaming = false
	require.NoError(t, b.SaveSettings(want))

	got := b.LoadSettings()
	require.Equal(t, want, got)
}

func TestLoadSettingsDefaults(t *testing.T) {
	b := NewBridge(t.TempDir(), nil)
	require.Equal(t, chat.DefaultSettings(), b.LoadSettings())
}

func TestLoadSettingsCorruptFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte("garbage"), 0o644))

	b := NewBridge(dir, nil)
	require.Equal(t, chat.DefaultSettings(), b.LoadSettings())
}

func TestSaveCreatesDataDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	b := NewBridge(dir, nil)

	require.NoError(t, b.SaveSessions([]chat.Session{}))
	_, err := os.Stat(b.SessionsPath())
	require.NoError(t, err)
}

func TestBindPersistsEveryDispatch(t *testing.T) {
	dir := t.TempDir()
	b := NewBridge(dir, nil)
	store := chat.NewStore(chat.NewState())
	b.Bind(store)

	sess := chat.NewSession("Bound")
	store.Dispatch(chat.CreateSession{Session: sess})

	got := b.LoadSessions()
	require.Len(t, got, 1)
	require.Equal(t, "Bound", got[0].Title)

	store.Dispatch(chat.UpdateSettings{Patch: chat.SettingsPatch{Theme: strp("dark")}})
	require.Equal(t, "dark", b.LoadSettings().Theme)
}

func TestBindHonorsAutoSaveSetting(t *testing.T) {
	dir := t.TempDir()
	b := NewBridge(dir, nil)

	state := chat.NewState()
	state.Settings.AutoSave = false
	store := chat.NewStore(state)
	b.Bind(store)

	store.Dispatch(chat.CreateSession{Session: chat.NewSession("Quiet")})

	_, err := os.Stat(b.SessionsPath())
	require.True(t, os.IsNotExist(err), "no write-through while auto-save is off")
}

func strp(s string) *string { return &s }
