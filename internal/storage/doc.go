// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage is the persistence bridge between the conversation state
// engine and disk.
//
// State persists as two independent JSON snapshots under the data directory:
// sessions.json (the session list) and settings.json (user preferences).
// Writes are atomic (temp file + fsync + rename); a corrupt snapshot loads
// as empty state with a logged warning, never a startup failure.
//
// A watcher built on fsnotify reports external changes to the snapshot
// files, debounced so editor save dances produce one notification.
package storage
