// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sybeez/sybeez/internal/chat"
)

// =============================================================================
// SNAPSHOT SHAPES
// =============================================================================

// Snapshot is the portable form of one session.
type Snapshot struct {
	Title      string            `json:"title"`
	Messages   []SnapshotMessage `json:"messages"`
	CreatedAt  time.Time         `json:"createdAt"`
	ExportedAt time.Time         `json:"exportedAt"`
}

// SnapshotMessage is the portable form of one message. Ids are deliberately
// absent: import mints fresh ones.
type SnapshotMessage struct {
	Content         string            `json:"content"`
	IsUser          bool              `json:"isUser"`
	Timestamp       time.Time         `json:"timestamp"`
	Attachments     []chat.Attachment `json:"attachments,omitempty"`
	IsEdited        bool              `json:"isEdited,omitempty"`
	OriginalContent string            `json:"originalContent,omitempty"`
}

// =============================================================================
// EXPORT
// =============================================================================

// Session produces the snapshot of one session.
func Session(sess chat.Session) Snapshot {
	msgs := make([]SnapshotMessage, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		msgs = append(msgs, SnapshotMessage{
			Content:         m.Content,
			IsUser:          m.IsUser,
			Timestamp:       m.Timestamp,
			Attachments:     m.Attachments,
			IsEdited:        m.IsEdited,
			OriginalContent: m.OriginalContent,
		})
	}
	return Snapshot{
		Title:      sess.Title,
		Messages:   msgs,
		CreatedAt:  sess.CreatedAt,
		ExportedAt: time.Now().UTC(),
	}
}

// SessionJSON renders one session as an indented JSON snapshot.
func SessionJSON(sess chat.Session) ([]byte, error) {
	data, err := json.MarshalIndent(Session(sess), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

// SessionsJSON renders multiple sessions as a bulk JSON snapshot.
func SessionsJSON(sessions []chat.Session) ([]byte, error) {
	snaps := make([]Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		snaps = append(snaps, Session(sess))
	}
	data, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode sessions: %w", err)
	}
	return data, nil
}

// =============================================================================
// IMPORT
// =============================================================================

// Import parses a snapshot, accepting both the single-object and the bulk
// array shape, and materializes sessions with fresh ids throughout.
func Import(data []byte) ([]chat.Session, error) {
	var snaps []Snapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		var single Snapshot
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("unrecognized snapshot format: %w", err)
		}
		snaps = []Snapshot{single}
	}

	sessions := make([]chat.Session, 0, len(snaps))
	for _, snap := range snaps {
		sessions = append(sessions, materialize(snap))
	}
	return sessions, nil
}

// materialize rebuilds a session from its snapshot with new identities.
func materialize(snap Snapshot) chat.Session {
	now := time.Now().UTC()
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	title := snap.Title
	if title == "" {
		title = "Imported Chat"
	}

	msgs := make([]chat.Message, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = now
		}
		msgs = append(msgs, chat.Message{
			ID:              uuid.NewString(),
			Content:         m.Content,
			IsUser:          m.IsUser,
			Timestamp:       ts,
			Attachments:     m.Attachments,
			IsEdited:        m.IsEdited,
			OriginalContent: m.OriginalContent,
		})
	}

	return chat.Session{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  msgs,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
}
