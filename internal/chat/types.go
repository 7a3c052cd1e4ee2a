// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/sybeez/sybeez/internal/util"
)

// TitleRunes is the maximum derived session title length before truncation.
const TitleRunes = 50

// DefaultTitle is the title of a session before the first user message names
// it.
const DefaultTitle = "New Chat"

// =============================================================================
// ATTACHMENT
// =============================================================================

// Attachment is a file attached to a message. Content is populated only for
// text-like attachments small enough to inline.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url,omitempty"`
	Content  string `json:"content,omitempty"`
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is one turn of a conversation as the user sees it.
//
// OriginalContent is captured exactly once, on the first edit, and never
// overwritten afterward; IsEdited never transitions back to false.
type Message struct {
	ID              string       `json:"id"`
	Content         string       `json:"content"`
	IsUser          bool         `json:"is_user"`
	Timestamp       time.Time    `json:"timestamp"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	IsEdited        bool         `json:"is_edited,omitempty"`
	OriginalContent string       `json:"original_content,omitempty"`
}

// NewUserMessage creates a user message with a fresh id.
func NewUserMessage(content string, attachments []Attachment) Message {
	return Message{
		ID:          uuid.NewString(),
		Content:     content,
		IsUser:      true,
		Timestamp:   time.Now().UTC(),
		Attachments: attachments,
	}
}

// NewAssistantMessage creates an assistant message with a fresh id.
func NewAssistantMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one conversation. UpdatedAt advances on every message, title,
// or pin mutation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsPinned  bool      `json:"is_pinned,omitempty"`
}

// NewSession creates an empty session. An empty title gets the default.
func NewSession(title string) Session {
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now().UTC()
	return Session{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DeriveTitle produces a session title from the first user message: the
// first 50 runes, with an ellipsis when truncated.
func DeriveTitle(content string) string {
	title := util.TruncateRunesNoEllipsis(content, TitleRunes)
	if title != content {
		title += "..."
	}
	if title == "" {
		title = DefaultTitle
	}
	return title
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings are the user-facing preferences persisted independently of the
// session list.
type Settings struct {
	Theme       string `json:"theme"`
	FontSize    int    `json:"font_size"`
	SendOnEnter bool   `json:"send_on_enter"`
	Sound       bool   `json:"sound"`
	AutoSave    bool   `json:"auto_save"`
	Streaming   bool   `json:"streaming"`
}

// DefaultSettings returns the out-of-the-box preferences.
func DefaultSettings() Settings {
	return Settings{
		Theme:       "system",
		FontSize:    14,
		SendOnEnter: true,
		Sound:       true,
		AutoSave:    true,
		Streaming:   true,
	}
}

// SettingsPatch is a partial settings update. Nil fields are left untouched.
type SettingsPatch struct {
	Theme       *string
	FontSize    *int
	SendOnEnter *bool
	Sound       *bool
	AutoSave    *bool
	Streaming   *bool
}

// apply merges the patch over s and returns the result.
func (p SettingsPatch) apply(s Settings) Settings {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.SendOnEnter != nil {
		s.SendOnEnter = *p.SendOnEnter
	}
	if p.Sound != nil {
		s.Sound = *p.Sound
	}
	if p.AutoSave != nil {
		s.AutoSave = *p.AutoSave
	}
	if p.Streaming != nil {
		s.Streaming = *p.Streaming
	}
	return s
}

// =============================================================================
// STATE
// =============================================================================

// State is the whole conversation world.
//
// Invariant: CurrentSessionID references an existing session or is empty.
type State struct {
	CurrentSessionID string    `json:"current_session_id"`
	Sessions         []Session `json:"sessions"`
	IsGenerating     bool      `json:"is_generating"`
	Settings         Settings  `json:"settings"`
}

// NewState returns an empty state with default settings.
func NewState() State {
	return State{Sessions: []Session{}, Settings: DefaultSettings()}
}

// Session returns the session with the given id.
func (s State) Session(id string) (Session, bool) {
	for _, sess := range s.Sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return Session{}, false
}

// CurrentSession returns the active session, if any.
func (s State) CurrentSession() (Session, bool) {
	if s.CurrentSessionID == "" {
		return Session{}, false
	}
	return s.Session(s.CurrentSessionID)
}
