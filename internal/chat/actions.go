// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// Action is a tagged-union mutation descriptor consumed by Reduce. The
// sealed marker keeps the set of transitions enumerable.
type Action interface {
	isAction()
}

// CreateSession prepends a new session and makes it current.
type CreateSession struct {
	Session Session
}

// SetCurrentSession switches the active session. Unknown ids are no-ops.
type SetCurrentSession struct {
	ID string
}

// AddMessage appends a message to a session and bumps its UpdatedAt.
type AddMessage struct {
	SessionID string
	Message   Message
}

// UpdateMessage replaces a message's content. The first edit captures the
// prior content as OriginalContent; later edits leave it untouched.
type UpdateMessage struct {
	SessionID string
	MessageID string
	Content   string
}

// DeleteMessage removes a message from a session.
type DeleteMessage struct {
	SessionID string
	MessageID string
}

// DeleteSession removes a session. Deleting the current session promotes the
// first remaining session, or clears the current id when none remain.
type DeleteSession struct {
	ID string
}

// SetGenerating flips the in-flight flag shown while a reply is pending.
type SetGenerating struct {
	Value bool
}

// UpdateSessionTitle renames a session and bumps its UpdatedAt.
type UpdateSessionTitle struct {
	SessionID string
	Title     string
}

// TogglePin flips a session's pin and bumps its UpdatedAt.
type TogglePin struct {
	SessionID string
}

// LoadSessions replaces the whole session list, typically from a persisted
// snapshot. The current id is kept when it survives the replacement and
// cleared otherwise.
type LoadSessions struct {
	Sessions []Session
}

// UpdateSettings merges a partial settings patch.
type UpdateSettings struct {
	Patch SettingsPatch
}

// ClearAllSessions removes every session and clears the current id.
type ClearAllSessions struct{}

func (CreateSession) isAction()      {}
func (SetCurrentSession) isAction()  {}
func (AddMessage) isAction()         {}
func (UpdateMessage) isAction()      {}
func (DeleteMessage) isAction()      {}
func (DeleteSession) isAction()      {}
func (SetGenerating) isAction()      {}
func (UpdateSessionTitle) isAction() {}
func (TogglePin) isAction()          {}
func (LoadSessions) isAction()       {}
func (UpdateSettings) isAction()     {}
func (ClearAllSessions) isAction()   {}
