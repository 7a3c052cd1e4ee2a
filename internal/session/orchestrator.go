// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sybeez/sybeez/internal/ai"
	"github.com/sybeez/sybeez/internal/chat"
	"github.com/sybeez/sybeez/internal/gateway"
	"github.com/sybeez/sybeez/internal/storage"
)

// =============================================================================
// USER-FACING ERROR TEXT
// =============================================================================

// Error wording shown in the conversation itself. The assistant voice stays
// consistent whether the reply came from a model or from a failure path.
const (
	errBase   = "I'm sorry, I encountered an error while processing your message."
	errSuffix = " Please try again or contact support if the issue persists."

	hintAuth      = " Please check your API key in settings."
	hintRateLimit = " You may have reached your API usage limit."
	hintNetwork   = " Please check your internet connection."

	msgNotConfigured = "⚠️ AI is not configured yet. Please go to settings and set up your AI provider to enable intelligent responses."
)

// errorReply maps a failure class to the assistant message text.
func errorReply(kind gateway.Kind) string {
	var hint string
	switch kind {
	case gateway.KindAuth:
		hint = hintAuth
	case gateway.KindRateLimit:
		hint = hintRateLimit
	case gateway.KindNetwork:
		hint = hintNetwork
	}
	return errBase + hint + errSuffix
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// AI is the slice of the gateway the orchestrator needs. An unconfigured
// gateway reports it by returning ai.ErrNotConfigured from either call; the
// orchestrator turns that into the setup notice like any other failure.
type AI interface {
	SendMessage(ctx context.Context, msgs []ai.Message) (*ai.Response, error)
	StreamMessage(ctx context.Context, msgs []ai.Message) (<-chan ai.StreamChunk, error)
}

// DefaultAutosaveInterval is how often the autosave loop flushes dirty state.
const DefaultAutosaveInterval = 30 * time.Second

// Orchestrator drives conversations end to end: store transitions, AI calls,
// title derivation, and error presentation.
type Orchestrator struct {
	store  *chat.Store
	gw     AI
	bridge *storage.Bridge
	logger *log.Logger

	// OnChunk, when set, receives each streamed delta as it arrives. Used by
	// the REPL to render replies live; the store only ever sees the final
	// assembled message.
	OnChunk func(delta string)

	dirty atomic.Bool
}

// New creates an orchestrator.
func New(store *chat.Store, gw AI, bridge *storage.Bridge, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		store:  store,
		gw:     gw,
		bridge: bridge,
		logger: logger.With("component", "session"),
	}
}

// Store exposes the underlying conversation store.
func (o *Orchestrator) Store() *chat.Store {
	return o.store
}

// dispatch applies an action and marks state dirty for the autosave loop.
func (o *Orchestrator) dispatch(a chat.Action) chat.State {
	s := o.store.Dispatch(a)
	o.dirty.Store(true)
	return s
}

// =============================================================================
// SENDING
// =============================================================================

// SendMessage appends the user's message to the current session (creating
// one when needed), derives the title from the first user message, and
// appends the assistant's reply — which on failure is the user-facing error
// text, never a bare error. The returned message is the assistant reply.
func (o *Orchestrator) SendMessage(ctx context.Context, content string, attachments []chat.Attachment) chat.Message {
	state := o.store.State()
	if _, ok := state.CurrentSession(); !ok {
		state = o.dispatch(chat.CreateSession{Session: chat.NewSession("")})
	}
	sessionID := state.CurrentSessionID

	sess, _ := state.Session(sessionID)
	firstUserMessage := !hasUserMessage(sess.Messages)

	userMsg := chat.NewUserMessage(content, attachments)
	state = o.dispatch(chat.AddMessage{SessionID: sessionID, Message: userMsg})

	// Titles derive once and are never re-derived afterward.
	if firstUserMessage && sess.Title == chat.DefaultTitle {
		state = o.dispatch(chat.UpdateSessionTitle{SessionID: sessionID, Title: chat.DeriveTitle(content)})
	}

	sess, _ = state.Session(sessionID)
	return o.generate(ctx, sessionID, toUniform(sess.Messages))
}

// RegenerateResponse deletes an assistant message and produces a fresh reply
// from the history that preceded it. Regenerating a user message, or an
// assistant message whose preceding turn is not a user message (the user
// turn may have been deleted), is a no-op returning a zero message.
func (o *Orchestrator) RegenerateResponse(ctx context.Context, messageID string) chat.Message {
	state := o.store.State()
	sess, ok := state.CurrentSession()
	if !ok {
		return chat.Message{}
	}

	idx := -1
	for i := range sess.Messages {
		if sess.Messages[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx < 1 || sess.Messages[idx].IsUser || !sess.Messages[idx-1].IsUser {
		return chat.Message{}
	}

	history := toUniform(sess.Messages[:idx])
	o.dispatch(chat.DeleteMessage{SessionID: sess.ID, MessageID: messageID})
	return o.generate(ctx, sess.ID, history)
}

// EditMessage rewrites a message in place. Editing a user message also
// re-sends the conversation up to the edited turn, appending a new assistant
// reply; editing an assistant message only rewrites it.
func (o *Orchestrator) EditMessage(ctx context.Context, messageID, content string) chat.Message {
	state := o.store.State()
	sess, ok := state.CurrentSession()
	if !ok {
		return chat.Message{}
	}

	idx := -1
	for i := range sess.Messages {
		if sess.Messages[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return chat.Message{}
	}

	newState := o.dispatch(chat.UpdateMessage{SessionID: sess.ID, MessageID: messageID, Content: content})
	if !sess.Messages[idx].IsUser {
		return chat.Message{}
	}

	edited, _ := newState.Session(sess.ID)
	return o.generate(ctx, sess.ID, toUniform(edited.Messages[:idx+1]))
}

// generate performs the AI call, streaming when the user prefers it, and
// appends the reply (or the error text) as an assistant message.
func (o *Orchestrator) generate(ctx context.Context, sessionID string, history []ai.Message) chat.Message {
	o.dispatch(chat.SetGenerating{Value: true})
	defer o.dispatch(chat.SetGenerating{Value: false})

	var content string
	var err error
	if o.store.State().Settings.Streaming {
		content, err = o.streamReply(ctx, history)
	} else {
		var resp *ai.Response
		resp, err = o.gw.SendMessage(ctx, history)
		if err == nil {
			content = resp.Content
		}
	}

	if err != nil {
		kind := gateway.Classify(err)
		o.logger.Warn("generation failed", "session", sessionID, "kind", kind, "err", err)
		if kind == gateway.KindNotConfigured {
			content = msgNotConfigured
		} else {
			content = errorReply(kind)
		}
	}

	reply := chat.NewAssistantMessage(content)
	o.dispatch(chat.AddMessage{SessionID: sessionID, Message: reply})
	return reply
}

// streamReply drains the chunk channel through an accumulator, feeding the
// live callback along the way.
func (o *Orchestrator) streamReply(ctx context.Context, history []ai.Message) (string, error) {
	ch, err := o.gw.StreamMessage(ctx, history)
	if err != nil {
		return "", err
	}

	var acc ai.Accumulator
	for chunk := range ch {
		acc.Add(chunk)
		if o.OnChunk != nil && chunk.Content != "" {
			o.OnChunk(chunk.Content)
		}
	}
	return acc.Content(), nil
}

// =============================================================================
// SESSION MANAGEMENT
// =============================================================================

// NewSession creates an empty session and makes it current.
func (o *Orchestrator) NewSession() chat.Session {
	sess := chat.NewSession("")
	o.dispatch(chat.CreateSession{Session: sess})
	return sess
}

// SwitchSession makes a session current.
func (o *Orchestrator) SwitchSession(id string) {
	o.dispatch(chat.SetCurrentSession{ID: id})
}

// DeleteMessage removes a message from the current session.
func (o *Orchestrator) DeleteMessage(messageID string) {
	if sess, ok := o.store.State().CurrentSession(); ok {
		o.dispatch(chat.DeleteMessage{SessionID: sess.ID, MessageID: messageID})
	}
}

// DeleteSession removes a session.
func (o *Orchestrator) DeleteSession(id string) {
	o.dispatch(chat.DeleteSession{ID: id})
}

// TogglePin flips a session's pin.
func (o *Orchestrator) TogglePin(id string) {
	o.dispatch(chat.TogglePin{SessionID: id})
}

// UpdateSettings merges a settings patch.
func (o *Orchestrator) UpdateSettings(p chat.SettingsPatch) chat.Settings {
	return o.dispatch(chat.UpdateSettings{Patch: p}).Settings
}

// =============================================================================
// AUTOSAVE
// =============================================================================

// StartAutosave launches the background flush loop. State is written only
// when dirty and only when the user has autosave enabled; a final flush on
// context cancellation catches whatever is pending.
func (o *Orchestrator) StartAutosave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				o.Flush()
				return
			case <-ticker.C:
				if o.store.State().Settings.AutoSave {
					o.Flush()
				}
			}
		}
	}()
}

// Flush persists current state if dirty. MarkClean only after both snapshots
// are written.
func (o *Orchestrator) Flush() {
	if !o.dirty.Load() {
		return
	}
	state := o.store.State()
	if err := o.bridge.SaveSessions(state.Sessions); err != nil {
		o.logger.Error("flush sessions failed", "err", err)
		return
	}
	if err := o.bridge.SaveSettings(state.Settings); err != nil {
		o.logger.Error("flush settings failed", "err", err)
		return
	}
	o.dirty.Store(false)
}

// =============================================================================
// HELPERS
// =============================================================================

// toUniform converts transcript messages into the provider-neutral shape.
// Inline text attachments travel with the user turn so the model sees them.
func toUniform(msgs []chat.Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		content := m.Content
		for _, att := range m.Attachments {
			if att.Content != "" {
				content += "\n\n[Attachment: " + att.Name + "]\n" + att.Content
			}
		}
		if m.IsUser {
			out = append(out, ai.NewUserMessage(content))
		} else {
			out = append(out, ai.NewAssistantMessage(content))
		}
	}
	return out
}

func hasUserMessage(msgs []chat.Message) bool {
	for _, m := range msgs {
		if m.IsUser {
			return true
		}
	}
	return false
}

// Summary returns a short one-line description of a session for listings.
func Summary(sess chat.Session) string {
	var b strings.Builder
	if sess.IsPinned {
		b.WriteString("📌 ")
	}
	b.WriteString(sess.Title)
	return b.String()
}
