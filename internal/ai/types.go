// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ai

import "context"

// =============================================================================
// ROLES
// =============================================================================

// Role identifies the author of a uniform message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// =============================================================================
// UNIFORM MESSAGE
// =============================================================================

// Message is a single turn in provider-neutral form. Slices of Message are
// always in conversation order, oldest first.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// =============================================================================
// RESPONSE
// =============================================================================

// Usage holds token accounting as reported by the vendor, when available.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a whole-response reply in provider-neutral form.
type Response struct {
	Content string `json:"content"`
	Usage   *Usage `json:"usage,omitempty"`
	Model   string `json:"model,omitempty"`
}

// =============================================================================
// STREAM CHUNK
// =============================================================================

// StreamChunk is one incremental delta of a streaming reply.
//
// Invariant: every stream yields exactly one chunk with Done=true, after
// which the channel is closed and no further chunks follow. Content may be
// empty on the terminal chunk. Consumers must key off Done, never off
// channel closure alone.
type StreamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// =============================================================================
// PROVIDER CONFIGURATION
// =============================================================================

// Config is the active provider configuration threaded into every adapter
// call. The gateway resolves it (and the credential) at call time, so a key
// saved after gateway construction is honored on the next call.
type Config struct {
	Provider    string  `json:"provider" toml:"provider"`
	Model       string  `json:"model" toml:"model"`
	APIKey      string  `json:"-" toml:"-"` // resolved from the credential store, never persisted here
	BaseURL     string  `json:"base_url,omitempty" toml:"base_url"`
	Temperature float64 `json:"temperature" toml:"temperature"`
	MaxTokens   int     `json:"max_tokens" toml:"max_tokens"`
	Streaming   bool    `json:"streaming" toml:"streaming"`
}

// =============================================================================
// ADAPTER CONTRACT
// =============================================================================

// Adapter translates between the uniform contract and one vendor's wire
// protocol. Implementations issue exactly one outbound HTTP request per
// call.
//
// Stream returns after response headers are received; decoding happens on a
// goroutine that sends chunks on the returned channel. The sequence is
// finite, not restartable, and always terminates with a Done chunk (see
// StreamChunk). A nil error with a drained channel is the only successful
// shape; pre-flight failures (missing credential, bad status) are returned
// as an error before any chunk is produced.
type Adapter interface {
	Send(ctx context.Context, cfg Config, msgs []Message) (*Response, error)
	Stream(ctx context.Context, cfg Config, msgs []Message) (<-chan StreamChunk, error)
}
