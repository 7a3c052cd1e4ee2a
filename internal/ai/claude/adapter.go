// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package claude implements the protocol adapter for the Anthropic messages
// API. The system turn is hoisted out of the message list into the
// top-level `system` field; streaming deltas arrive as SSE frames of type
// `content_block_delta`.
package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sybeez/sybeez/internal/ai"
)

// DefaultBaseURL is the Anthropic API base URL.
const DefaultBaseURL = "https://api.anthropic.com/v1"

// apiVersion is the required anthropic-version header value.
const apiVersion = "2023-06-01"

const providerName = "Claude"

// Adapter translates the uniform contract into Anthropic wire requests.
type Adapter struct{}

// New creates a Claude adapter.
func New() *Adapter {
	return &Adapter{}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type messagesRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
	System      string       `json:"system,omitempty"`
	Messages    []ai.Message `json:"messages"`
	Stream      bool         `json:"stream,omitempty"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type streamFrame struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

// =============================================================================
// ADAPTER
// =============================================================================

func (a *Adapter) baseURL(cfg ai.Config) string {
	if cfg.BaseURL != "" {
		return strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return DefaultBaseURL
}

func (a *Adapter) headers(cfg ai.Config) map[string]string {
	return map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": apiVersion,
	}
}

// splitSystem separates the system turn from the conversation turns.
func splitSystem(msgs []ai.Message) (string, []ai.Message) {
	var system string
	turns := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == ai.RoleSystem {
			if system == "" {
				system = m.Content
			}
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}

func (a *Adapter) request(cfg ai.Config, msgs []ai.Message, stream bool) messagesRequest {
	system, turns := splitSystem(msgs)
	return messagesRequest{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		System:      system,
		Messages:    turns,
		Stream:      stream,
	}
}

// Send performs a whole-response messages call.
func (a *Adapter) Send(ctx context.Context, cfg ai.Config, msgs []ai.Message) (*ai.Response, error) {
	if cfg.APIKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	resp, err := ai.PostJSON(ctx, ai.SharedClient, a.baseURL(cfg)+"/messages", a.headers(cfg), a.request(cfg, msgs, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := ai.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ai.NewProviderError(providerName, resp.StatusCode, ai.ErrorMessage(body))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, ai.NewProviderError(providerName, resp.StatusCode, "unreadable response body")
	}
	out := &ai.Response{
		Model: parsed.Model,
		Usage: &ai.Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}
	if len(parsed.Content) > 0 {
		out.Content = parsed.Content[0].Text
	}
	return out, nil
}

// Stream performs a streaming messages call, yielding one chunk per
// content_block_delta frame and a terminal chunk at end of stream.
func (a *Adapter) Stream(ctx context.Context, cfg ai.Config, msgs []ai.Message) (<-chan ai.StreamChunk, error) {
	if cfg.APIKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	resp, err := ai.PostJSON(ctx, ai.StreamingClient, a.baseURL(cfg)+"/messages", a.headers(cfg), a.request(cfg, msgs, true))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, readErr := ai.ReadBody(resp)
		resp.Body.Close()
		if readErr != nil {
			return nil, ai.NewProviderError(providerName, resp.StatusCode, "")
		}
		return nil, ai.NewProviderError(providerName, resp.StatusCode, ai.ErrorMessage(body))
	}

	ch := make(chan ai.StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(ch)

		sse := ai.NewSSEReader(resp.Body)
		for {
			_, data, err := sse.ReadEvent()
			if err != nil {
				emit(ctx, ch, ai.StreamChunk{Done: true})
				return
			}
			if string(data) == "[DONE]" {
				emit(ctx, ch, ai.StreamChunk{Done: true})
				return
			}

			var frame streamFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				continue // malformed frames are skipped, not fatal
			}
			if frame.Type != "content_block_delta" || frame.Delta.Text == "" {
				continue
			}
			if !emit(ctx, ch, ai.StreamChunk{Content: frame.Delta.Text}) {
				return
			}
		}
	}()
	return ch, nil
}

func emit(ctx context.Context, ch chan<- ai.StreamChunk, chunk ai.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
