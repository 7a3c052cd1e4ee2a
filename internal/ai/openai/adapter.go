// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai implements the protocol adapter for the OpenAI chat
// completions API. Streaming uses SSE `data:` framing terminated by the
// `[DONE]` sentinel.
package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sybeez/sybeez/internal/ai"
)

// DefaultBaseURL is the OpenAI API base URL.
const DefaultBaseURL = "https://api.openai.com/v1"

const providerName = "OpenAI"

// Adapter translates the uniform contract into OpenAI wire requests.
type Adapter struct{}

// New creates an OpenAI adapter.
func New() *Adapter {
	return &Adapter{}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type chatRequest struct {
	Model       string       `json:"model"`
	Messages    []ai.Message `json:"messages"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens"`
	Stream      bool         `json:"stream"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      ai.Message `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
	Usage *ai.Usage `json:"usage"`
}

type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
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
	return map[string]string{"Authorization": "Bearer " + cfg.APIKey}
}

// Send performs a whole-response chat completion.
func (a *Adapter) Send(ctx context.Context, cfg ai.Config, msgs []ai.Message) (*ai.Response, error) {
	if cfg.APIKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	resp, err := ai.PostJSON(ctx, ai.SharedClient, a.baseURL(cfg)+"/chat/completions", a.headers(cfg), chatRequest{
		Model:       cfg.Model,
		Messages:    msgs,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
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

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, ai.NewProviderError(providerName, resp.StatusCode, "unreadable response body")
	}
	out := &ai.Response{Model: parsed.Model, Usage: parsed.Usage}
	if len(parsed.Choices) > 0 {
		out.Content = parsed.Choices[0].Message.Content
	}
	return out, nil
}

// Stream performs a streaming chat completion, yielding one chunk per delta
// frame and a terminal chunk on the `[DONE]` sentinel or end of stream.
func (a *Adapter) Stream(ctx context.Context, cfg ai.Config, msgs []ai.Message) (<-chan ai.StreamChunk, error) {
	if cfg.APIKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	resp, err := ai.PostJSON(ctx, ai.StreamingClient, a.baseURL(cfg)+"/chat/completions", a.headers(cfg), chatRequest{
		Model:       cfg.Model,
		Messages:    msgs,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Stream:      true,
	})
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
				// End of byte stream counts as completion.
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
			if len(frame.Choices) == 0 {
				continue
			}
			if delta := frame.Choices[0].Delta.Content; delta != "" {
				if !emit(ctx, ch, ai.StreamChunk{Content: delta}) {
					return
				}
			}
		}
	}()
	return ch, nil
}

// emit sends a chunk unless the consumer abandoned the stream.
func emit(ctx context.Context, ch chan<- ai.StreamChunk, chunk ai.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
