// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama implements the protocol adapter for a local Ollama daemon.
// Ollama needs no credential; streaming is newline-delimited JSON with an
// explicit done flag on the final frame.
package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sybeez/sybeez/internal/ai"
)

// DefaultBaseURL is the local Ollama daemon address.
const DefaultBaseURL = "http://localhost:11434"

const providerName = "Ollama"

// Adapter translates the uniform contract into Ollama wire requests.
type Adapter struct{}

// New creates an Ollama adapter.
func New() *Adapter {
	return &Adapter{}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type chatRequest struct {
	Model    string       `json:"model"`
	Messages []ai.Message `json:"messages"`
	Stream   bool         `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature"`
		NumPredict  int     `json:"num_predict"`
	} `json:"options"`
}

type chatFrame struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
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

func (a *Adapter) request(cfg ai.Config, msgs []ai.Message, stream bool) chatRequest {
	req := chatRequest{Model: cfg.Model, Messages: msgs, Stream: stream}
	req.Options.Temperature = cfg.Temperature
	req.Options.NumPredict = cfg.MaxTokens
	return req
}

// Send performs a whole-response chat call against the local daemon.
func (a *Adapter) Send(ctx context.Context, cfg ai.Config, msgs []ai.Message) (*ai.Response, error) {
	resp, err := ai.PostJSON(ctx, ai.SharedClient, a.baseURL(cfg)+"/api/chat", nil, a.request(cfg, msgs, false))
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

	var parsed chatFrame
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, ai.NewProviderError(providerName, resp.StatusCode, "unreadable response body")
	}
	return &ai.Response{
		Content: parsed.Message.Content,
		Model:   parsed.Model,
		Usage: &ai.Usage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
		},
	}, nil
}

// Stream performs a streaming chat call, yielding one chunk per NDJSON frame
// and a terminal chunk when the daemon flags done or closes the connection.
func (a *Adapter) Stream(ctx context.Context, cfg ai.Config, msgs []ai.Message) (<-chan ai.StreamChunk, error) {
	resp, err := ai.PostJSON(ctx, ai.StreamingClient, a.baseURL(cfg)+"/api/chat", nil, a.request(cfg, msgs, true))
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

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var frame chatFrame
			if err := json.Unmarshal(line, &frame); err != nil {
				continue // malformed frames are skipped, not fatal
			}
			if frame.Message.Content != "" {
				if !emit(ctx, ch, ai.StreamChunk{Content: frame.Message.Content}) {
					return
				}
			}
			if frame.Done {
				emit(ctx, ch, ai.StreamChunk{Done: true})
				return
			}
		}
		// Connection closed without a done frame still ends the stream.
		emit(ctx, ch, ai.StreamChunk{Done: true})
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
