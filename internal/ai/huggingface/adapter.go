// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package huggingface implements the protocol adapter for the Hugging Face
// inference API. The API is whole-response only, so Stream degrades to a
// single content chunk followed by the terminal chunk. A credential is
// optional; anonymous calls get the free-tier rate limits.
package huggingface

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sybeez/sybeez/internal/ai"
)

// DefaultBaseURL is the hosted inference API base URL.
const DefaultBaseURL = "https://api-inference.huggingface.co"

const providerName = "HuggingFace"

// Adapter translates the uniform contract into inference API requests.
type Adapter struct{}

// New creates a Hugging Face adapter.
func New() *Adapter {
	return &Adapter{}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type inferRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		Temperature float64 `json:"temperature"`
		MaxLength   int     `json:"max_length"`
	} `json:"parameters"`
}

type inferResult struct {
	GeneratedText string `json:"generated_text"`
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
	if cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + cfg.APIKey}
}

// lastUserInput returns the content of the most recent non-system turn. The
// inference API takes a single prompt, not a conversation.
func lastUserInput(msgs []ai.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != ai.RoleSystem {
			return msgs[i].Content
		}
	}
	return ""
}

// Send performs a whole-response inference call.
func (a *Adapter) Send(ctx context.Context, cfg ai.Config, msgs []ai.Message) (*ai.Response, error) {
	var req inferRequest
	req.Inputs = lastUserInput(msgs)
	req.Parameters.Temperature = cfg.Temperature
	req.Parameters.MaxLength = cfg.MaxTokens

	resp, err := ai.PostJSON(ctx, ai.SharedClient, a.baseURL(cfg)+"/models/"+cfg.Model, a.headers(cfg), req)
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

	// The API returns either a bare object or a one-element array of it.
	var results []inferResult
	if err := json.Unmarshal(body, &results); err != nil {
		var single inferResult
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, ai.NewProviderError(providerName, resp.StatusCode, "unreadable response body")
		}
		results = []inferResult{single}
	}

	out := &ai.Response{Model: cfg.Model}
	if len(results) > 0 {
		out.Content = results[0].GeneratedText
	}
	return out, nil
}

// Stream degrades to a whole-response call: one content chunk, then the
// terminal chunk.
func (a *Adapter) Stream(ctx context.Context, cfg ai.Config, msgs []ai.Message) (<-chan ai.StreamChunk, error) {
	resp, err := a.Send(ctx, cfg, msgs)
	if err != nil {
		return nil, err
	}

	ch := make(chan ai.StreamChunk)
	go func() {
		defer close(ch)
		if resp.Content != "" {
			if !emit(ctx, ch, ai.StreamChunk{Content: resp.Content}) {
				return
			}
		}
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
