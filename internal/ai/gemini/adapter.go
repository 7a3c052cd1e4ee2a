// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini implements the protocol adapter for the Google Gemini
// generateContent API. Gemini rejects a `system` role inside the turn
// list, so system turns are filtered out and hoisted into the dedicated
// systemInstruction field; the assistant role maps onto "model". The
// streaming endpoint emits candidate objects one JSON document per line.
package gemini

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/sybeez/sybeez/internal/ai"
)

// DefaultBaseURL is the Gemini API base URL.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

const providerName = "Gemini"

// Adapter translates the uniform contract into Gemini wire requests.
type Adapter struct{}

// New creates a Gemini adapter.
func New() *Adapter {
	return &Adapter{}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
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

// endpoint builds the model method URL with the key as a query parameter,
// which is Gemini's documented auth scheme.
func (a *Adapter) endpoint(cfg ai.Config, method string) string {
	return a.baseURL(cfg) + "/v1beta/models/" + cfg.Model + ":" + method + "?key=" + url.QueryEscape(cfg.APIKey)
}

// request converts the uniform turn list into Gemini contents, hoisting the
// system turn into systemInstruction.
func (a *Adapter) request(cfg ai.Config, msgs []ai.Message) generateRequest {
	var req generateRequest
	req.GenerationConfig.Temperature = cfg.Temperature
	req.GenerationConfig.MaxOutputTokens = cfg.MaxTokens

	for _, m := range msgs {
		if m.Role == ai.RoleSystem {
			if req.SystemInstruction == nil {
				req.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
			}
			continue
		}
		role := "user"
		if m.Role == ai.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	return req
}

// Send performs a whole-response generateContent call.
func (a *Adapter) Send(ctx context.Context, cfg ai.Config, msgs []ai.Message) (*ai.Response, error) {
	if cfg.APIKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	resp, err := ai.PostJSON(ctx, ai.SharedClient, a.endpoint(cfg, "generateContent"), nil, a.request(cfg, msgs))
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

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, ai.NewProviderError(providerName, resp.StatusCode, "unreadable response body")
	}
	// Gemini does not report usage on this endpoint.
	return &ai.Response{Content: parsed.text(), Model: cfg.Model}, nil
}

// Stream performs a streamGenerateContent call, yielding one chunk per
// decodable line and a terminal chunk at end of stream.
func (a *Adapter) Stream(ctx context.Context, cfg ai.Config, msgs []ai.Message) (<-chan ai.StreamChunk, error) {
	if cfg.APIKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	resp, err := ai.PostJSON(ctx, ai.StreamingClient, a.endpoint(cfg, "streamGenerateContent"), nil, a.request(cfg, msgs))
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

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				var frame generateResponse
				// Lines that are not standalone candidate objects (array
				// brackets, commas, partial reads) are skipped, not fatal.
				if jsonErr := json.Unmarshal(trimFrame(line), &frame); jsonErr == nil {
					if text := frame.text(); text != "" {
						if !emit(ctx, ch, ai.StreamChunk{Content: text}) {
							return
						}
					}
				}
			}
			if err != nil {
				// Transport errors end the stream the same way the vendor
				// closing it does.
				emit(ctx, ch, ai.StreamChunk{Done: true})
				return
			}
		}
	}()
	return ch, nil
}

// trimFrame strips the array punctuation the streaming endpoint wraps
// around each candidate document.
func trimFrame(line []byte) []byte {
	s := strings.TrimSpace(string(line))
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSuffix(s, ",")
	return []byte(s)
}

func emit(ctx context.Context, ch chan<- ai.StreamChunk, chunk ai.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
