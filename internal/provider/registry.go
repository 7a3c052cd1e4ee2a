// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider holds the static catalog of supported AI backends:
// identity, capability requirements, model lists, and per-provider default
// tunables. Pure data; protocol behavior lives in the internal/ai
// subpackages.
package provider

import (
	"sort"

	"github.com/sybeez/sybeez/internal/ai"
)

// Provider identifiers. These are the registry keys, the credential-store
// keys, and the gateway dispatch keys.
const (
	OpenAI      = "openai"
	Gemini      = "gemini"
	Claude      = "claude"
	Ollama      = "ollama"
	HuggingFace = "huggingface"
)

// =============================================================================
// CATALOG
// =============================================================================

// Info describes one supported backend.
type Info struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Models         []string `json:"models"`
	FreeModels     []string `json:"free_models,omitempty"`
	RequiresAPIKey bool     `json:"requires_api_key"`
}

// Registry is the static provider catalog.
var Registry = map[string]Info{
	OpenAI: {
		ID:             OpenAI,
		Name:           "OpenAI",
		Models:         []string{"gpt-4", "gpt-4-turbo", "gpt-3.5-turbo", "gpt-4o-mini"},
		RequiresAPIKey: true,
		Description:    "Most advanced AI models, requires API key",
	},
	Gemini: {
		ID:             Gemini,
		Name:           "Google Gemini",
		Models:         []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-pro"},
		FreeModels:     []string{"gemini-1.5-flash"},
		RequiresAPIKey: true,
		Description:    "Google's AI models with generous free tier",
	},
	Claude: {
		ID:             Claude,
		Name:           "Anthropic Claude",
		Models:         []string{"claude-3-5-sonnet-20241022", "claude-3-haiku-20240307", "claude-3-opus-20240229"},
		RequiresAPIKey: true,
		Description:    "Anthropic's advanced AI models",
	},
	Ollama: {
		ID:             Ollama,
		Name:           "Ollama (Local)",
		Models:         []string{"llama3.2", "llama3.1", "gemma2", "qwen2.5", "mistral", "codellama"},
		RequiresAPIKey: false,
		Description:    "Run AI models locally on your machine",
	},
	HuggingFace: {
		ID:             HuggingFace,
		Name:           "Hugging Face",
		Models:         []string{"microsoft/DialoGPT-large", "facebook/blenderbot-400M-distill", "microsoft/phi-2"},
		FreeModels:     []string{"microsoft/DialoGPT-large", "facebook/blenderbot-400M-distill"},
		RequiresAPIKey: false,
		Description:    "Open source models via Hugging Face",
	},
}

// Get returns the catalog entry for a provider id.
func Get(id string) (Info, bool) {
	info, ok := Registry[id]
	return info, ok
}

// IDs returns the known provider identifiers in stable order.
func IDs() []string {
	ids := make([]string, 0, len(Registry))
	for id := range Registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// DEFAULT TUNABLES
// =============================================================================

// Defaults returns the default configuration for a provider. Switching the
// active provider re-applies these unless the same update overrides them.
// Unknown ids return a zero-value config with only the id set.
func Defaults(id string) ai.Config {
	cfg := ai.Config{Provider: id, Temperature: 0.7, MaxTokens: 4000, Streaming: true}
	switch id {
	case OpenAI:
		cfg.Model = "gpt-4o-mini"
	case Gemini:
		cfg.Model = "gemini-1.5-flash"
	case Claude:
		cfg.Model = "claude-3-5-sonnet-20241022"
	case Ollama:
		cfg.Model = "llama3.2"
		cfg.BaseURL = "http://localhost:11434"
	case HuggingFace:
		cfg.Model = "microsoft/DialoGPT-large"
		cfg.BaseURL = "https://api-inference.huggingface.co"
		cfg.MaxTokens = 1000
		cfg.Streaming = false
	default:
		cfg = ai.Config{Provider: id}
	}
	return cfg
}
