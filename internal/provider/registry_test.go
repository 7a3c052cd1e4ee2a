// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"sort"
	"testing"

	"github.com/sybeez/sybeez/internal/ai"
)

func TestRegistryCompleteness(t *testing.T) {
	want := []string{Claude, Gemini, HuggingFace, Ollama, OpenAI}
	got := IDs()
	if !sort.StringsAreSorted(got) {
		t.Error("IDs not in stable sorted order")
	}
	if len(got) != len(want) {
		t.Fatalf("got %d providers, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IDs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryEntries(t *testing.T) {
	for _, id := range IDs() {
		info, ok := Get(id)
		if !ok {
			t.Fatalf("Get(%q) missing", id)
		}
		if info.ID != id {
			t.Errorf("info.ID = %q, want %q", info.ID, id)
		}
		if info.Name == "" || info.Description == "" || len(info.Models) == 0 {
			t.Errorf("incomplete catalog entry for %q: %+v", id, info)
		}
	}
}

func TestCredentialRequirements(t *testing.T) {
	requires := map[string]bool{
		OpenAI:      true,
		Gemini:      true,
		Claude:      true,
		Ollama:      false,
		HuggingFace: false,
	}
	for id, want := range requires {
		info, _ := Get(id)
		if info.RequiresAPIKey != want {
			t.Errorf("%s RequiresAPIKey = %v, want %v", id, info.RequiresAPIKey, want)
		}
	}
}

func TestDefaults(t *testing.T) {
	tests := []struct {
		id        string
		model     string
		baseURL   string
		maxTokens int
		streaming bool
	}{
		{OpenAI, "gpt-4o-mini", "", 4000, true},
		{Gemini, "gemini-1.5-flash", "", 4000, true},
		{Claude, "claude-3-5-sonnet-20241022", "", 4000, true},
		{Ollama, "llama3.2", "http://localhost:11434", 4000, true},
		{HuggingFace, "microsoft/DialoGPT-large", "https://api-inference.huggingface.co", 1000, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			cfg := Defaults(tt.id)
			if cfg.Provider != tt.id || cfg.Model != tt.model {
				t.Errorf("model = %q, want %q", cfg.Model, tt.model)
			}
			if cfg.BaseURL != tt.baseURL {
				t.Errorf("baseURL = %q, want %q", cfg.BaseURL, tt.baseURL)
			}
			if cfg.MaxTokens != tt.maxTokens {
				t.Errorf("maxTokens = %d, want %d", cfg.MaxTokens, tt.maxTokens)
			}
			if cfg.Streaming != tt.streaming {
				t.Errorf("streaming = %v, want %v", cfg.Streaming, tt.streaming)
			}
			if cfg.Temperature != 0.7 {
				t.Errorf("temperature = %v, want 0.7", cfg.Temperature)
			}
		})
	}
}

func TestDefaultsUnknownProvider(t *testing.T) {
	cfg := Defaults("minitel")
	if cfg != (ai.Config{Provider: "minitel"}) {
		t.Errorf("unknown provider defaults = %+v", cfg)
	}
}

func TestDefaultModelIsInCatalog(t *testing.T) {
	for _, id := range IDs() {
		info, _ := Get(id)
		def := Defaults(id).Model
		found := false
		for _, m := range info.Models {
			if m == def {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%s default model %q not in catalog %v", id, def, info.Models)
		}
	}
}
