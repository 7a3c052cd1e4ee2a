// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway is the single entry point for AI calls. It resolves the
// active configuration and credential at call time, prepends the assistant
// persona, dispatches to the protocol adapter for the active provider, and
// classifies failures into the classes callers present to users.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/sybeez/sybeez/internal/ai"
	"github.com/sybeez/sybeez/internal/ai/claude"
	"github.com/sybeez/sybeez/internal/ai/gemini"
	"github.com/sybeez/sybeez/internal/ai/huggingface"
	"github.com/sybeez/sybeez/internal/ai/ollama"
	"github.com/sybeez/sybeez/internal/ai/openai"
	"github.com/sybeez/sybeez/internal/provider"
)

// SystemPreamble is the persona prepended to every outbound conversation
// unless the caller already supplied a system turn.
const SystemPreamble = "You are Sybeez, a helpful AI assistant. Provide clear, accurate, and helpful responses to user questions. Be friendly but professional."

// =============================================================================
// SOURCES
// =============================================================================

// ConfigSource yields the active provider configuration. Resolution happens
// per call, so configuration changes take effect on the next message without
// rebuilding the gateway.
type ConfigSource interface {
	ActiveConfig() (ai.Config, bool)
}

// CredentialSource yields the stored credential for a provider. A missing
// credential returns "", nil; only store failures return an error.
type CredentialSource interface {
	APIKey(providerID string) (string, error)
}

// =============================================================================
// GATEWAY
// =============================================================================

// Gateway dispatches uniform requests to the adapter for the active provider.
type Gateway struct {
	adapters map[string]ai.Adapter
	configs  ConfigSource
	creds    CredentialSource
	limiter  *rate.Limiter
	logger   *log.Logger
}

// Option customizes gateway construction.
type Option func(*Gateway)

// WithAdapter overrides the adapter for a provider id. Used by tests to
// substitute fakes.
func WithAdapter(id string, a ai.Adapter) Option {
	return func(g *Gateway) { g.adapters[id] = a }
}

// WithRateLimit caps outbound calls per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(g *Gateway) { g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// New creates a gateway over the full adapter set.
func New(configs ConfigSource, creds CredentialSource, logger *log.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	g := &Gateway{
		adapters: map[string]ai.Adapter{
			provider.OpenAI:      openai.New(),
			provider.Gemini:      gemini.New(),
			provider.Claude:      claude.New(),
			provider.Ollama:      ollama.New(),
			provider.HuggingFace: huggingface.New(),
		},
		configs: configs,
		creds:   creds,
		logger:  logger.With("component", "gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsConfigured reports whether an active provider exists.
func (g *Gateway) IsConfigured() bool {
	_, ok := g.configs.ActiveConfig()
	return ok
}

// resolve produces the effective config for this call: active configuration
// plus the credential from the store. Late binding means a key saved a moment
// ago is honored now.
func (g *Gateway) resolve(ctx context.Context) (ai.Config, ai.Adapter, error) {
	cfg, ok := g.configs.ActiveConfig()
	if !ok || cfg.Provider == "" {
		return ai.Config{}, nil, ai.ErrNotConfigured
	}

	adapter, ok := g.adapters[cfg.Provider]
	if !ok {
		return ai.Config{}, nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	if g.creds != nil {
		key, err := g.creds.APIKey(cfg.Provider)
		if err != nil {
			return ai.Config{}, nil, fmt.Errorf("failed to load credential: %w", err)
		}
		cfg.APIKey = key
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return ai.Config{}, nil, err
		}
	}
	return cfg, adapter, nil
}

// withPreamble prepends the persona unless the history already opens with a
// system turn.
func withPreamble(msgs []ai.Message) []ai.Message {
	if len(msgs) > 0 && msgs[0].Role == ai.RoleSystem {
		return msgs
	}
	out := make([]ai.Message, 0, len(msgs)+1)
	out = append(out, ai.NewSystemMessage(SystemPreamble))
	return append(out, msgs...)
}

// SendMessage performs a whole-response call against the active provider.
func (g *Gateway) SendMessage(ctx context.Context, msgs []ai.Message) (*ai.Response, error) {
	cfg, adapter, err := g.resolve(ctx)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("sending message", "provider", cfg.Provider, "model", cfg.Model, "turns", len(msgs))
	resp, err := adapter.Send(ctx, cfg, withPreamble(msgs))
	if err != nil {
		g.logger.Warn("send failed", "provider", cfg.Provider, "kind", Classify(err), "err", err)
		return nil, err
	}
	return resp, nil
}

// StreamMessage performs a streaming call against the active provider. When
// the active configuration disables streaming, the call degrades to
// SendMessage and the full reply arrives as a single content chunk followed
// by the terminal chunk, so consumers handle one shape regardless.
func (g *Gateway) StreamMessage(ctx context.Context, msgs []ai.Message) (<-chan ai.StreamChunk, error) {
	cfg, adapter, err := g.resolve(ctx)
	if err != nil {
		return nil, err
	}

	outbound := withPreamble(msgs)
	g.logger.Debug("streaming message", "provider", cfg.Provider, "model", cfg.Model, "turns", len(msgs))

	if !cfg.Streaming {
		resp, err := adapter.Send(ctx, cfg, outbound)
		if err != nil {
			g.logger.Warn("stream (degraded) failed", "provider", cfg.Provider, "kind", Classify(err), "err", err)
			return nil, err
		}
		ch := make(chan ai.StreamChunk, 2)
		if resp.Content != "" {
			ch <- ai.StreamChunk{Content: resp.Content}
		}
		ch <- ai.StreamChunk{Done: true}
		close(ch)
		return ch, nil
	}

	stream, err := adapter.Stream(ctx, cfg, outbound)
	if err != nil {
		g.logger.Warn("stream failed", "provider", cfg.Provider, "kind", Classify(err), "err", err)
		return nil, err
	}
	return stream, nil
}

// TestConnection sends a canned probe message through the active provider.
// A nil return means the full path — config, credential, transport, auth —
// works end to end.
func (g *Gateway) TestConnection(ctx context.Context) error {
	_, err := g.SendMessage(ctx, []ai.Message{ai.NewUserMessage("Hello! This is a connection test.")})
	return err
}

// =============================================================================
// FAILURE CLASSIFICATION
// =============================================================================

// Kind is the failure class a caller presents to the user.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotConfigured
	KindAuth
	KindRateLimit
	KindNetwork
)

// String returns a short label for the failure class.
func (k Kind) String() string {
	switch k {
	case KindNotConfigured:
		return "not_configured"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Classify maps an error onto its failure class. Sentinels win; otherwise the
// provider error status decides; finally the message text is pattern-matched
// as a last resort for errors that crossed a boundary as plain text.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		return KindNotConfigured
	case errors.Is(err, ai.ErrMissingAPIKey), errors.Is(err, ai.ErrAuthFailed):
		return KindAuth
	case errors.Is(err, ai.ErrRateLimited):
		return KindRateLimit
	case errors.Is(err, ai.ErrNetwork):
		return KindNetwork
	}

	var pe *ai.ProviderError
	if errors.As(err, &pe) {
		switch pe.Status {
		case 401, 403:
			return KindAuth
		case 429:
			return KindRateLimit
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"), strings.Contains(msg, "unauthorized"), strings.Contains(msg, "authentication"):
		return KindAuth
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
		return KindRateLimit
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection refused"), strings.Contains(msg, "timeout"):
		return KindNetwork
	}
	return KindUnknown
}
