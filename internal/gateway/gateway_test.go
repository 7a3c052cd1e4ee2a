// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sybeez/sybeez/internal/ai"
	"github.com/sybeez/sybeez/internal/provider"
)

// fakeAdapter records the messages it is handed and replays canned output.
type fakeAdapter struct {
	lastCfg  ai.Config
	lastMsgs []ai.Message
	resp     *ai.Response
	chunks   []ai.StreamChunk
	err      error
}

func (f *fakeAdapter) Send(_ context.Context, cfg ai.Config, msgs []ai.Message) (*ai.Response, error) {
	f.lastCfg, f.lastMsgs = cfg, msgs
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeAdapter) Stream(_ context.Context, cfg ai.Config, msgs []ai.Message) (<-chan ai.StreamChunk, error) {
	f.lastCfg, f.lastMsgs = cfg, msgs
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan ai.StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

type fakeConfigs struct {
	cfg ai.Config
	ok  bool
}

func (f *fakeConfigs) ActiveConfig() (ai.Config, bool) { return f.cfg, f.ok }

type fakeCreds struct {
	keys map[string]string
	err  error
}

func (f *fakeCreds) APIKey(id string) (string, error) { return f.keys[id], f.err }

func testGateway(t *testing.T, cfg ai.Config, ok bool, fake *fakeAdapter) (*Gateway, *fakeCreds) {
	t.Helper()
	creds := &fakeCreds{keys: map[string]string{}}
	gw := New(&fakeConfigs{cfg: cfg, ok: ok}, creds, nil, WithAdapter(cfg.Provider, fake))
	return gw, creds
}

func TestSendMessageNotConfigured(t *testing.T) {
	gw := New(&fakeConfigs{}, &fakeCreds{}, nil)
	_, err := gw.SendMessage(context.Background(), nil)
	require.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestSendMessagePrependsPersona(t *testing.T) {
	fake := &fakeAdapter{resp: &ai.Response{Content: "hi"}}
	gw, _ := testGateway(t, ai.Config{Provider: provider.OpenAI, Model: "m"}, true, fake)

	_, err := gw.SendMessage(context.Background(), []ai.Message{ai.NewUserMessage("hello")})
	require.NoError(t, err)
	require.Len(t, fake.lastMsgs, 2)
	require.Equal(t, ai.RoleSystem, fake.lastMsgs[0].Role)
	require.Equal(t, SystemPreamble, fake.lastMsgs[0].Content)
}

func TestSendMessageKeepsCallerSystemTurn(t *testing.T) {
	fake := &fakeAdapter{resp: &ai.Response{Content: "hi"}}
	gw, _ := testGateway(t, ai.Config{Provider: provider.OpenAI}, true, fake)

	history := []ai.Message{
		ai.NewSystemMessage("custom persona"),
		ai.NewUserMessage("hello"),
	}
	_, err := gw.SendMessage(context.Background(), history)
	require.NoError(t, err)
	require.Len(t, fake.lastMsgs, 2, "persona must not be double-prepended")
	require.Equal(t, "custom persona", fake.lastMsgs[0].Content)
}

func TestCredentialResolvedAtCallTime(t *testing.T) {
	fake := &fakeAdapter{resp: &ai.Response{}}
	gw, creds := testGateway(t, ai.Config{Provider: provider.Claude}, true, fake)

	_, err := gw.SendMessage(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, fake.lastCfg.APIKey)

	// Key saved after construction is honored on the next call.
	creds.keys[provider.Claude] = "sk-late"
	_, err = gw.SendMessage(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "sk-late", fake.lastCfg.APIKey)
}

func TestCredentialStoreFailureSurfaces(t *testing.T) {
	fake := &fakeAdapter{resp: &ai.Response{}}
	creds := &fakeCreds{err: errors.New("disk on fire")}
	gw := New(&fakeConfigs{cfg: ai.Config{Provider: provider.OpenAI}, ok: true}, creds, nil,
		WithAdapter(provider.OpenAI, fake))

	_, err := gw.SendMessage(context.Background(), nil)
	require.ErrorContains(t, err, "failed to load credential")
}

func TestStreamMessageDegradesWhenStreamingDisabled(t *testing.T) {
	fake := &fakeAdapter{resp: &ai.Response{Content: "full reply"}}
	gw, _ := testGateway(t, ai.Config{Provider: provider.HuggingFace, Streaming: false}, true, fake)

	ch, err := gw.StreamMessage(context.Background(), []ai.Message{ai.NewUserMessage("q")})
	require.NoError(t, err)

	var chunks []ai.StreamChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	require.Len(t, chunks, 2)
	require.Equal(t, "full reply", chunks[0].Content)
	require.True(t, chunks[1].Done)
}

func TestStreamMessagePassesThroughWhenStreamingEnabled(t *testing.T) {
	fake := &fakeAdapter{chunks: []ai.StreamChunk{{Content: "a"}, {Content: "b"}, {Done: true}}}
	gw, _ := testGateway(t, ai.Config{Provider: provider.OpenAI, Streaming: true}, true, fake)

	ch, err := gw.StreamMessage(context.Background(), []ai.Message{ai.NewUserMessage("q")})
	require.NoError(t, err)
	require.Equal(t, "ab", ai.Drain(ch))
}

func TestUnsupportedProvider(t *testing.T) {
	gw := New(&fakeConfigs{cfg: ai.Config{Provider: "minitel"}, ok: true}, &fakeCreds{}, nil)
	_, err := gw.SendMessage(context.Background(), nil)
	require.ErrorContains(t, err, "unsupported provider")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"not configured", ai.ErrNotConfigured, KindNotConfigured},
		{"missing key", ai.ErrMissingAPIKey, KindAuth},
		{"auth sentinel wrapped", fmt.Errorf("call failed: %w", ai.ErrAuthFailed), KindAuth},
		{"rate limit sentinel", ai.ErrRateLimited, KindRateLimit},
		{"network sentinel", fmt.Errorf("%w: connect refused", ai.ErrNetwork), KindNetwork},
		{"provider error 401", ai.NewProviderError("OpenAI", 401, "bad key"), KindAuth},
		{"provider error 429", ai.NewProviderError("Gemini", 429, "quota"), KindRateLimit},
		{"provider error 500", ai.NewProviderError("Claude", 500, "oops"), KindUnknown},
		{"text pattern api key", errors.New("invalid API key supplied"), KindAuth},
		{"text pattern rate limit", errors.New("rate limit exceeded for model"), KindRateLimit},
		{"text pattern timeout", errors.New("request timeout after 60s"), KindNetwork},
		{"unknown", errors.New("flux capacitor inverted"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
