// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sybeez/sybeez/internal/chat"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func indexedSessions() []chat.Session {
	cooking := chat.NewSession("Cooking")
	cooking.Messages = append(cooking.Messages,
		chat.NewUserMessage("how do I make sourdough bread?", nil),
		chat.NewAssistantMessage("Start with a levain and a long fermentation."),
	)
	travel := chat.NewSession("Travel")
	travel.Messages = append(travel.Messages,
		chat.NewUserMessage("cheap flights to Lisbon", nil),
		chat.NewAssistantMessage("Midweek departures are usually cheapest."),
	)
	return []chat.Session{cooking, travel}
}

func TestSearchFindsMatches(t *testing.T) {
	idx := openTestIndex(t)
	sessions := indexedSessions()
	require.NoError(t, idx.Rebuild(sessions))

	results, err := idx.Search(context.Background(), "sourdough", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, sessions[0].ID, results[0].SessionID)
	require.Equal(t, "Cooking", results[0].SessionTitle)
	require.True(t, results[0].IsUser)
	require.Contains(t, results[0].Content, "sourdough")
}

func TestSearchPrefixMatching(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Rebuild(indexedSessions()))

	results, err := idx.Search(context.Background(), "ferment", 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "tokens match as prefixes")
	require.False(t, results[0].IsUser)
}

func TestSearchNoMatches(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Rebuild(indexedSessions()))

	results, err := idx.Search(context.Background(), "quantum chromodynamics", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchEmptyQuery(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Rebuild(indexedSessions()))

	results, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchQuotesInQueryAreSafe(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Rebuild(indexedSessions()))

	_, err := idx.Search(context.Background(), `"; DROP TABLE messages; --`, 10)
	require.NoError(t, err, "FTS syntax in user input must not error")
}

func TestRebuildReplacesIndex(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Rebuild(indexedSessions()))

	// Rebuild with a different corpus drops old entries.
	fresh := chat.NewSession("Fresh")
	fresh.Messages = append(fresh.Messages, chat.NewUserMessage("only entry now", nil))
	require.NoError(t, idx.Rebuild([]chat.Session{fresh}))

	results, err := idx.Search(context.Background(), "sourdough", 10)
	require.NoError(t, err)
	require.Empty(t, results)

	results, err = idx.Search(context.Background(), "entry", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearchLimit(t *testing.T) {
	idx := openTestIndex(t)
	sess := chat.NewSession("Repeats")
	for range [5]struct{}{} {
		sess.Messages = append(sess.Messages, chat.NewUserMessage("repeated phrase", nil))
	}
	require.NoError(t, idx.Rebuild([]chat.Session{sess}))

	results, err := idx.Search(context.Background(), "repeated", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestBuildFTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"single token", "hello", `"hello"*`},
		{"multiple tokens", "hello world", `"hello"* "world"*`},
		{"embedded quotes escaped", `say "hi"`, `"say"* """hi"""*`},
		{"whitespace only", "  \t ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, buildFTSQuery(tt.query))
		})
	}
}
