// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ai

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

func TestNewProviderErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"unauthorized", 401, ErrAuthFailed},
		{"forbidden", 403, ErrAuthFailed},
		{"too many requests", 429, ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewProviderError("OpenAI", tt.status, "nope")
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("status %d not mapped to sentinel %v", tt.status, tt.sentinel)
			}
		})
	}
}

func TestNewProviderErrorPlainStatus(t *testing.T) {
	err := NewProviderError("Gemini", 500, "backend exploded")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatal("expected *ProviderError")
	}
	if pe.Status != 500 || pe.Provider != "Gemini" {
		t.Errorf("wrong fields: %+v", pe)
	}
	if !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("vendor message lost: %q", err.Error())
	}
}

func TestProviderErrorFallsBackToStatusText(t *testing.T) {
	err := NewProviderError("Claude", 503, "")
	if !strings.Contains(err.Error(), "Service Unavailable") {
		t.Errorf("missing status-derived message: %q", err.Error())
	}
}

func TestErrorMessageEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"standard envelope", `{"error":{"message":"invalid api key"}}`, "invalid api key"},
		{"no envelope", `{"detail":"something"}`, ""},
		{"not json", "<html>502</html>", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage([]byte(tt.body)); got != tt.want {
				t.Errorf("ErrorMessage(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

// =============================================================================
// SSE READER
// =============================================================================

func TestSSEReaderEvents(t *testing.T) {
	input := "data: {\"a\":1}\n\n" +
		"event: message_delta\ndata: {\"b\":2}\n\n" +
		"data: [DONE]\n\n"
	r := NewSSEReader(strings.NewReader(input))

	event, data, err := r.ReadEvent()
	if err != nil || event != "" || string(data) != `{"a":1}` {
		t.Fatalf("first event = (%q, %q, %v)", event, data, err)
	}

	event, data, err = r.ReadEvent()
	if err != nil || event != "message_delta" || string(data) != `{"b":2}` {
		t.Fatalf("second event = (%q, %q, %v)", event, data, err)
	}

	_, data, err = r.ReadEvent()
	if err != nil || string(data) != "[DONE]" {
		t.Fatalf("third event = (%q, %v)", data, err)
	}

	if _, _, err := r.ReadEvent(); err != io.EOF {
		t.Fatalf("expected io.EOF after last event, got %v", err)
	}
}

func TestSSEReaderMultiLineData(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data: line1\ndata: line2\n\n"))
	_, data, err := r.ReadEvent()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "line1\nline2" {
		t.Errorf("joined data = %q", data)
	}
}

func TestSSEReaderPartialEventAtEOF(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data: dangling"))
	_, data, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("partial event should be returned before EOF, got %v", err)
	}
	if string(data) != "dangling" {
		t.Errorf("data = %q", data)
	}
	if _, _, err := r.ReadEvent(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestSSEReaderIgnoresCommentsAndIDs(t *testing.T) {
	r := NewSSEReader(strings.NewReader(": keepalive\nid: 42\ndata: payload\n\n"))
	_, data, err := r.ReadEvent()
	if err != nil || string(data) != "payload" {
		t.Fatalf("event = (%q, %v)", data, err)
	}
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

func TestAccumulator(t *testing.T) {
	var acc Accumulator
	acc.Add(StreamChunk{Content: "Hel"})
	acc.Add(StreamChunk{Content: "lo"})
	if acc.IsDone() {
		t.Fatal("done before terminal chunk")
	}
	acc.Add(StreamChunk{Done: true})
	if !acc.IsDone() {
		t.Fatal("terminal chunk not observed")
	}
	if acc.Content() != "Hello" {
		t.Errorf("content = %q", acc.Content())
	}
}

func TestDrain(t *testing.T) {
	ch := make(chan StreamChunk, 3)
	ch <- StreamChunk{Content: "a"}
	ch <- StreamChunk{Content: "b"}
	ch <- StreamChunk{Done: true}
	close(ch)
	if got := Drain(ch); got != "ab" {
		t.Errorf("Drain = %q", got)
	}
}
