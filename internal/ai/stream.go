// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ai

import "strings"

// =============================================================================
// STREAM ACCUMULATOR
// =============================================================================

// Accumulator collects stream chunks into the full reply text. It is the
// consumer-side counterpart of the terminal-chunk contract: IsDone flips
// when the Done chunk arrives, never on channel closure.
type Accumulator struct {
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	content strings.Builder
	done    bool
}

// Add processes one chunk.
func (a *Accumulator) Add(chunk StreamChunk) {
	a.content.WriteString(chunk.Content)
	if chunk.Done {
		a.done = true
	}
}

// Content returns the accumulated text.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// IsDone reports whether the terminal chunk has been seen.
func (a *Accumulator) IsDone() bool {
	return a.done
}

// Drain consumes a chunk channel to completion and returns the concatenated
// content. For any conforming adapter this equals the whole-response path
// for the same input.
func Drain(ch <-chan StreamChunk) string {
	var acc Accumulator
	for chunk := range ch {
		acc.Add(chunk)
	}
	return acc.Content()
}
