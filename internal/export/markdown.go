// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/sybeez/sybeez/internal/chat"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownOptions configures the Markdown renderer.
type MarkdownOptions struct {
	// IncludeMetadata adds a YAML frontmatter block and a session info section.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message timestamps.
	IncludeTimestamps bool
}

// DefaultMarkdownOptions returns the standard renderer configuration.
func DefaultMarkdownOptions() MarkdownOptions {
	return MarkdownOptions{IncludeMetadata: true, IncludeTimestamps: true}
}

// SessionMarkdown renders a session as a Markdown transcript.
func SessionMarkdown(sess chat.Session, opts MarkdownOptions) ([]byte, error) {
	if len(sess.Messages) == 0 {
		return nil, fmt.Errorf("session has no messages")
	}

	var sb strings.Builder

	if opts.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(sess.Title)))
		sb.WriteString(fmt.Sprintf("date: %s\n", sess.CreatedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("updated: %s\n", sess.UpdatedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(sess.Messages)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
		sb.WriteString("generator: sybeez\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", sess.Title))

	for _, m := range sess.Messages {
		if m.IsUser {
			sb.WriteString("## 👤 User")
		} else {
			sb.WriteString("## 🤖 Assistant")
		}
		if opts.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf(" — %s", m.Timestamp.Format("2006-01-02 15:04:05")))
		}
		sb.WriteString("\n\n")
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")

		for _, att := range m.Attachments {
			sb.WriteString(fmt.Sprintf("> 📎 %s (%d bytes)\n\n", att.Name, att.Size))
		}
		if m.IsEdited {
			sb.WriteString("*(edited)*\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// escapeYAML keeps a value on one frontmatter line. Newlines in titles would
// otherwise inject frontmatter keys.
func escapeYAML(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}
