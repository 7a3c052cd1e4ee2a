// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search indexes message content across all sessions for full-text
// search. The index is a derived structure: it can be dropped and rebuilt
// from the session snapshot at any time, so it is never the source of truth.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/sybeez/sybeez/internal/chat"
)

// FileName is the index database file name under the data directory.
const FileName = "search.db"

// schema is the message index layout. The FTS table mirrors messages via
// triggers, the teacher pattern for keeping full-text search in sync.
const schema = `
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id TEXT NOT NULL UNIQUE,
    session_id TEXT NOT NULL,
    session_title TEXT NOT NULL,
    is_user INTEGER NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    content,
    content='messages',
    content_rowid='id',
    tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;
`

// =============================================================================
// INDEX
// =============================================================================

// Result is one search hit.
type Result struct {
	SessionID    string
	SessionTitle string
	MessageID    string
	Content      string
	IsUser       bool
	Timestamp    time.Time
}

// Index is the SQLite-backed message index. Safe for concurrent use.
type Index struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *log.Logger
}

// Open opens (or creates) the index database at dir.
func Open(dir string, logger *log.Logger) (*Index, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	// PERFORMANCE: WAL allows reads during writes; a single connection
	// sidesteps SQLITE_BUSY with the pure Go driver.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}

	return &Index{db: db, logger: logger.With("component", "search")}, nil
}

// Close releases the database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Rebuild replaces the whole index with the given sessions. Rebuilding on
// every snapshot save is cheap at chat scale and keeps the index trivially
// consistent.
func (idx *Index) Rebuild(sessions []chat.Session) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages"); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO messages (message_id, session_id, session_title, is_user, content, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, sess := range sessions {
		for _, m := range sess.Messages {
			isUser := 0
			if m.IsUser {
				isUser = 1
			}
			if _, err := stmt.Exec(m.ID, sess.ID, sess.Title, isUser, m.Content, m.Timestamp.Unix()); err != nil {
				return fmt.Errorf("failed to index message: %w", err)
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rebuild: %w", err)
	}
	idx.logger.Debug("index rebuilt", "sessions", len(sessions), "messages", count)
	return nil
}

// Search returns messages matching the query across all sessions, newest
// first. An empty or all-punctuation query returns no results.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	fts := buildFTSQuery(query)
	if fts == "" {
		return []Result{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := idx.db.QueryContext(ctx, `
        SELECT m.message_id, m.session_id, m.session_title, m.is_user, m.content, m.created_at
        FROM messages_fts f
        JOIN messages m ON m.id = f.rowid
        WHERE messages_fts MATCH ?
        ORDER BY m.created_at DESC
        LIMIT ?`, fts, limit)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var isUser int
		var createdAt int64
		if err := rows.Scan(&r.MessageID, &r.SessionID, &r.SessionTitle, &isUser, &r.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.IsUser = isUser == 1
		r.Timestamp = time.Unix(createdAt, 0).UTC()
		results = append(results, r)
	}
	return results, rows.Err()
}

// buildFTSQuery quotes each token so user input can never inject FTS syntax.
func buildFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		quoted = append(quoted, `"`+f+`"*`)
	}
	return strings.Join(quoted, " ")
}
