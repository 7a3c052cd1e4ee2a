// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the write/rename dance an atomic save produces
// into a single notification.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports external changes to the snapshot files. Changes made
// through the bridge itself are indistinguishable from external ones;
// callers that bind and watch should compare content, not just reload.
type Watcher struct {
	bridge   *Bridge
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(name string)

	mu      sync.Mutex
	pending map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a watcher over the bridge's data directory. onChange
// receives the base name of the changed snapshot file.
func NewWatcher(bridge *Bridge, debounce time.Duration, onChange func(name string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		bridge:   bridge,
		watcher:  fsw,
		debounce: debounce,
		onChange: onChange,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching. The data directory is watched rather than the
// files, because atomic renames replace the inode a file watch is bound to.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(w.bridge.Dir()); err != nil {
		return err
	}
	go w.processEvents()
	go w.processPending()
	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

// isSnapshot reports whether path is one of the two snapshot files.
func isSnapshot(path string) bool {
	switch filepath.Base(path) {
	case SessionsFile, SettingsFile:
		return true
	}
	return false
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isSnapshot(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending[filepath.Base(event.Name)] = time.Now()
			w.mu.Unlock()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) processPending() {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			var ready []string
			w.mu.Lock()
			for name, last := range w.pending {
				if now.Sub(last) >= w.debounce {
					ready = append(ready, name)
					delete(w.pending, name)
				}
			}
			w.mu.Unlock()
			for _, name := range ready {
				w.onChange(name)
			}
		}
	}
}
