// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "sync"

// Store serializes all state transitions through a single mutex-guarded
// writer and publishes each new state to an optional change hook. The hook
// runs synchronously under the dispatch, so subscribers observe every state
// in order; it receives a value, never a pointer into the store.
type Store struct {
	mu       sync.RWMutex
	state    State
	onChange func(State)
}

// NewStore creates a store seeded with the given state.
func NewStore(initial State) *Store {
	return &Store{state: initial}
}

// OnChange registers the change hook. Only one hook is supported; the
// persistence bridge is the intended subscriber.
func (st *Store) OnChange(fn func(State)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.onChange = fn
}

// Dispatch applies an action through Reduce and notifies the change hook.
func (st *Store) Dispatch(a Action) State {
	st.mu.Lock()
	st.state = Reduce(st.state, a)
	next := st.state
	hook := st.onChange
	st.mu.Unlock()

	if hook != nil {
		hook(next)
	}
	return next
}

// State returns the current state value.
func (st *Store) State() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state
}
