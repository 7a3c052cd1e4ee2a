// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the conversation state engine: sessions, messages, user
// settings, and the reducer that is the only way state changes.
//
// # Key Types
//
//   - State: the whole conversation world in one immutable-by-convention value
//   - Action: tagged-union mutation descriptors
//   - Reduce: pure total transition function, State x Action -> State
//   - Store: mutex-guarded single writer with a change hook
//
// # Discipline
//
// Reduce never mutates its input; every changed session or message is a
// fresh copy. Unknown session or message ids make an action a no-op rather
// than an error, so replaying a stale action stream is always safe.
package chat
