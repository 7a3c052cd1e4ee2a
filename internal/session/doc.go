// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates conversations: it turns user input into store
// transitions and AI calls, and turns AI failures into the assistant-voiced
// error messages users actually see.
//
// The orchestrator never returns vendor errors to its callers; every failure
// path ends with an assistant message appended to the session, so the
// conversation transcript is the full record of what happened.
package session
