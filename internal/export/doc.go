// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export converts sessions to portable snapshots and back.
//
// The JSON snapshot shape is {title, messages, createdAt, exportedAt},
// either a single object or an array for bulk export. Import accepts both
// shapes and mints fresh ids for every imported session and message, so an
// import can never collide with existing state.
//
// A Markdown exporter renders a session as a readable transcript.
package export
