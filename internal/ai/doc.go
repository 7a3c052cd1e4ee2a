// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ai defines the uniform contract shared by all provider adapters:
// the message, response, and stream-chunk types, the Adapter interface, the
// error taxonomy, and the wire-level helpers (SSE reader, stream
// accumulator) that adapters build on.
//
// Nothing in this package knows about a specific vendor. Vendor protocol
// translation lives in the subpackages (openai, gemini, claude, ollama,
// huggingface); selection and error classification live in
// internal/gateway.
package ai
