// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config manages the active provider configuration: which backend is
// selected, which model, and the generation tunables.
//
// The configuration persists as TOML under the data directory. Credentials
// never appear in it; they live in the encrypted credential store.
//
// # Key Types
//
//   - Manager: owns the active configuration, safe for concurrent use
//   - Patch: partial update with nil-means-unchanged fields
//
// # Provider switching
//
// Updating the Provider field re-applies that provider's defaults before the
// rest of the patch, so stale tunables from the previous backend never leak
// across a switch.
//
// # Usage
//
//	mgr, err := config.NewManager(dir, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := mgr.Update(config.Patch{Provider: &id})
package config
