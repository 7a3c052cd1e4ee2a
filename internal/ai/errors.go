// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// Sentinel errors for the failure classes every caller can rely on,
// regardless of which adapter produced them.
// Use errors.Is to check for these.
var (
	// ErrNotConfigured indicates no provider is configured at all.
	ErrNotConfigured = errors.New("no AI provider configured")

	// ErrMissingAPIKey indicates a provider that requires a credential was
	// called without one. Raised before any network I/O.
	ErrMissingAPIKey = errors.New("API key not configured")

	// ErrAuthFailed indicates the vendor rejected the credential.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the vendor reported a quota or rate limit.
	ErrRateLimited = errors.New("rate limited")

	// ErrNetwork indicates a transport failure with no vendor response.
	ErrNetwork = errors.New("network error")
)

// =============================================================================
// PROVIDER ERROR
// =============================================================================

// ProviderError is a vendor error envelope: a non-success HTTP status with
// the vendor's message text where one could be parsed, else a status-derived
// fallback.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s error (HTTP %d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error (HTTP %d): %s", e.Provider, e.Status, http.StatusText(e.Status))
}

// NewProviderError builds a ProviderError, mapping auth and rate-limit
// statuses onto the corresponding sentinels so errors.Is keeps working
// across the adapter boundary.
func NewProviderError(provider string, status int, message string) error {
	pe := &ProviderError{Provider: provider, Status: status, Message: message}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, pe.Error())
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, pe.Error())
	}
	return pe
}
