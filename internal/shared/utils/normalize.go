package utils

import "strings"

// NormalizeEmail lowercases and trims an email address for matching.
// Normalization happens once at the boundary, not on every comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePlexID lowercases a Plex account identifier and strips hyphens so
// uuid-shaped and bare ids compare equal.
func NormalizePlexID(id string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), "-", "")
}

// IsRelayAddress reports whether an address belongs to Apple's private relay
// domain. Relay addresses often bounce replies, so notification events carry
// an advisory flag for them.
func IsRelayAddress(email string) bool {
	return strings.HasSuffix(NormalizeEmail(email), "@privaterelay.appleid.com")
}
