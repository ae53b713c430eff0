// Package tenant validates tenant keys and derives vector-store namespaces from them.
package tenant

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	minKeyLen = 3
	maxKeyLen = 64
)

var (
	keyPattern     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	namespaceStrip = regexp.MustCompile(`[^a-z0-9_-]`)
)

// Validate checks a tenant key and returns it trimmed. Keys are opaque
// identifiers: alphanumeric plus hyphen and underscore, 3 to 64 characters.
// A tenant needs no registration; it exists from its first write.
func Validate(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("tenant key is required")
	}
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("invalid tenant key: only alphanumeric characters, hyphens, and underscores are allowed")
	}
	if len(key) < minKeyLen || len(key) > maxKeyLen {
		return "", fmt.Errorf("tenant key must be between %d and %d characters", minKeyLen, maxKeyLen)
	}
	return key, nil
}

// Namespace returns the vector-store namespace for a validated tenant key.
// Lowercased for consistency; anything outside [a-z0-9_-] becomes an underscore.
func Namespace(key string) string {
	ns := strings.ToLower(key)
	return namespaceStrip.ReplaceAllString(ns, "_")
}
