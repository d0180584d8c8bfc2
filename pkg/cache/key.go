package cache

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Key identifies one cached upstream response.
type Key struct {
	// Endpoint is the dotted endpoint identifier (e.g., "character.basic")
	Endpoint string

	// Params are the request parameters (e.g., {"character_name": "Hero"})
	Params map[string]string
}

// String generates a deterministic cache key string.
// Format: api:endpoint:param1=val1:param2=val2
//
// Parameters are sorted by name and their values normalized, so semantically
// identical requests collide to the same key regardless of caller formatting
// or parameter insertion order.
//
// Example:
//   api:character.basic:character_name=hero
func (k Key) String() string {
	parts := []string{"api"}

	endpoint := strings.TrimSpace(k.Endpoint)
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, NormalizeIdentifier(k.Params[name])))
		}
	}

	return strings.Join(parts, ":")
}

// Prefix returns the key prefix shared by all entries for an endpoint.
// Useful for bulk invalidation.
func Prefix(endpoint string) string {
	return "api:" + strings.TrimSpace(endpoint)
}

// NormalizeIdentifier canonicalizes a caller-supplied identifier: case-folded
// with all whitespace removed. The validator applies the same normalization,
// so cache hits are insensitive to casing and spacing variations a human
// caller might introduce.
func NormalizeIdentifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
