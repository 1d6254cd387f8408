package dna

import "strings"

// BypassKey marks a segment as rendering-only when present with a non-empty
// value in the segment's ?query suffix.
const BypassKey = "bypassDNA"

// FilterIdentifier drops every delimiter-separated segment whose query
// suffix sets bypassDNA to a non-empty value, and rejoins the rest.
// Filtering is idempotent.
func FilterIdentifier(raw, delimiter string) string {
	if delimiter == "" {
		if bypassed(raw) {
			return ""
		}
		return raw
	}
	segments := strings.Split(raw, delimiter)
	kept := segments[:0]
	for _, s := range segments {
		if bypassed(s) {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, delimiter)
}

// bypassed parses the "?k=v&k2=v2" suffix of a segment. Later keys override
// earlier ones; a key without "=" has no value.
func bypassed(segment string) bool {
	_, query, ok := strings.Cut(segment, "?")
	if !ok {
		return false
	}
	val := ""
	for _, pair := range strings.Split(query, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k == BypassKey {
			val = v
		}
	}
	return val != ""
}
