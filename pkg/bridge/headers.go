package bridge

import "strings"

// normalizeHeader splits a raw header value on commas, trims every segment
// and drops the empty ones.
func normalizeHeader(value string) []string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
