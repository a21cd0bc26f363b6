// Package text holds small string helpers for log and error output.
package text

import "unicode/utf8"

// Truncate shortens s to at most max bytes without splitting a rune and
// marks the cut with "...".
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
