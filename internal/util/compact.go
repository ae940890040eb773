package util

import "strings"

// CompactSQL collapses runs of whitespace into single spaces so a
// multi-line statement fits on one log line.
func CompactSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// Truncate shortens s to at most max runes, marking the cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
