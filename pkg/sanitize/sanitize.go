// Package sanitize normalizes user-supplied text before it is stored.
package sanitize

import (
	"strings"
	"unicode"
)

// UserID trims surrounding whitespace and drops control characters
func UserID(input string) string {
	return strings.TrimSpace(StripControlCharacters(input))
}

// StripControlCharacters removes control characters from string
func StripControlCharacters(input string) string {
	var result strings.Builder
	result.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// MessageBody removes control characters other than newlines and tabs, and
// normalizes CRLF line endings.
func MessageBody(input string) string {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	var result strings.Builder
	result.Grow(len(input))
	for _, r := range input {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
