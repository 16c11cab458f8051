package utils

import "strings"

// HasLetter returns true if s contains at least one ASCII letter (a-zA-Z)
func HasLetter(s string) bool {
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			return true
		}
	}
	return false
}

// HasNumber returns true if s contains at least one ASCII digit (0-9)
func HasNumber(s string) bool {
	for _, r := range s {
		if '0' <= r && r <= '9' {
			return true
		}
	}
	return false
}

// NormalizePhone strips spaces, dashes and parentheses from a phone number
// and keeps a single leading plus. Returns "" when nothing dialable is left.
func NormalizePhone(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case '0' <= r && r <= '9':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" || out == "+" {
		return ""
	}
	return out
}
