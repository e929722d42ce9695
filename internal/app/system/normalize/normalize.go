// Package normalize provides helper functions for consistent string normalization
// across the application. Use these helpers instead of scattered strings.ToLower
// and strings.TrimSpace calls to ensure consistent behavior.
package normalize

import (
	"math"
	"strings"
)

// Email normalizes an email address by trimming whitespace and converting to lowercase.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LoginID normalizes a login identifier the same way as Email.
// Use text.Fold() for the case/diacritic-insensitive lookup key.
func LoginID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name normalizes a display name by trimming whitespace.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role normalizes a role value by trimming whitespace and converting to lowercase.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AbsInt coerces s to a non-negative integer.
//
// Leading whitespace and an optional sign are accepted, then digits are read
// until the first non-digit. Anything unparseable yields 0 and negative
// values are returned as their absolute value. Overflow clamps to MaxInt64.
func AbsInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	if s != "" && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}

	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		d := int64(c - '0')
		if n > (math.MaxInt64-d)/10 {
			return math.MaxInt64
		}
		n = n*10 + d
	}
	return n
}
