// Package htmlsanitize reduces submitted form values to plain text.
// It uses bluemonday's strict policy to strip every tag before values are
// compared against allow-lists or stored.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// policy strips all elements and attributes.
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// PlainText strips all HTML from s and collapses whitespace.
//
// Tags are removed, entities are decoded back to text, line breaks and tabs
// become single spaces, and the result is trimmed. Invalid UTF-8 yields "".
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	if !utf8.ValidString(s) {
		return ""
	}
	stripped := html.UnescapeString(getPolicy().Sanitize(s))
	return strings.Join(strings.Fields(stripped), " ")
}
