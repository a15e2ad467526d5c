// Package sanitize strips markup from client-supplied text. Every free-text
// field crossing the HTTP boundary goes through here before validation or
// business logic sees it.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes all HTML and collapses runs of whitespace to single spaces.
func Text(s string) string {
	s = strict.Sanitize(s)
	return strings.Join(strings.Fields(s), " ")
}

// Block removes all HTML but keeps line structure, for multi-line fields
// like pasted job postings.
func Block(s string) string {
	lines := strings.Split(strict.Sanitize(s), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
