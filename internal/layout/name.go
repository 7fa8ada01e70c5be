package layout

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName is the comparison form of a class name:
// trimmed, lowercased, internal whitespace collapsed to single spaces.
func NormalizeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// CleanName trims a user-supplied name and collapses internal whitespace,
// preserving case.
func CleanName(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}
