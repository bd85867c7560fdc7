// Package util provides common string helpers used across the shot recorder.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// Unquote undoes host-side string quoting: a payload wrapped in double quotes
// with inner quotes doubled is returned as the raw text. Anything else is
// returned unchanged.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	return FixEscapeQuotes(s[1 : len(s)-1])
}

var fileNameReplacer = strings.NewReplacer(
	" ", "_",
	":", "_",
	"/", "_",
	`\`, "_",
	"<", "_",
	">", "_",
	`"`, "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// SanitizeFileName makes a server name safe to use as part of a file name.
func SanitizeFileName(s string) string {
	s = fileNameReplacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".")
	if s == "" {
		return "session"
	}
	return s
}
