package utils

import "github.com/microcosm-cc/bluemonday"

// Posts and comments are plain text, so the strict policy strips all markup.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips HTML from user-supplied text to prevent stored XSS.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
