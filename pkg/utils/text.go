package utils

import "unicode/utf8"

// TruncateRunes cuts text to at most max characters. It reports whether anything was cut.
// A non-positive max leaves text untouched.
func TruncateRunes(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:max]), true
}
