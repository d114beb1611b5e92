// Package redact substitutes placeholder tokens for personally-identifying
// fields before they reach a generation prompt.
package redact

import (
	"regexp"
	"strings"
	"unicode"
)

// sensitiveKeys is the denylist: any key containing one of these substrings
// (case-insensitively) is redacted.
var sensitiveKeys = []string{
	"name", "email", "phone", "address", "social", "birth", "sin", "ssn",
	"personal", "identity", "passport", "license", "health",
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// IsSensitive reports whether a field key matches the denylist.
func IsSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// HumanizeKey renders a field key in human-readable form: camelCase and
// snake_case boundaries become spaces and every word is title-cased.
// "firstName" -> "First Name".
func HumanizeKey(key string) string {
	spaced := camelBoundary.ReplaceAllString(key, "$1 $2")
	spaced = strings.NewReplacer("_", " ", "-", " ").Replace(spaced)

	words := strings.Fields(spaced)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// Placeholder builds the substitute token for a sensitive key:
// "firstName" -> "[YOUR FIRST NAME HERE]".
func Placeholder(key string) string {
	return "[YOUR " + strings.ToUpper(HumanizeKey(key)) + " HERE]"
}

// Redact replaces the value of every sensitive field with its placeholder
// token, keyed by the human-readable field name. Non-sensitive fields pass
// through unchanged.
func Redact(inputs map[string]string) map[string]string {
	out := make(map[string]string, len(inputs))
	for key, value := range inputs {
		if IsSensitive(key) {
			out[HumanizeKey(key)] = Placeholder(key)
		} else {
			out[key] = value
		}
	}
	return out
}
