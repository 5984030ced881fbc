// Package privacy redacts secret-shaped content from notes before it
// leaves the process. Notes corpora accumulate credentials (pasted
// curl commands, config snippets) that must never reach an external
// model.
package privacy

import (
	"regexp"
	"strings"
)

const placeholder = "[redacted]"

var (
	// privateTagRegex matches <private>...</private> sections authors
	// mark by hand.
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	// bearerRegex matches Authorization-style bearer tokens.
	bearerRegex = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]{8,}`)

	// assignedSecretRegex matches key/value assignments whose key names
	// a credential. The key is kept; only the value is replaced.
	assignedSecretRegex = regexp.MustCompile(`(?i)\b((?:api[_-]?key|access[_-]?key|secret|token|password|passwd)s?\s*[:=]\s*)["']?[^\s"']+["']?`)

	// prefixedKeyRegex matches vendor-prefixed API keys (sk-..., xoxb-...).
	prefixedKeyRegex = regexp.MustCompile(`\b(?:sk|pk|rk|xox[a-z])-[A-Za-z0-9-]{16,}\b`)

	// longHexRegex matches hex blobs long enough to be hashes or keys.
	longHexRegex = regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`)
)

// StripPrivateSections removes all <private>...</private> content.
func StripPrivateSections(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// RedactSecrets replaces secret-shaped substrings with a placeholder.
func RedactSecrets(text string) string {
	text = bearerRegex.ReplaceAllString(text, placeholder)
	text = assignedSecretRegex.ReplaceAllString(text, "${1}"+placeholder)
	text = prefixedKeyRegex.ReplaceAllString(text, placeholder)
	text = longHexRegex.ReplaceAllString(text, placeholder)
	return text
}

// IsEntirelyPrivate checks if the text is entirely within <private> tags.
func IsEntirelyPrivate(text string) bool {
	return strings.TrimSpace(StripPrivateSections(text)) == ""
}

// Clean performs full privacy cleaning on text.
// This is the main function to use before any content is sent to an
// external model.
func Clean(text string) string {
	text = StripPrivateSections(text)
	text = RedactSecrets(text)
	return strings.TrimSpace(text)
}
