package config

import (
	"regexp"
	"strings"
)

// Redactor filters credential material out of text that is about to be
// logged or shown, such as provider error bodies that echo the request.
type Redactor struct {
	patterns []*regexp.Regexp
}

// defaultPatterns catch the key formats of the supported vendors plus the
// usual generic offenders (JWTs, private keys, connection strings).
var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`),  // OpenAI / Anthropic / DeepSeek / Moonshot
	regexp.MustCompile(`(?i)(Bearer\s+[a-zA-Z0-9._-]{20,})`),

	// JWTs (three base64 segments separated by dots)
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),

	// Private keys
	regexp.MustCompile(`(?s)-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----.*?-----END (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),

	// Connection strings
	regexp.MustCompile(`(?i)((?:postgres|mysql|mongodb|redis|amqp)://[^\s"']+)`),
}

const redactedPlaceholder = "[REDACTED]"

// NewRedactor creates a redactor with the default patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: defaultPatterns}
}

// Redact replaces every credential-looking substring with a placeholder.
func (r *Redactor) Redact(text string) string {
	for _, re := range r.patterns {
		text = re.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// MaskKey renders an API key for display: the first four and last four
// characters with the middle elided. Short keys are fully masked.
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "…" + key[len(key)-4:]
}
