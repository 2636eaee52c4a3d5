// Package errors provides utilities for sanitizing errors so the bot
// token and API keys never leak into logs or chat replies.
package errors

import (
	"fmt"
	"regexp"
	"strings"
)

// Credential patterns to redact from error messages and log fields.
var credentialPatterns = []*regexp.Regexp{
	// Telegram bot token: 123456789:ABC-DEF... (token part is typically 35-36 chars)
	regexp.MustCompile(`\d{8,12}:[a-zA-Z0-9_-]{30,}`),
	// Anthropic API key: sk-ant-api03-... or sk-ant-...
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{10,}`),
	// Bearer tokens in headers
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.-]+`),
	// Authorization headers
	regexp.MustCompile(`(?i)authorization[:\s]+[^\s]+`),
	// Bot token embedded in Telegram file-download URLs
	regexp.MustCompile(`/bot[^/\s]+/`),
}

const redactedPlaceholder = "[REDACTED]"

// SanitizeString redacts credential patterns from a string.
func SanitizeString(s string) string {
	result := s
	for _, pattern := range credentialPatterns {
		result = pattern.ReplaceAllString(result, redactedPlaceholder)
	}
	return result
}

// SanitizeError wraps an error, redacting any credentials that may
// appear in its message. The original error stays in the chain.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	sanitized := SanitizeString(err.Error())
	if sanitized == err.Error() {
		return err
	}
	return &sanitizedError{original: err, sanitized: sanitized}
}

// Wrapf wraps an error with a formatted message, sanitizing any
// credentials in the underlying error. Use instead of
// fmt.Errorf("...: %w", err) when the error may carry credentials.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, SanitizeError(err))
}

type sanitizedError struct {
	original  error
	sanitized string
}

func (e *sanitizedError) Error() string {
	return e.sanitized
}

func (e *sanitizedError) Unwrap() error {
	return e.original
}

// MaskCredential partially masks a credential string for safe logging.
// Example: "123456789:AAE..." -> "123456789:***..."
func MaskCredential(s string) string {
	if len(s) < 10 {
		return strings.Repeat("*", len(s))
	}

	if strings.HasPrefix(s, "sk-ant-") {
		return "sk-ant-***..."
	}

	// Telegram bot token format (number:token)
	if idx := strings.Index(s, ":"); idx > 0 && idx < 15 {
		parts := strings.SplitN(s, ":", 2)
		if len(parts) == 2 && len(parts[0]) <= 12 {
			return parts[0] + ":***..."
		}
	}

	return s[:4] + "***..."
}
