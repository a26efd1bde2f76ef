package core

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxBodyLength bounds a single message body.
const DefaultMaxBodyLength = 4000

var (
	ErrEmptyBody   = errors.New("message body is empty")
	ErrBodyTooLong = errors.New("message body exceeds maximum length")
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

// SanitizeBody trims whitespace, strips markup tags, and drops control
// characters other than newline and tab.
func SanitizeBody(body string) string {
	body = tagRe.ReplaceAllString(body, "")
	var b strings.Builder
	b.Grow(len(body))
	for _, r := range body {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// ValidateBody sanitizes a compose buffer and enforces length bounds.
// maxLen <= 0 applies the default.
func ValidateBody(body string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxBodyLength
	}
	clean := SanitizeBody(body)
	if clean == "" {
		return "", ErrEmptyBody
	}
	if len(clean) > maxLen {
		return "", ErrBodyTooLong
	}
	return clean, nil
}

// PreviewBody returns a shortened single-line preview for reply references.
func PreviewBody(body string, max int) string {
	if max <= 0 {
		max = 80
	}
	line := body
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	// Truncate on rune boundaries; byte slicing could split a multibyte
	// character.
	if utf8.RuneCountInString(line) > max {
		line = string([]rune(line)[:max]) + "…"
	}
	return line
}
