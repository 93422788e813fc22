// internal/domain/prompt.go
package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxPromptLength is the cap, in characters, applied to every prompt.
const MaxPromptLength = 10000

// PromptText is a non-empty prompt of at most MaxPromptLength characters.
type PromptText struct {
	value string
}

// NewPromptText rejects blank input and silently truncates anything over the cap.
func NewPromptText(s string) (PromptText, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PromptText{}, ValidationError("prompt must not be empty")
	}
	if utf8.RuneCountInString(s) > MaxPromptLength {
		s = string([]rune(s)[:MaxPromptLength])
	}
	return PromptText{value: s}, nil
}

func (p PromptText) String() string { return p.value }

func (p PromptText) Len() int { return utf8.RuneCountInString(p.value) }

func (p PromptText) IsZero() bool { return p.value == "" }

// Preview returns at most n characters, for log lines.
func (p PromptText) Preview(n int) string {
	r := []rune(p.value)
	if len(r) <= n {
		return p.value
	}
	return string(r[:n]) + "..."
}
