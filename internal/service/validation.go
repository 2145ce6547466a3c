package service

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxContentBytes bounds a single user message.
const MaxContentBytes = 100000

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content cannot be empty", ErrInvalidContent)
	}
	if len(content) > MaxContentBytes {
		return fmt.Errorf("%w: content exceeds maximum length", ErrInvalidContent)
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("%w: content must be valid UTF-8", ErrInvalidContent)
	}
	return nil
}
