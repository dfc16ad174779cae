package rules

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const MinUsernameLen = 2

var (
	ErrUsernameTooShort = errors.New("username too short")
	ErrUsernameNumeric  = errors.New("username must contain a non-digit character")
)

// ValidateUsername rejects names that could be confused with menu digits.
func ValidateUsername(name string) error {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < MinUsernameLen {
		return ErrUsernameTooShort
	}
	for _, r := range name {
		if !unicode.IsDigit(r) {
			return nil
		}
	}
	return ErrUsernameNumeric
}
