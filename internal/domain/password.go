package domain

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minPasswordLength = 10
	maxPasswordLength = 128
)

// weakFragments are substrings that defeat the character-class checks in
// practice; matched case-insensitively.
var weakFragments = []string{"password", "qwerty", "123456"}

// ValidatePassword enforces the storefront account password policy: length
// bounds plus mixed-case letters and at least one digit.
func ValidatePassword(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	case len(password) > maxPasswordLength:
		return fmt.Errorf("%w: password must be at most %d characters", ErrInvalidInput, maxPasswordLength)
	}

	var upper, lower, digit bool
	for _, r := range password {
		upper = upper || unicode.IsUpper(r)
		lower = lower || unicode.IsLower(r)
		digit = digit || unicode.IsDigit(r)
	}
	if !upper || !lower || !digit {
		return fmt.Errorf("%w: password needs upper and lower case letters and a digit", ErrInvalidInput)
	}

	lowered := strings.ToLower(password)
	for _, fragment := range weakFragments {
		if strings.Contains(lowered, fragment) {
			return fmt.Errorf("%w: password contains a commonly guessed pattern", ErrInvalidInput)
		}
	}
	return nil
}
