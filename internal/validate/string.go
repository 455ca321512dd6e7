// Package validate provides centralized input validation and sanitization
// for user-supplied café catalog fields.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not byte count; café names are often Hangul.
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}
	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// SanitizeHTML escapes HTML special characters to prevent XSS attacks.
// This should be called on all user-generated text that will be displayed in HTML.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// SanitizeString performs both validation and HTML sanitization.
// Returns the sanitized string and an error if validation fails.
func SanitizeString(s string, constraints StringConstraints) (string, error) {
	validated, err := String(s, constraints)
	if err != nil {
		return "", err
	}
	return SanitizeHTML(validated), nil
}

// phonePattern accepts digits with optional leading plus and common separators.
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-()]{1,19}$`)

// instagramPattern matches an Instagram handle with an optional leading @.
var instagramPattern = regexp.MustCompile(`^@?[A-Za-z0-9._]{1,30}$`)

// CafeName validates a café name:
// - 1-100 characters after trimming
// - Any script (Hangul names are common), HTML-escaped
func CafeName(name string) (string, error) {
	return SanitizeString(name, StringConstraints{
		MinLength:  1,
		MaxLength:  100,
		AllowEmpty: false,
		TrimSpace:  true,
	})
}

// CafeAddress validates a street address:
// - 1-200 characters after trimming, HTML-escaped
func CafeAddress(address string) (string, error) {
	return SanitizeString(address, StringConstraints{
		MinLength:  1,
		MaxLength:  200,
		AllowEmpty: false,
		TrimSpace:  true,
	})
}

// PhoneNumber validates an optional phone number. Empty input is
// returned as-is.
func PhoneNumber(phone string) (string, error) {
	return String(phone, StringConstraints{
		MaxLength:      20,
		AllowedPattern: phonePattern,
		AllowEmpty:     true,
		TrimSpace:      true,
	})
}

// InstagramHandle validates an optional Instagram handle and strips a
// leading @. Empty input is returned as-is.
func InstagramHandle(handle string) (string, error) {
	validated, err := String(handle, StringConstraints{
		MaxLength:      31, // 30 plus the optional @
		AllowedPattern: instagramPattern,
		AllowEmpty:     true,
		TrimSpace:      true,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(validated, "@"), nil
}

// SearchKeyword validates a café name search keyword:
// - 1-100 characters after trimming, HTML-escaped
func SearchKeyword(keyword string) (string, error) {
	return SanitizeString(keyword, StringConstraints{
		MinLength:  1,
		MaxLength:  100,
		AllowEmpty: false,
		TrimSpace:  true,
	})
}
