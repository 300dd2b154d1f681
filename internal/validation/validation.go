package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrValueEmpty is returned when a field is empty or whitespace-only after trim.
var ErrValueEmpty = errors.New("value is required")

// ErrValueTooLong is returned when a field exceeds its maximum length.
var ErrValueTooLong = errors.New("value too long")

// ErrValueInvalidChars is returned when a field contains control characters.
var ErrValueInvalidChars = errors.New("value contains invalid characters")

// Favorite fields end up in a cookie, and cookies top out around 4KB, so each
// field carries a length cap in runes.
const (
	MaxPlaceIDLength = 256
	MaxNameLength    = 120
)

// CookieField trims the input, enforces a maximum length in runes, and rejects
// control characters. Returns the trimmed string or an error suitable for 400
// responses. Any printable text is allowed; place names are user-facing labels.
func CookieField(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrValueEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrValueTooLong
	}
	for _, c := range r {
		if unicode.IsControl(c) {
			return "", ErrValueInvalidChars
		}
	}
	return s, nil
}
