package validation

import (
	"errors"
	"strings"
	"testing"
)

// TestCookieField_Valid verifies trimming and acceptance of ordinary input.
func TestCookieField_Valid(t *testing.T) {
	got, err := CookieField("  Pike Place Market  ", MaxNameLength)
	if err != nil {
		t.Fatalf("CookieField() error = %v", err)
	}
	if got != "Pike Place Market" {
		t.Errorf("CookieField() = %q, want trimmed value", got)
	}
}

// TestCookieField_Empty verifies empty and whitespace-only inputs fail.
func TestCookieField_Empty(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		if _, err := CookieField(input, MaxNameLength); !errors.Is(err, ErrValueEmpty) {
			t.Errorf("CookieField(%q) error = %v, want ErrValueEmpty", input, err)
		}
	}
}

// TestCookieField_TooLong verifies the rune length cap.
func TestCookieField_TooLong(t *testing.T) {
	long := strings.Repeat("a", MaxNameLength+1)
	if _, err := CookieField(long, MaxNameLength); !errors.Is(err, ErrValueTooLong) {
		t.Errorf("CookieField() error = %v, want ErrValueTooLong", err)
	}

	exact := strings.Repeat("a", MaxNameLength)
	if _, err := CookieField(exact, MaxNameLength); err != nil {
		t.Errorf("CookieField() at exact limit error = %v, want nil", err)
	}
}

// TestCookieField_ControlChars verifies control characters are rejected.
func TestCookieField_ControlChars(t *testing.T) {
	if _, err := CookieField("bad\x00name", MaxNameLength); !errors.Is(err, ErrValueInvalidChars) {
		t.Errorf("CookieField() error = %v, want ErrValueInvalidChars", err)
	}
}

// TestCookieField_Unicode verifies non-ASCII place names are accepted.
func TestCookieField_Unicode(t *testing.T) {
	got, err := CookieField("Zürich, Schweiz", MaxNameLength)
	if err != nil {
		t.Fatalf("CookieField() error = %v", err)
	}
	if got != "Zürich, Schweiz" {
		t.Errorf("CookieField() = %q", got)
	}
}
