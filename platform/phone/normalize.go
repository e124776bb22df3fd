// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "AR"

// Matches international phone numbers embedded in free text:
// +54 9 11 2233-4455, +1 (234) 567-8901, +442071234567, etc.
var phonePattern = regexp.MustCompile(`\+?\d[\d\s\-().]{6,}\d`)

var nonDialable = regexp.MustCompile(`[^\d+]`)

// NormalizeE164 formats a phone number to E.164. When the number does not
// validate against region metadata, it falls back to stripping formatting
// characters and keeping a leading +, so opaque test numbers still round-trip.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err == nil && phonenumbers.IsValidNumber(number) {
		return phonenumbers.Format(number, phonenumbers.E164)
	}

	digits := nonDialable.ReplaceAllString(trimmed, "")
	if digits == "" {
		return trimmed
	}
	if !strings.HasPrefix(digits, "+") {
		digits = "+" + digits
	}
	return digits
}

// ExtractFromText returns the first phone number found in free text,
// normalized, or "" when none is present.
func ExtractFromText(text string) string {
	match := phonePattern.FindString(text)
	if match == "" {
		return ""
	}
	return NormalizeE164(match)
}

// IsValid reports whether the input parses as a valid phone number.
func IsValid(input string) bool {
	number, err := phonenumbers.Parse(strings.TrimSpace(input), defaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(number)
}
