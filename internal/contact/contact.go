// Package contact extracts a callable phone number, and optionally a name,
// from inbound chat material: shared vCards or free text.
package contact

import (
	"strings"

	"vocero/platform/phone"
)

// Parsed is a contact recovered from a message.
type Parsed struct {
	Name  string
	Phone string
}

// ParseVCard extracts name and phone from a vCard payload.
// Returns false when no phone line is present.
func ParseVCard(vcard string) (Parsed, bool) {
	var name, number string

	for _, line := range strings.Split(vcard, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "FN:"):
			name = strings.TrimSpace(line[len("FN:"):])
		case strings.HasPrefix(upper, "TEL") && strings.Contains(line, ":"):
			if number == "" {
				_, value, _ := strings.Cut(line, ":")
				number = strings.TrimSpace(value)
			}
		}
	}

	if number == "" {
		return Parsed{}, false
	}
	return Parsed{Name: name, Phone: phone.NormalizeE164(number)}, true
}

// FromText returns the first phone number found in a text message, or false.
func FromText(text string) (Parsed, bool) {
	number := phone.ExtractFromText(text)
	if number == "" {
		return Parsed{}, false
	}
	return Parsed{Phone: number}, true
}

// IsVCardMedia reports whether an inbound media content type is a contact card.
func IsVCardMedia(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "vcard") || strings.Contains(ct, "x-vcard") || strings.Contains(ct, "contact")
}
