// Package messages holds the localized user-facing message catalog.
// Templates live in embedded YAML files, one per supported language.
package messages

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"vocero/internal/intent"
	"vocero/internal/places"
)

//go:embed es.yaml en.yaml
var templateFS embed.FS

// Vars are named template placeholders, rendered as {key}.
type Vars map[string]string

// Catalog resolves message keys to localized templates.
type Catalog struct {
	templates map[intent.Language]map[string]string
}

// Load parses the embedded template files.
func Load() (*Catalog, error) {
	catalog := &Catalog{templates: make(map[intent.Language]map[string]string)}

	for lang, file := range map[intent.Language]string{
		intent.LanguageES: "es.yaml",
		intent.LanguageEN: "en.yaml",
	} {
		raw, err := templateFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read message templates %s: %w", file, err)
		}
		templates := make(map[string]string)
		if err := yaml.Unmarshal(raw, &templates); err != nil {
			return nil, fmt.Errorf("parse message templates %s: %w", file, err)
		}
		catalog.templates[lang] = templates
	}

	return catalog, nil
}

// MustLoad is Load for composition roots where a broken catalog is fatal.
func MustLoad() *Catalog {
	catalog, err := Load()
	if err != nil {
		panic("messages: " + err.Error())
	}
	return catalog
}

// Render resolves key for the given language and substitutes {placeholders}.
// Unknown languages fall back to Spanish; unknown keys render as the key
// itself so a missing template is visible rather than silent.
func (c *Catalog) Render(lang intent.Language, key string, vars Vars) string {
	templates, ok := c.templates[lang]
	if !ok {
		templates = c.templates[intent.LanguageES]
	}

	template, ok := templates[key]
	if !ok {
		return key
	}

	out := template
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}

// ProviderDisplayName picks the best user-facing label for a provider.
func ProviderDisplayName(name, phoneNumber string) string {
	if name != "" {
		return name
	}
	return phoneNumber
}

// SearchResults formats the candidate list offered to the user for selection.
func (c *Catalog) SearchResults(lang intent.Language, results []places.Result) string {
	var b strings.Builder
	b.WriteString(c.Render(lang, "search_header", nil))
	b.WriteString("\n")
	for i, result := range results {
		b.WriteString(fmt.Sprintf("\n%d. *%s*", i+1, result.Name))
		if result.Rating > 0 {
			b.WriteString(fmt.Sprintf(" (%.1f, %d)", result.Rating, result.RatingCount))
		}
		if result.Address != "" {
			b.WriteString("\n   " + result.Address)
		}
	}
	b.WriteString("\n\n")
	b.WriteString(c.Render(lang, "search_footer", nil))
	return b.String()
}

// BookingConfirmed formats the confirmation message with optional address and
// notes lines.
func (c *Catalog) BookingConfirmed(lang intent.Language, name, dateTime, address, notes string) string {
	lines := []string{c.Render(lang, "booking_confirmed", Vars{"name": name, "datetime": dateTime})}
	if address != "" {
		lines = append(lines, c.Render(lang, "booking_address", Vars{"address": address}))
	}
	if notes != "" {
		lines = append(lines, c.Render(lang, "booking_notes", Vars{"notes": notes}))
	}
	return strings.Join(lines, "\n")
}
