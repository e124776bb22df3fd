package messages

import (
	"strings"
	"testing"

	"vocero/internal/intent"
	"vocero/internal/places"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	c := MustLoad()
	got := c.Render(intent.LanguageES, "calling", Vars{"name": "Dr Lopez"})
	if !strings.Contains(got, "Dr Lopez") {
		t.Fatalf("placeholder not substituted: %q", got)
	}
	if strings.Contains(got, "{name}") {
		t.Fatalf("raw placeholder leaked: %q", got)
	}
}

func TestRenderFallsBackToSpanish(t *testing.T) {
	c := MustLoad()
	got := c.Render(intent.Language("pt"), "cancelled", nil)
	if got != c.Render(intent.LanguageES, "cancelled", nil) {
		t.Fatalf("unknown language must fall back to Spanish, got %q", got)
	}
}

func TestRenderUnknownKeyIsVisible(t *testing.T) {
	c := MustLoad()
	if got := c.Render(intent.LanguageES, "no_such_key", nil); got != "no_such_key" {
		t.Fatalf("unknown key must render as itself, got %q", got)
	}
}

func TestEveryCatalogKeyExistsInBothLanguages(t *testing.T) {
	c := MustLoad()
	for key := range c.templates[intent.LanguageES] {
		if _, ok := c.templates[intent.LanguageEN][key]; !ok {
			t.Errorf("key %q missing in English catalog", key)
		}
	}
	for key := range c.templates[intent.LanguageEN] {
		if _, ok := c.templates[intent.LanguageES][key]; !ok {
			t.Errorf("key %q missing in Spanish catalog", key)
		}
	}
}

func TestSearchResultsNumbersCandidates(t *testing.T) {
	c := MustLoad()
	got := c.SearchResults(intent.LanguageES, []places.Result{
		{Name: "Clinica Norte", Rating: 4.5, RatingCount: 120, Address: "Calle 1"},
		{Name: "Clinica Sur"},
	})
	if !strings.Contains(got, "1. *Clinica Norte*") || !strings.Contains(got, "2. *Clinica Sur*") {
		t.Fatalf("candidates not numbered:\n%s", got)
	}
	if !strings.Contains(got, "(4.5, 120)") {
		t.Fatalf("rating missing:\n%s", got)
	}
}

func TestBookingConfirmedOptionalLines(t *testing.T) {
	c := MustLoad()
	with := c.BookingConfirmed(intent.LanguageEN, "Dr Smith", "2026-09-01 10:00", "5th Ave 10", "bring id")
	if !strings.Contains(with, "5th Ave 10") || !strings.Contains(with, "bring id") {
		t.Fatalf("optional lines missing:\n%s", with)
	}
	without := c.BookingConfirmed(intent.LanguageEN, "Dr Smith", "2026-09-01 10:00", "", "")
	if strings.Contains(without, "Address") || strings.Contains(without, "Notes") {
		t.Fatalf("empty optional lines must be omitted:\n%s", without)
	}
}

func TestProviderDisplayNameFallsBackToPhone(t *testing.T) {
	if got := ProviderDisplayName("", "+5491155550000"); got != "+5491155550000" {
		t.Fatalf("expected phone fallback, got %q", got)
	}
	if got := ProviderDisplayName("Dr Lopez", "+5491155550000"); got != "Dr Lopez" {
		t.Fatalf("expected name, got %q", got)
	}
}
