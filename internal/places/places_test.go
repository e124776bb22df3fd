package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vocero/platform/logger"
)

func newTestClient(url string) *Client {
	return &Client{
		apiKey:    "key",
		searchURL: url,
		http:      &http.Client{Timeout: 5 * time.Second},
		log:       logger.New("development"),
	}
}

func TestSearchMapsResults(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Api-Key") != "key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("X-Goog-FieldMask") == "" {
			t.Errorf("missing field mask header")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]any{
				{
					"id":                       "p1",
					"displayName":              map[string]string{"text": "Clinica Norte"},
					"formattedAddress":         "Calle 1, Palermo",
					"internationalPhoneNumber": "+54 11 5555-0001",
					"nationalPhoneNumber":      "011 5555-0001",
					"rating":                   4.5,
					"userRatingCount":          120,
				},
				{
					"id":                  "p2",
					"displayName":         map[string]string{"text": "Clinica Sur"},
					"nationalPhoneNumber": "011 5555-0002",
				},
			},
		})
	}))
	defer srv.Close()

	results, err := newTestClient(srv.URL).Search(context.Background(), "dentista en palermo", -34.58, -58.42)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d", len(results))
	}
	if results[0].Name != "Clinica Norte" || results[0].Phone != "+54 11 5555-0001" {
		t.Fatalf("first result = %+v, international number should win", results[0])
	}
	if results[0].Rating != 4.5 || results[0].RatingCount != 120 {
		t.Fatalf("rating not mapped: %+v", results[0])
	}
	if results[1].Phone != "011 5555-0002" {
		t.Fatalf("national fallback = %q", results[1].Phone)
	}
	if gotBody["textQuery"] != "dentista en palermo" {
		t.Fatalf("query = %v", gotBody["textQuery"])
	}
	if _, ok := gotBody["locationBias"]; !ok {
		t.Fatal("location bias missing for non-zero coordinates")
	}
}

func TestSearchOmitsBiasAtOrigin(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"places": []any{}})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Search(context.Background(), "dentista", 0, 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, ok := gotBody["locationBias"]; ok {
		t.Fatal("no bias expected without coordinates")
	}
}

func TestSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Search(context.Background(), "dentista", 0, 0); err == nil {
		t.Fatal("expected upstream error to surface")
	}
}

func TestNilClientReturnsNothing(t *testing.T) {
	var c *Client
	results, err := c.Search(context.Background(), "dentista", 0, 0)
	if err != nil || results != nil {
		t.Fatalf("nil client = (%v, %v)", results, err)
	}
}
