// Package places finds candidate service providers via the Google Places
// text search API.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vocero/platform/config"
	"vocero/platform/logger"
)

const searchURL = "https://places.googleapis.com/v1/places:searchText"

const fieldMask = "places.displayName,places.formattedAddress,places.nationalPhoneNumber,places.internationalPhoneNumber,places.rating,places.userRatingCount,places.id"

// Result is one candidate provider returned by a search.
type Result struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Phone       string  `json:"phone,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	RatingCount int     `json:"rating_count,omitempty"`
	PlaceID     string  `json:"place_id,omitempty"`
}

// Client queries the Places API. A nil client (no API key configured)
// returns empty results.
type Client struct {
	apiKey    string
	searchURL string
	http      *http.Client
	log       *logger.Logger
}

// NewClient creates the places client, or nil when the API key is unset.
func NewClient(cfg config.PlacesConfig, log *logger.Logger) *Client {
	if !cfg.IsPlacesEnabled() {
		return nil
	}
	return &Client{
		apiKey:    cfg.GetPlacesAPIKey(),
		searchURL: searchURL,
		http:      &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

// Search runs a text query, optionally biased around a location.
// lat/lon of (0, 0) means no bias.
func (c *Client) Search(ctx context.Context, query string, lat, lon float64) ([]Result, error) {
	if c == nil {
		return nil, nil
	}

	body := map[string]any{
		"textQuery":      query,
		"maxResultCount": 5,
	}
	if lat != 0 || lon != 0 {
		body["locationBias"] = map[string]any{
			"circle": map[string]any{
				"center": map[string]float64{"latitude": lat, "longitude": lon},
				"radius": 5000.0,
			},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places upstream error: %d", resp.StatusCode)
	}

	var raw struct {
		Places []struct {
			ID          string `json:"id"`
			DisplayName struct {
				Text string `json:"text"`
			} `json:"displayName"`
			FormattedAddress         string  `json:"formattedAddress"`
			NationalPhoneNumber      string  `json:"nationalPhoneNumber"`
			InternationalPhoneNumber string  `json:"internationalPhoneNumber"`
			Rating                   float64 `json:"rating"`
			UserRatingCount          int     `json:"userRatingCount"`
		} `json:"places"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode places payload: %w", err)
	}

	results := make([]Result, 0, len(raw.Places))
	for _, place := range raw.Places {
		phoneNumber := place.InternationalPhoneNumber
		if phoneNumber == "" {
			phoneNumber = place.NationalPhoneNumber
		}
		results = append(results, Result{
			Name:        place.DisplayName.Text,
			Address:     place.FormattedAddress,
			Phone:       phoneNumber,
			Rating:      place.Rating,
			RatingCount: place.UserRatingCount,
			PlaceID:     place.ID,
		})
	}

	c.log.Info("places search", "query", query, "results", len(results))
	return results, nil
}
