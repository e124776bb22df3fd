// Package calendar creates Google Calendar events for confirmed bookings
// using a service account. The returned HTML link is relayed to the user.
package calendar

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vocero/platform/config"
	"vocero/platform/logger"
)

const (
	calendarScope = "https://www.googleapis.com/auth/calendar.events"
	tokenURI      = "https://oauth2.googleapis.com/token"
	calendarAPI   = "https://www.googleapis.com/calendar/v3"

	// Access tokens live an hour; refresh a little early.
	tokenCacheTTL = 50 * time.Minute
)

// Client creates calendar events via the Google Calendar REST API.
// A nil client (calendar not configured) is a no-op.
type Client struct {
	calendarID  string
	timezone    string
	clientEmail string
	privateKey  *rsa.PrivateKey
	tokenURL    string
	apiURL      string
	http        *http.Client
	log         *logger.Logger

	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

// NewClient loads the service account credentials and returns the client,
// or nil when the calendar integration is not configured.
func NewClient(cfg config.CalendarConfig, log *logger.Logger) (*Client, error) {
	if !cfg.IsCalendarEnabled() {
		return nil, nil
	}

	raw, err := os.ReadFile(cfg.GetServiceAccountFile())
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("parse service account file: %w", err)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}

	return &Client{
		calendarID:  cfg.GetCalendarID(),
		timezone:    cfg.GetCalendarTimezone(),
		clientEmail: creds.ClientEmail,
		privateKey:  key,
		tokenURL:    tokenURI,
		apiURL:      calendarAPI,
		http:        &http.Client{Timeout: 15 * time.Second},
		log:         log,
	}, nil
}

// CreateEvent creates a calendar event and returns its HTML link.
// date is YYYY-MM-DD, startTime is HH:MM.
func (c *Client) CreateEvent(ctx context.Context, summary, date, startTime string, durationMinutes int, location, description string) (string, error) {
	if c == nil {
		return "", nil
	}
	if durationMinutes <= 0 {
		durationMinutes = 60
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	endTime, err := addMinutes(startTime, durationMinutes)
	if err != nil {
		return "", fmt.Errorf("invalid start time %q: %w", startTime, err)
	}

	event := map[string]any{
		"summary": summary,
		"start":   map[string]string{"dateTime": date + "T" + startTime + ":00", "timeZone": c.timezone},
		"end":     map[string]string{"dateTime": date + "T" + endTime + ":00", "timeZone": c.timezone},
	}
	if location != "" {
		event["location"] = location
	}
	if description != "" {
		event["description"] = description
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.apiURL, url.PathEscape(c.calendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("calendar API returned %d", resp.StatusCode)
	}

	var created struct {
		HTMLLink string `json:"htmlLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode calendar response: %w", err)
	}

	c.log.Info("calendar event created", "link", created.HTMLLink)
	return created.HTMLLink, nil
}

// accessToken returns a cached OAuth token, minting a new one via a signed
// JWT assertion when expired.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachedToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.cachedToken, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.clientEmail,
		"scope": calendarScope,
		"aud":   tokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign token assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	c.cachedToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(tokenCacheTTL)
	return c.cachedToken, nil
}

func addMinutes(hhmm string, minutes int) (string, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", err
	}
	return t.Add(time.Duration(minutes) * time.Minute).Format("15:04"), nil
}
