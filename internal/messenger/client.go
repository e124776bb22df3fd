// Package messenger delivers outbound WhatsApp messages through the Twilio
// REST API. Delivery is fire-and-forget from the orchestrator's perspective:
// failures are logged here, never retried upstream.
package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vocero/platform/config"
	"vocero/platform/logger"
	"vocero/platform/phone"
)

const carrierBaseURL = "https://api.twilio.com"

// Client sends WhatsApp messages via Twilio.
type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	fromNumber string
	http       *http.Client
	log        *logger.Logger
}

// NewClient creates the WhatsApp messenger client.
func NewClient(cfg config.TwilioConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:    carrierBaseURL,
		accountSID: cfg.GetTwilioAccountSID(),
		authToken:  cfg.GetTwilioAuthToken(),
		fromNumber: cfg.GetTwilioWhatsAppNumber(),
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Send delivers a message to the user and returns the carrier message SID.
func (c *Client) Send(ctx context.Context, userID, body string) (string, error) {
	if c == nil {
		return "", nil
	}

	to := userID
	if !strings.HasPrefix(to, "whatsapp:") {
		to = "whatsapp:" + phone.NormalizeE164(to)
	}

	form := url.Values{}
	form.Set("From", c.fromNumber)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode message response: %w", err)
	}

	c.log.Info("whatsapp message sent", "to", to, "sid", payload.SID)
	return payload.SID, nil
}

// FetchMedia downloads an inbound media attachment (e.g. a shared contact
// vCard) from the carrier's authenticated media URL.
func (c *Client) FetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media download failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
