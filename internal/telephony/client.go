// Package telephony places outbound calls by registering them with the
// conversational voice engine and dialing through the carrier. The engine
// conducts the call; this package only starts it and tracks its identifiers.
package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"vocero/platform/config"
	"vocero/platform/logger"
)

const (
	engineBaseURL  = "https://api.elevenlabs.io"
	carrierBaseURL = "https://api.twilio.com"

	// How long a callSID -> conversationID index entry survives without being
	// consumed. Covers the window between call placement and the last callback.
	indexEntryTTL = 2 * time.Hour
)

var conversationIDPattern = regexp.MustCompile(`name="conversation_id"\s+value="([^"]+)"`)

// PlacedCall carries the two correlation identifiers assigned to a new call.
// Both empty signals a failed placement.
type PlacedCall struct {
	ConversationID string
	CallSID        string
}

// DynamicVariables is the optional context bundle forwarded to the voice
// agent. Empty values are omitted from the request.
type DynamicVariables map[string]string

type indexEntry struct {
	conversationID string
	storedAt       time.Time
}

// Client registers calls with ElevenLabs and dials them via Twilio.
type Client struct {
	engineURL   string
	carrierURL  string
	engineKey   string
	agentID     string
	agentIDEN   string
	accountSID  string
	authToken   string
	fromNumber  string
	callbackURL string
	placeTO     time.Duration
	fetchTO     time.Duration
	http        *http.Client
	log         *logger.Logger

	// callSID -> conversationID, for callbacks that only carry one of the two
	mu    sync.Mutex
	index map[string]indexEntry
}

// NewClient creates the telephony client. The status callback URL is derived
// from the app base URL.
func NewClient(engine config.EngineConfig, carrier config.TwilioConfig, log *logger.Logger) *Client {
	return &Client{
		engineURL:   engineBaseURL,
		carrierURL:  carrierBaseURL,
		engineKey:   engine.GetElevenLabsAPIKey(),
		agentID:     engine.GetElevenLabsAgentID(),
		agentIDEN:   engine.GetElevenLabsAgentIDEN(),
		accountSID:  carrier.GetTwilioAccountSID(),
		authToken:   carrier.GetTwilioAuthToken(),
		fromNumber:  carrier.GetTwilioPhoneNumber(),
		callbackURL: strings.TrimRight(carrier.GetAppBaseURL(), "/") + "/api/call-status",
		placeTO:     engine.GetCallPlacementTimeout(),
		fetchTO:     engine.GetTranscriptFetchTimeout(),
		http:        &http.Client{Timeout: 30 * time.Second},
		log:         log,
	}
}

// PlaceCall registers the call with the engine, dials it through the carrier
// and returns the assigned identifiers. A timeout is treated the same as an
// explicit failure by callers.
func (c *Client) PlaceCall(ctx context.Context, toNumber string, vars DynamicVariables, language string) (PlacedCall, error) {
	ctx, cancel := context.WithTimeout(ctx, c.placeTO)
	defer cancel()

	twiml, conversationID, err := c.registerCall(ctx, toNumber, vars, language)
	if err != nil {
		return PlacedCall{}, err
	}

	callSID, err := c.dial(ctx, toNumber, twiml)
	if err != nil {
		return PlacedCall{}, err
	}

	if callSID != "" && conversationID != "" {
		c.remember(callSID, conversationID)
	}

	c.log.CallEvent("placed", "", callSID, conversationID)
	return PlacedCall{ConversationID: conversationID, CallSID: callSID}, nil
}

// registerCall asks the engine for TwiML that connects the carrier leg
// directly to the engine's websocket.
func (c *Client) registerCall(ctx context.Context, toNumber string, vars DynamicVariables, language string) (twiml, conversationID string, err error) {
	agentID := c.agentID
	if language == "en" && c.agentIDEN != "" {
		agentID = c.agentIDEN
	}

	body := map[string]any{
		"agent_id":    agentID,
		"from_number": c.fromNumber,
		"to_number":   toNumber,
		"direction":   "outbound",
	}
	if len(vars) > 0 {
		dynamic := map[string]string{}
		for k, v := range vars {
			if v != "" {
				dynamic[k] = v
			}
		}
		if len(dynamic) > 0 {
			body["conversation_initiation_client_data"] = map[string]any{
				"dynamic_variables": dynamic,
			}
		}
	}

	data, err := postJSON(ctx, c.http, c.engineURL+"/v1/convai/twilio/register-call", body, map[string]string{
		"xi-api-key": c.engineKey,
	})
	if err != nil {
		return "", "", fmt.Errorf("engine register-call: %w", err)
	}

	twiml = string(data)
	if match := conversationIDPattern.FindStringSubmatch(twiml); match != nil {
		conversationID = match[1]
	}
	return twiml, conversationID, nil
}

// dial creates the carrier call using the engine-provided TwiML.
func (c *Client) dial(ctx context.Context, toNumber, twiml string) (string, error) {
	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", c.fromNumber)
	form.Set("Twiml", twiml)
	form.Set("StatusCallback", c.callbackURL)
	form.Set("StatusCallbackEvent", "completed")

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.carrierURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("carrier call create: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("carrier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload struct {
		SID string `json:"sid"`
	}
	if err := decodeJSON(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("decode carrier response: %w", err)
	}
	return payload.SID, nil
}

// ConversationID resolves the engine conversation id for a carrier call, if
// the call is still tracked.
func (c *Client) ConversationID(callSID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictStale()
	entry, ok := c.index[callSID]
	if !ok {
		return "", false
	}
	return entry.conversationID, true
}

// Release removes a finished call from the index.
func (c *Client) Release(callSID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.index, callSID)
}

func (c *Client) remember(callSID, conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil {
		c.index = make(map[string]indexEntry)
	}
	c.evictStale()
	c.index[callSID] = indexEntry{conversationID: conversationID, storedAt: time.Now()}
}

// evictStale is called with c.mu held.
func (c *Client) evictStale() {
	cutoff := time.Now().Add(-indexEntryTTL)
	for sid, entry := range c.index {
		if entry.storedAt.Before(cutoff) {
			delete(c.index, sid)
		}
	}
}
