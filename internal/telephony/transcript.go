package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Turn is a single utterance in a finished call.
type Turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Transcript is the engine's record of a finished conversation.
type Transcript struct {
	ConversationID  string `json:"conversation_id"`
	Status          string `json:"status"`
	Turns           []Turn `json:"transcript"`
	DurationSeconds int    `json:"call_duration_secs"`
}

// PlainText renders the transcript as "role: message" lines for the summarizer.
func (t *Transcript) PlainText() string {
	var b strings.Builder
	for _, turn := range t.Turns {
		if turn.Message == "" {
			continue
		}
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Message)
		b.WriteString("\n")
	}
	return b.String()
}

// FetchDetails retrieves the transcript for a finished conversation.
// Returns nil without error when the engine does not know the conversation.
func (c *Client) FetchDetails(ctx context.Context, conversationID string) (*Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTO)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1/convai/conversations/%s", c.engineURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.engineKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine fetch conversation: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned %d for conversation %s", resp.StatusCode, conversationID)
	}

	var transcript Transcript
	if err := decodeJSON(resp.Body, &transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if transcript.ConversationID == "" {
		transcript.ConversationID = conversationID
	}
	return &transcript, nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, body any, headers map[string]string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}
