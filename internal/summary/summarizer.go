// Package summary turns a finished call transcript into a structured outcome
// the orchestrator can rank and relay to the user.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"vocero/platform/config"
	"vocero/platform/logger"
)

const summarizeTimeout = 15 * time.Second

// Summary is the structured result of analyzing one finished call.
// BookingConfirmed is only set when both Date and Time are present.
type Summary struct {
	Message          string `json:"message"`
	BookingConfirmed bool   `json:"booking_confirmed"`
	Date             string `json:"date,omitempty"`     // YYYY-MM-DD
	Time             string `json:"time,omitempty"`     // HH:MM
	DurationMinutes  int    `json:"duration_minutes,omitempty"`
	Address          string `json:"address,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// SlotDiscussed reports whether a date or time came up during the call,
// even if no booking was confirmed.
func (s Summary) SlotDiscussed() bool {
	return s.Date != "" || s.Time != ""
}

const summarizerPrompt = `You analyze transcripts of phone calls made by a voice
assistant on behalf of a user, usually to book an appointment or make a
reservation.

Produce:
- message: 1-3 short sentences for the user, in the requested language,
  WhatsApp tone, summarizing how the call went.
- booking_confirmed: true ONLY if a concrete appointment was agreed with both
  a date and a time.
- date (YYYY-MM-DD) and time (HH:MM, 24h) when mentioned. Resolve relative
  dates ("tomorrow", "el jueves") against today's date given in the prompt.
- duration_minutes when the appointment length was stated.
- address when the venue gave one.
- notes: anything the user should know (price, what to bring, cancellation).

If booking_confirmed is true, date and time MUST both be set.`

var summarySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"message":           {Type: genai.TypeString},
		"booking_confirmed": {Type: genai.TypeBoolean},
		"date":              {Type: genai.TypeString},
		"time":              {Type: genai.TypeString},
		"duration_minutes":  {Type: genai.TypeInteger},
		"address":           {Type: genai.TypeString},
		"notes":             {Type: genai.TypeString},
	},
	Required: []string{"message", "booking_confirmed"},
}

// Summarizer produces call summaries with Gemini structured output.
type Summarizer struct {
	client *genai.Client
	model  string
	log    *logger.Logger
	now    func() time.Time
}

// NewSummarizer creates the Gemini-backed call summarizer.
func NewSummarizer(ctx context.Context, cfg config.GenAIConfig, log *logger.Logger) (*Summarizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Summarizer{
		client: client,
		model:  cfg.GetGeminiModel(),
		log:    log,
		now:    time.Now,
	}, nil
}

// Summarize analyzes a finished call transcript. The summary enforces the
// booking invariant: a confirmed booking without both date and time is
// downgraded to unconfirmed.
func (s *Summarizer) Summarize(ctx context.Context, providerName, providerPhone, transcript string, lang string) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, summarizeTimeout)
	defer cancel()

	display := providerName
	if display == "" {
		display = providerPhone
	}

	prompt := fmt.Sprintf("Today is %s. Language: %s. Provider: %s (%s).\n\nTranscript:\n%s",
		s.now().Format("2006-01-02"), lang, display, providerPhone, transcript)

	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(summarizerPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    summarySchema,
			Temperature:       genai.Ptr[float32](0.1),
		})
	if err != nil {
		return Summary{}, fmt.Errorf("summarize call: %w", err)
	}

	var out Summary
	if err := json.Unmarshal([]byte(resp.Text()), &out); err != nil {
		return Summary{}, fmt.Errorf("decode call summary: %w", err)
	}

	if out.BookingConfirmed && (out.Date == "" || out.Time == "") {
		s.log.Warn("summarizer confirmed booking without date and time, downgrading",
			"provider", display)
		out.BookingConfirmed = false
	}

	return out, nil
}
