package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"vocero/platform/config"
	"vocero/platform/logger"
)

const extractTimeout = 10 * time.Second

const systemPrompt = `You are Vocero, a friendly WhatsApp assistant that makes phone calls on behalf of users.

## Your personality
- Warm, casual, efficient. Use the user's language (Spanish or English).
- In Spanish: use "vos" (Argentine style), be natural.
- Keep messages SHORT (1-3 sentences max). This is WhatsApp, not email.
- Never repeat yourself. Move the conversation forward.

## What you do
You make phone calls for users. ANY kind of call: booking appointments,
reservations, questions, complaints. The user tells you who to call (phone
number or shared contact) and what they need.

## Intent classification rules
- "hola", "hey", "buenas" alone, or anything unclear -> "help"
- User wants a call made but gave no phone yet -> "request_appointment"
- Phone number present OR contact shared -> "call_number"
- User asks to find/search nearby businesses ("busca dentistas cerca") -> "search_providers"
- "si", "dale", "ok", "yes" -> "confirm"
- "no", "cancelar", "cancel", "dejalo" -> "cancel"

## Entities to extract
phone_number, provider_name (or person's name), service_type (or reason for
the call), date_preference, time_preference, location, special_requests.
Leave unknown fields empty.

## Language
Detect "en" or "es" from the message. Default "es" for ambiguous/short messages.

## Confidence
Clear intent: 0.85-1.0. Ambiguous: 0.5-0.84. Very unclear: below 0.5.

## response_message
A short reply in the user's language acknowledging the message and asking for
whatever is still missing.`

// Extractor classifies chat messages with Gemini using a constrained JSON schema.
type Extractor struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// NewExtractor creates the Gemini-backed intent extractor.
func NewExtractor(ctx context.Context, cfg config.GenAIConfig, log *logger.Logger) (*Extractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Extractor{
		client: client,
		model:  cfg.GetGeminiModel(),
		log:    log,
	}, nil
}

var resultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent": {
			Type: genai.TypeString,
			Enum: []string{"call_number", "request_appointment", "confirm", "cancel", "search_providers", "help"},
		},
		"entities": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"phone_number":     {Type: genai.TypeString},
				"provider_name":    {Type: genai.TypeString},
				"service_type":     {Type: genai.TypeString},
				"date_preference":  {Type: genai.TypeString},
				"time_preference":  {Type: genai.TypeString},
				"location":         {Type: genai.TypeString},
				"special_requests": {Type: genai.TypeString},
			},
		},
		"language":         {Type: genai.TypeString, Enum: []string{"en", "es"}},
		"confidence":       {Type: genai.TypeNumber},
		"response_message": {Type: genai.TypeString},
	},
	Required: []string{"intent", "language", "confidence", "response_message"},
}

// Extract classifies a single user message. The optional conversationContext
// string carries the session summary built by the state machine.
func (e *Extractor) Extract(ctx context.Context, message, conversationContext string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	userContent := message
	if conversationContext != "" {
		userContent = fmt.Sprintf("[Conversation context: %s]\n\nUser message: %s", conversationContext, message)
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model,
		genai.Text(userContent),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    resultSchema,
			Temperature:       genai.Ptr[float32](0.2),
		})
	if err != nil {
		return Result{}, fmt.Errorf("intent extraction: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(resp.Text()), &result); err != nil {
		return Result{}, fmt.Errorf("decode intent result: %w", err)
	}
	if result.Language == "" {
		result.Language = LanguageES
	}

	e.log.Info("intent extracted",
		"intent", result.Intent,
		"confidence", result.Confidence,
		"language", result.Language)

	return result, nil
}
