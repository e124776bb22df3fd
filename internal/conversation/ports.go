package conversation

import (
	"context"

	"vocero/internal/calllog"
	"vocero/internal/intent"
	"vocero/internal/places"
	"vocero/internal/summary"
	"vocero/internal/telephony"
)

// IntentExtractor classifies a chat message against the running
// conversation context.
type IntentExtractor interface {
	Extract(ctx context.Context, message, conversationContext string) (intent.Result, error)
}

// CallPlacer places outbound calls and answers the side index mapping
// carrier call ids to engine conversation ids.
type CallPlacer interface {
	PlaceCall(ctx context.Context, toNumber string, vars telephony.DynamicVariables, language string) (telephony.PlacedCall, error)
	ConversationID(callSID string) (string, bool)
	Release(callSID string)
}

// TranscriptFetcher retrieves finished conversation details from the voice
// engine. A nil transcript with nil error means not available.
type TranscriptFetcher interface {
	FetchDetails(ctx context.Context, conversationID string) (*telephony.Transcript, error)
}

// CallSummarizer distills a call transcript into a structured outcome.
type CallSummarizer interface {
	Summarize(ctx context.Context, providerName, providerPhone, transcript, language string) (summary.Summary, error)
}

// MessageSender delivers outbound chat messages to the user.
type MessageSender interface {
	Send(ctx context.Context, userID, body string) (string, error)
}

// MediaFetcher downloads message attachments, used for shared contact
// cards.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, mediaURL string) ([]byte, error)
}

// ProviderSearcher looks up local businesses matching a service query.
type ProviderSearcher interface {
	Search(ctx context.Context, query string, lat, lon float64) ([]places.Result, error)
}

// CalendarBuilder creates a calendar event and returns a shareable link.
// Implementations may be disabled and return an empty link.
type CalendarBuilder interface {
	CreateEvent(ctx context.Context, eventSummary, date, startTime string, durationMinutes int, location, description string) (string, error)
}

// CallRecorder persists call outcomes and booked appointments. A nil
// implementation is a no-op.
type CallRecorder interface {
	RecordCall(ctx context.Context, rec calllog.CallRecord) error
	RecordAppointment(ctx context.Context, rec calllog.AppointmentRecord) error
}

// TranscriptArchiver stores raw transcripts in object storage.
// Implementations may be disabled.
type TranscriptArchiver interface {
	Archive(ctx context.Context, conversationID string, body []byte) error
}
