// Package intent classifies inbound chat messages into structured intents.
// The core never re-derives intent; it only interprets the returned kind.
package intent

// Type is the closed set of intent kinds the state machine branches on.
type Type string

const (
	TypeCallNumber         Type = "call_number"
	TypeRequestAppointment Type = "request_appointment"
	TypeConfirm            Type = "confirm"
	TypeCancel             Type = "cancel"
	TypeSearchProviders    Type = "search_providers"
	TypeHelp               Type = "help"
)

// Language is the detected locale of the user's message.
type Language string

const (
	LanguageES Language = "es"
	LanguageEN Language = "en"
)

// Entities are the slots extracted from the conversation so far.
// All fields are optional; empty means not yet known.
type Entities struct {
	PhoneNumber     string `json:"phone_number,omitempty"`
	ProviderName    string `json:"provider_name,omitempty"`
	ServiceType     string `json:"service_type,omitempty"`
	DatePreference  string `json:"date_preference,omitempty"`
	TimePreference  string `json:"time_preference,omitempty"`
	Location        string `json:"location,omitempty"`
	SpecialRequests string `json:"special_requests,omitempty"`
}

// Merge returns the union of e and newer. Non-empty newer values override,
// field by field ("last write wins" per field, not per message).
func (e Entities) Merge(newer Entities) Entities {
	merged := e
	if newer.PhoneNumber != "" {
		merged.PhoneNumber = newer.PhoneNumber
	}
	if newer.ProviderName != "" {
		merged.ProviderName = newer.ProviderName
	}
	if newer.ServiceType != "" {
		merged.ServiceType = newer.ServiceType
	}
	if newer.DatePreference != "" {
		merged.DatePreference = newer.DatePreference
	}
	if newer.TimePreference != "" {
		merged.TimePreference = newer.TimePreference
	}
	if newer.Location != "" {
		merged.Location = newer.Location
	}
	if newer.SpecialRequests != "" {
		merged.SpecialRequests = newer.SpecialRequests
	}
	return merged
}

// IsEmpty reports whether no slot has been extracted yet.
func (e Entities) IsEmpty() bool {
	return e == Entities{}
}

// Result is the extractor's verdict for a single message.
type Result struct {
	Intent     Type     `json:"intent"`
	Entities   Entities `json:"entities"`
	Language   Language `json:"language"`
	Confidence float64  `json:"confidence"`
	Reply      string   `json:"response_message"`
}
