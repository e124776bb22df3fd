// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"vocero/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Call Lifecycle Events
// =============================================================================

// CallPlaced is published when an outbound call has been handed to the carrier.
type CallPlaced struct {
	BaseEvent
	UserID         string `json:"userId"`
	ProviderName   string `json:"providerName,omitempty"`
	ProviderPhone  string `json:"providerPhone"`
	CallSID        string `json:"callSid"`
	ConversationID string `json:"conversationId,omitempty"`
	CampaignCall   bool   `json:"campaignCall"`
}

func (e CallPlaced) EventName() string { return "vocero.call.placed" }

// CallCompleted is published when a call reached a terminal "completed"
// outcome and its summary is available.
type CallCompleted struct {
	BaseEvent
	UserID           string `json:"userId"`
	ProviderName     string `json:"providerName,omitempty"`
	ProviderPhone    string `json:"providerPhone"`
	CallSID          string `json:"callSid"`
	ConversationID   string `json:"conversationId,omitempty"`
	BookingConfirmed bool   `json:"bookingConfirmed"`
}

func (e CallCompleted) EventName() string { return "vocero.call.completed" }

// CallFailed is published when a call ends without ever connecting
// (placement failure, busy, no answer).
type CallFailed struct {
	BaseEvent
	UserID        string `json:"userId"`
	ProviderName  string `json:"providerName,omitempty"`
	ProviderPhone string `json:"providerPhone"`
	Outcome       string `json:"outcome"`
}

func (e CallFailed) EventName() string { return "vocero.call.failed" }

// CampaignCompleted is published once every provider in a campaign has
// reached a terminal outcome and results were aggregated.
type CampaignCompleted struct {
	BaseEvent
	UserID        string `json:"userId"`
	ProviderCount int    `json:"providerCount"`
	Confirmed     int    `json:"confirmed"`
	Unreachable   int    `json:"unreachable"`
}

func (e CampaignCompleted) EventName() string { return "vocero.campaign.completed" }

// BookingConfirmed is published when a call produced a confirmed appointment.
type BookingConfirmed struct {
	BaseEvent
	UserID       string `json:"userId"`
	ProviderName string `json:"providerName"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Address      string `json:"address,omitempty"`
	Notes        string `json:"notes,omitempty"`
	CalendarLink string `json:"calendarLink,omitempty"`
}

func (e BookingConfirmed) EventName() string { return "vocero.booking.confirmed" }
