// Package conversation implements the orchestration core: the per-user state
// machine that turns chat messages into call requests, the campaign
// orchestrator that fans one request out to several providers, and the
// callback correlator that matches completion events back to their owner.
package conversation

import (
	"sync"
	"time"

	"vocero/internal/intent"
	"vocero/internal/places"
	"vocero/internal/summary"
)

// Status is the lifecycle phase of a user's session.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusAwaitingProvider Status = "awaiting_provider"
	StatusCalling          Status = "calling"
	StatusCompleted        Status = "completed"
)

// Outcome is a terminal call result that will never change further.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeFailed     Outcome = "failed"
	OutcomeBusy       Outcome = "busy"
	OutcomeNoAnswer   Outcome = "no_answer"
	OutcomeNotReached Outcome = "not_reached" // placement failed, no callback will ever arrive
)

// PendingCallSentinel claims the dispatch slot before the carrier assigns
// real identifiers, so an overlapping event cannot double-dial while the
// first placement request is in flight.
const PendingCallSentinel = "pending"

// CallResult is one entry in the append-only single-call outcome log.
type CallResult struct {
	ProviderName   string           `json:"provider_name,omitempty"`
	ProviderPhone  string           `json:"provider_phone"`
	CallSID        string           `json:"call_sid,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Outcome        Outcome          `json:"outcome"`
	Summary        *summary.Summary `json:"summary,omitempty"`
	At             time.Time        `json:"at"`
}

// State is the single mutable conversation record for one user.
//
// Chat-event handlers own the state via the Guard's per-user lock for the
// whole handler. Callback handlers do not take that lock; any mutation
// shared with the callback path (call tracking, campaign bookkeeping,
// status) must hold the state's own lock, which is the atomic commit point
// for consuming a call id.
type State struct {
	mu sync.Mutex

	Status             Status          `json:"status"`
	PendingIntent      intent.Type     `json:"pending_intent,omitempty"`
	Entities           intent.Entities `json:"entities"`
	Language           intent.Language `json:"language"`
	UserName           string          `json:"user_name,omitempty"`
	ProviderName       string          `json:"provider_name,omitempty"`
	ProviderPhone      string          `json:"provider_phone,omitempty"`
	ActiveCallIDs      []string        `json:"active_call_ids,omitempty"`
	CallResults        []CallResult    `json:"call_results,omitempty"`
	SearchResults      []places.Result `json:"search_results,omitempty"`
	MultiCall          *Campaign       `json:"multi_call,omitempty"`
	LastConversationID string          `json:"last_conversation_id,omitempty"`
	LastBotMessage     string          `json:"last_bot_message,omitempty"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewState returns a fresh idle session.
func NewState() *State {
	return &State{
		Status:    StatusIdle,
		Language:  intent.LanguageES,
		UpdatedAt: time.Now(),
	}
}

// Lock acquires the per-state commit lock shared with the callback path.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the per-state commit lock.
func (s *State) Unlock() { s.mu.Unlock() }

// HasActiveCall reports whether a dispatch slot is claimed (sentinel or real
// ids). Caller must hold the state lock.
func (s *State) HasActiveCall() bool {
	return len(s.ActiveCallIDs) > 0
}

// ClaimDispatchSlot inserts the pending sentinel. Returns false when a call
// is already outstanding. Caller must hold the state lock.
func (s *State) ClaimDispatchSlot() bool {
	if len(s.ActiveCallIDs) > 0 {
		return false
	}
	s.ActiveCallIDs = []string{PendingCallSentinel}
	return true
}

// ResolveDispatchSlot replaces the sentinel with the real call-tracking ids.
// Caller must hold the state lock.
func (s *State) ResolveDispatchSlot(ids ...string) {
	tracked := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			tracked = append(tracked, id)
		}
	}
	s.ActiveCallIDs = tracked
}

// ReleaseDispatchSlot clears all call tracking after a failed or consumed
// attempt. Caller must hold the state lock.
func (s *State) ReleaseDispatchSlot() {
	s.ActiveCallIDs = nil
}

// tracksCallID reports whether id is one of the state's active tracking
// tokens. Caller must hold the state lock.
func (s *State) tracksCallID(id string) bool {
	for _, tracked := range s.ActiveCallIDs {
		if tracked == id {
			return true
		}
	}
	return false
}

// Campaign is a batch of outbound call attempts spawned from one user
// request, tracked as a unit until every attempt reaches a terminal outcome.
// It is owned exclusively by the State that created it.
type Campaign struct {
	Providers    []*CampaignProvider `json:"providers"`
	PendingCount int                 `json:"pending_count"`
	Results      []CampaignResult    `json:"results,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
}

// CampaignProvider is one candidate in a campaign. CallSID and
// ConversationID start empty and are filled in as the call is placed.
type CampaignProvider struct {
	Name           string  `json:"name"`
	Phone          string  `json:"phone"`
	Rating         float64 `json:"rating,omitempty"`
	RatingCount    int     `json:"rating_count,omitempty"`
	CallSID        string  `json:"call_sid,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Consumed       bool    `json:"consumed"` // terminal outcome recorded
}

// CampaignResult is one per-provider outcome record.
type CampaignResult struct {
	ProviderName  string           `json:"provider_name"`
	ProviderPhone string           `json:"provider_phone"`
	Rating        float64          `json:"rating,omitempty"`
	Summary       *summary.Summary `json:"summary,omitempty"`
	Outcome       Outcome          `json:"outcome"`
}

// providerByCallID finds the unconsumed campaign provider owning the given
// correlation id. Caller must hold the state lock.
func (c *Campaign) providerByCallID(id string) *CampaignProvider {
	if c == nil {
		return nil
	}
	for _, p := range c.Providers {
		if p.Consumed {
			continue
		}
		if (p.CallSID != "" && p.CallSID == id) || (p.ConversationID != "" && p.ConversationID == id) {
			return p
		}
	}
	return nil
}

// trackedIDs returns every correlation id the state currently owns,
// including campaign provider ids. Caller must hold the state lock.
func (s *State) trackedIDs() []string {
	ids := make([]string, 0, len(s.ActiveCallIDs))
	ids = append(ids, s.ActiveCallIDs...)
	if s.MultiCall != nil {
		for _, p := range s.MultiCall.Providers {
			if p.Consumed {
				continue
			}
			if p.CallSID != "" {
				ids = append(ids, p.CallSID)
			}
			if p.ConversationID != "" {
				ids = append(ids, p.ConversationID)
			}
		}
	}
	return ids
}
