package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"vocero/internal/contact"
	"vocero/internal/intent"
	"vocero/internal/messages"
	"vocero/platform/phone"
)

// InboundMessage is one user chat event, already deduplicated by the
// transport layer.
type InboundMessage struct {
	UserID           string // normalized E.164, channel prefix stripped
	Body             string
	MessageSID       string
	ProfileName      string
	MediaURL         string
	MediaContentType string
}

// HandleMessage runs one chat event through the state machine. The user's
// chat lock is held for the entire handler; callbacks are never blocked by
// it.
func (s *Service) HandleMessage(ctx context.Context, msg InboundMessage) {
	unlock := s.guard.Lock(msg.UserID)
	defer unlock()

	log := s.log.WithUserID(msg.UserID)
	st := s.store.GetOrCreate(msg.UserID)

	// A finished session rolls over into a fresh one; only the engine
	// conversation reference and language survive.
	if st.Status == StatusCompleted {
		prevConv, prevLang := st.LastConversationID, st.Language
		st = s.store.Reset(msg.UserID)
		st.LastConversationID = prevConv
		st.Language = prevLang
	}
	if msg.ProfileName != "" && st.UserName == "" {
		st.UserName = msg.ProfileName
	}

	// Numeric replies against an open result list short-circuit the
	// extractor entirely.
	if len(st.SearchResults) > 0 && s.handleSelection(ctx, msg.UserID, st, msg.Body) {
		s.save(msg.UserID, st)
		return
	}

	shared, hasContact := s.extractContact(ctx, msg)

	res, err := s.extractor.Extract(ctx, msg.Body, buildContext(st))
	if err != nil {
		log.CollaboratorError("intent", "extract", err)
		s.send(ctx, msg.UserID, s.catalog.Render(st.Language, "extract_failed", nil))
		s.save(msg.UserID, st)
		return
	}

	if res.Language != "" {
		st.Language = res.Language
	}
	st.Entities = st.Entities.Merge(res.Entities)
	if hasContact {
		if shared.Phone != "" {
			st.Entities.PhoneNumber = shared.Phone
		}
		if shared.Name != "" && st.Entities.ProviderName == "" {
			st.Entities.ProviderName = shared.Name
		}
		// Sharing a contact card is an implicit request to call it.
		if res.Intent == intent.TypeHelp {
			res.Intent = intent.TypeCallNumber
		}
	}
	st.PendingIntent = res.Intent

	suppressReply := false
	switch res.Intent {
	case intent.TypeCallNumber:
		suppressReply = s.onCallNumber(st)
	case intent.TypeRequestAppointment:
		suppressReply = s.onRequestAppointment(st)
	case intent.TypeConfirm:
		suppressReply = s.onConfirm(st)
	case intent.TypeCancel:
		s.onCancel(ctx, msg.UserID, st)
	case intent.TypeSearchProviders:
		suppressReply = s.onSearchProviders(ctx, msg.UserID, st)
	case intent.TypeHelp:
		// Extractor reply carries the help text.
	}

	if !suppressReply && res.Reply != "" {
		s.send(ctx, msg.UserID, res.Reply)
		st.LastBotMessage = res.Reply
	}
	s.save(msg.UserID, st)

	// Dispatch happens after the textual turn is settled so the "calling
	// now" notification is the only message the user sees for it.
	if st.Status == StatusCalling && st.MultiCall == nil {
		s.TriggerCall(ctx, msg.UserID, st)
	}
}

// onCallNumber absorbs a direct call request. Arms the dispatcher when both
// the number and the service are known, otherwise parks the session waiting
// for the missing slot.
func (s *Service) onCallNumber(st *State) bool {
	s.adoptProviderEntities(st)
	if st.ProviderPhone != "" && st.Entities.ServiceType != "" {
		s.prepareForNewCall(st)
		return true
	}
	if st.Status != StatusCalling {
		st.Status = StatusAwaitingProvider
	}
	return false
}

// onRequestAppointment needs a provider number before anything can be
// dialed; with one on file the request arms immediately.
func (s *Service) onRequestAppointment(st *State) bool {
	s.adoptProviderEntities(st)
	if st.ProviderPhone != "" {
		s.prepareForNewCall(st)
		return true
	}
	st.Status = StatusAwaitingProvider
	return false
}

// onConfirm treats an affirmation as the go-ahead for whatever is parked.
func (s *Service) onConfirm(st *State) bool {
	s.adoptProviderEntities(st)
	if st.ProviderPhone != "" {
		s.prepareForNewCall(st)
		return true
	}
	return false
}

// onCancel resets the session. A campaign already dispatching is left to
// run out; its results will still be reported.
func (s *Service) onCancel(ctx context.Context, userID string, st *State) {
	st.Lock()
	campaignPending := st.MultiCall != nil && st.MultiCall.PendingCount > 0
	st.Status = StatusIdle
	st.PendingIntent = ""
	st.Entities = intent.Entities{}
	st.ProviderName = ""
	st.ProviderPhone = ""
	st.SearchResults = nil
	if !campaignPending {
		st.ActiveCallIDs = nil
		st.CallResults = nil
	}
	st.Unlock()

	if campaignPending {
		s.send(ctx, userID, s.catalog.Render(st.Language, "campaign_cancel_pending", nil))
	}
}

// onSearchProviders runs a local business lookup when enough is known,
// otherwise leaves the extractor's clarifying question in place.
func (s *Service) onSearchProviders(ctx context.Context, userID string, st *State) bool {
	if st.Entities.ServiceType == "" || st.Entities.Location == "" || s.search == nil {
		st.Status = StatusAwaitingProvider
		return false
	}
	query := st.Entities.ServiceType + " " + st.Entities.Location
	results, err := s.search.Search(ctx, query, 0, 0)
	if err != nil {
		s.log.CollaboratorError("places", "search", err)
		s.send(ctx, userID, s.catalog.Render(st.Language, "search_failed", nil))
		return true
	}
	if len(results) == 0 {
		s.send(ctx, userID, s.catalog.Render(st.Language, "search_no_results", nil))
		return true
	}
	st.SearchResults = results
	st.Status = StatusAwaitingProvider
	s.send(ctx, userID, s.catalog.SearchResults(st.Language, results))
	return true
}

// handleSelection interprets a reply against an open result list. Returns
// false when the reply is not a selection and should flow to the extractor.
func (s *Service) handleSelection(ctx context.Context, userID string, st *State, body string) bool {
	text := strings.ToLower(strings.TrimSpace(body))
	switch text {
	case "todos", "todas", "all", "call all", "llamar a todos":
		s.TriggerMultiCall(ctx, userID, st)
		return true
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return false
	}
	if n < 1 || n > len(st.SearchResults) {
		s.send(ctx, userID, s.catalog.Render(st.Language, "selection_invalid", messages.Vars{
			"max": strconv.Itoa(len(st.SearchResults)),
		}))
		return true
	}
	sel := st.SearchResults[n-1]
	if sel.Phone == "" {
		s.send(ctx, userID, s.catalog.Render(st.Language, "selection_no_phone", messages.Vars{
			"name": sel.Name,
		}))
		return true
	}
	st.ProviderName = sel.Name
	st.ProviderPhone = phone.NormalizeE164(sel.Phone)
	st.SearchResults = nil
	s.prepareForNewCall(st)
	s.TriggerCall(ctx, userID, st)
	return true
}

// adoptProviderEntities copies freshly extracted provider slots onto the
// session, normalizing the number.
func (s *Service) adoptProviderEntities(st *State) {
	if st.Entities.PhoneNumber != "" {
		st.ProviderPhone = phone.NormalizeE164(st.Entities.PhoneNumber)
	}
	if st.Entities.ProviderName != "" {
		st.ProviderName = st.Entities.ProviderName
	}
}

// prepareForNewCall is the single choke point for entering the calling
// phase. Re-arming while a dispatch is still outstanding leaves the
// tracking set untouched so the in-flight call cannot be double-dialed.
func (s *Service) prepareForNewCall(st *State) {
	st.Lock()
	defer st.Unlock()
	st.Status = StatusCalling
	if len(st.ActiveCallIDs) == 0 {
		st.CallResults = nil
	}
}

// extractContact pulls a provider contact out of a shared vCard attachment
// or, failing that, the message text itself.
func (s *Service) extractContact(ctx context.Context, msg InboundMessage) (contact.Parsed, bool) {
	if msg.MediaURL != "" && contact.IsVCardMedia(msg.MediaContentType) && s.media != nil {
		raw, err := s.media.FetchMedia(ctx, msg.MediaURL)
		if err != nil {
			s.log.CollaboratorError("messenger", "fetch_media", err)
		} else if parsed, ok := contact.ParseVCard(string(raw)); ok {
			return parsed, true
		}
	}
	return contact.FromText(msg.Body)
}

// buildContext renders the session for the extractor prompt so follow-up
// messages resolve against what is already known.
func buildContext(st *State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "status=%s", st.Status)
	if st.PendingIntent != "" {
		fmt.Fprintf(&b, "; pending_intent=%s", st.PendingIntent)
	}
	if st.ProviderName != "" {
		fmt.Fprintf(&b, "; provider=%s", st.ProviderName)
	}
	if st.ProviderPhone != "" {
		fmt.Fprintf(&b, "; provider_phone=%s", st.ProviderPhone)
	}
	if st.Entities.ServiceType != "" {
		fmt.Fprintf(&b, "; service=%s", st.Entities.ServiceType)
	}
	if st.Entities.DatePreference != "" {
		fmt.Fprintf(&b, "; date=%s", st.Entities.DatePreference)
	}
	if st.Entities.TimePreference != "" {
		fmt.Fprintf(&b, "; time=%s", st.Entities.TimePreference)
	}
	if len(st.SearchResults) > 0 {
		fmt.Fprintf(&b, "; open_search_results=%d", len(st.SearchResults))
	}
	if st.LastBotMessage != "" {
		fmt.Fprintf(&b, "; last_bot_message=%q", st.LastBotMessage)
	}
	return b.String()
}
