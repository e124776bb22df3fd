package conversation

import (
	"context"

	"vocero/internal/calllog"
	"vocero/internal/events"
	"vocero/internal/messages"
)

// TriggerCall places the single armed call. No-op unless the session is in
// the calling phase with a provider number and a free dispatch slot, so
// repeated triggers cannot double-dial.
func (s *Service) TriggerCall(ctx context.Context, userID string, st *State) {
	st.Lock()
	armed := st.Status == StatusCalling && st.ProviderPhone != "" && st.MultiCall == nil
	if !armed || !st.ClaimDispatchSlot() {
		st.Unlock()
		return
	}
	toNumber := st.ProviderPhone
	name := messages.ProviderDisplayName(st.ProviderName, st.ProviderPhone)
	lang := st.Language
	st.Unlock()
	s.save(userID, st)

	s.send(ctx, userID, s.catalog.Render(lang, "calling", messages.Vars{"name": name}))

	placed, err := s.placer.PlaceCall(ctx, toNumber, s.dynamicVars(st, name), string(lang))
	if err != nil || (placed.CallSID == "" && placed.ConversationID == "") {
		if err != nil {
			s.log.CollaboratorError("telephony", "place_call", err)
		}
		st.Lock()
		st.ReleaseDispatchSlot()
		st.Status = StatusIdle
		st.CallResults = append(st.CallResults, CallResult{
			ProviderName:  name,
			ProviderPhone: toNumber,
			Outcome:       OutcomeNotReached,
			At:            s.now(),
		})
		st.Unlock()
		s.send(ctx, userID, s.catalog.Render(lang, "call_failed", messages.Vars{"name": name}))
		s.publish(ctx, events.CallFailed{
			BaseEvent:     events.NewBaseEvent(),
			UserID:        userID,
			ProviderName:  name,
			ProviderPhone: toNumber,
			Outcome:       string(OutcomeNotReached),
		})
		s.recordCall(ctx, calllog.CallRecord{
			UserID:        userID,
			ProviderName:  name,
			ProviderPhone: toNumber,
			Outcome:       string(OutcomeNotReached),
		})
		s.save(userID, st)
		return
	}

	st.Lock()
	st.ResolveDispatchSlot(placed.CallSID, placed.ConversationID)
	if placed.ConversationID != "" {
		st.LastConversationID = placed.ConversationID
	}
	st.Unlock()
	s.save(userID, st)

	s.log.CallEvent("call_placed", userID, placed.CallSID, placed.ConversationID)
	s.publish(ctx, events.CallPlaced{
		BaseEvent:      events.NewBaseEvent(),
		UserID:         userID,
		ProviderName:   name,
		ProviderPhone:  toNumber,
		CallSID:        placed.CallSID,
		ConversationID: placed.ConversationID,
	})
}
