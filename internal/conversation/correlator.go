package conversation

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"vocero/internal/calllog"
	"vocero/internal/events"
	"vocero/internal/intent"
	"vocero/internal/messages"
	"vocero/internal/summary"
)

// claim is the outcome of consuming a call id: which session owns it and,
// for campaigns, which provider.
type claim struct {
	provider       *CampaignProvider // nil for the single-call flow
	providerName   string
	providerPhone  string
	rating         float64
	callSID        string
	conversationID string
}

// HandleCompletion correlates one terminal callback to its owning session
// and commits the outcome. Safe under redelivery: the call id is consumed
// exactly once, later deliveries are dropped. kind must be one of the
// terminal outcomes reported by the carrier or engine.
func (s *Service) HandleCompletion(ctx context.Context, callID string, kind Outcome) {
	resolvedID := ""
	userID, st, ok := s.store.FindByCallID(callID)
	if !ok {
		// The carrier callback can race the dispatcher resolving the
		// sentinel. The placer's side index bridges the gap.
		if convID, found := s.placer.ConversationID(callID); found {
			resolvedID = convID
			userID, st, ok = s.store.FindByCallID(convID)
		}
	}
	s.placer.Release(callID)
	if !ok {
		s.log.CallEvent("callback_unmatched", "", callID, "")
		return
	}
	log := s.log.WithUserID(userID)

	cl, claimed := s.claimCall(st, callID)
	if !claimed && resolvedID != "" {
		cl, claimed = s.claimCall(st, resolvedID)
	}
	if !claimed {
		log.CallEvent("callback_duplicate", userID, callID, "")
		return
	}
	log.CallEvent("call_terminal_"+string(kind), userID, cl.callSID, cl.conversationID)

	if cl.provider != nil {
		s.finishCampaignCall(ctx, userID, st, cl, kind)
		return
	}
	s.finishSingleCall(ctx, userID, st, cl, kind)
}

// claimCall consumes the call id under the state's commit lock. Campaign
// providers are matched first; otherwise the id must be in the single-call
// tracking set. Returns false when nothing claimable owns the id.
func (s *Service) claimCall(st *State, callID string) (claim, bool) {
	st.Lock()
	defer st.Unlock()

	if p := st.MultiCall.providerByCallID(callID); p != nil {
		p.Consumed = true
		st.removeTrackedIDs(p.CallSID, p.ConversationID)
		return claim{
			provider:       p,
			providerName:   p.Name,
			providerPhone:  p.Phone,
			rating:         p.Rating,
			callSID:        p.CallSID,
			conversationID: p.ConversationID,
		}, true
	}

	if !st.tracksCallID(callID) {
		return claim{}, false
	}
	convID := st.LastConversationID
	if convID == "" {
		convID = callID
	}
	sid := callID
	if sid == convID {
		for _, id := range st.ActiveCallIDs {
			if id != convID && id != PendingCallSentinel {
				sid = id
				break
			}
		}
	}
	st.ReleaseDispatchSlot()
	return claim{
		providerName:   st.ProviderName,
		providerPhone:  st.ProviderPhone,
		callSID:        sid,
		conversationID: convID,
	}, true
}

// removeTrackedIDs drops the given ids from the tracking set. Caller must
// hold the state lock.
func (s *State) removeTrackedIDs(ids ...string) {
	if len(s.ActiveCallIDs) == 0 {
		return
	}
	kept := s.ActiveCallIDs[:0]
	for _, tracked := range s.ActiveCallIDs {
		drop := false
		for _, id := range ids {
			if id != "" && tracked == id {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, tracked)
		}
	}
	s.ActiveCallIDs = kept
	if len(s.ActiveCallIDs) == 0 {
		s.ActiveCallIDs = nil
	}
}

// finishSingleCall commits the outcome of the one-off call flow and tells
// the user what happened.
func (s *Service) finishSingleCall(ctx context.Context, userID string, st *State, cl claim, kind Outcome) {
	name := messages.ProviderDisplayName(cl.providerName, cl.providerPhone)
	lang := st.Language

	if kind != OutcomeCompleted {
		st.Lock()
		st.CallResults = append(st.CallResults, CallResult{
			ProviderName:   cl.providerName,
			ProviderPhone:  cl.providerPhone,
			CallSID:        cl.callSID,
			ConversationID: cl.conversationID,
			Outcome:        kind,
			At:             s.now(),
		})
		st.Status = StatusCompleted
		st.Unlock()

		s.send(ctx, userID, s.catalog.Render(lang, failureMessageKey(kind), messages.Vars{"name": name}))
		s.publish(ctx, events.CallFailed{
			BaseEvent:     events.NewBaseEvent(),
			UserID:        userID,
			ProviderName:  cl.providerName,
			ProviderPhone: cl.providerPhone,
			Outcome:       string(kind),
		})
		s.recordCall(ctx, calllog.CallRecord{
			UserID:         userID,
			ProviderName:   cl.providerName,
			ProviderPhone:  cl.providerPhone,
			CallSID:        cl.callSID,
			ConversationID: cl.conversationID,
			Outcome:        string(kind),
		})
		s.save(userID, st)
		return
	}

	sum, durationSecs := s.summarizeCall(ctx, cl, lang)

	var body string
	switch {
	case sum == nil:
		body = s.catalog.Render(lang, "call_done_no_summary", messages.Vars{"name": name})
	case sum.BookingConfirmed:
		body = s.catalog.BookingConfirmed(lang, name, sum.Date+" "+sum.Time, sum.Address, sum.Notes)
	case sum.Message != "":
		body = sum.Message
	default:
		body = s.catalog.Render(lang, "no_availability", messages.Vars{"name": name})
	}
	s.send(ctx, userID, body)

	if sum != nil && sum.BookingConfirmed {
		s.confirmBooking(ctx, userID, st, cl, sum)
	}

	st.Lock()
	st.CallResults = append(st.CallResults, CallResult{
		ProviderName:   cl.providerName,
		ProviderPhone:  cl.providerPhone,
		CallSID:        cl.callSID,
		ConversationID: cl.conversationID,
		Outcome:        OutcomeCompleted,
		Summary:        sum,
		At:             s.now(),
	})
	st.Status = StatusCompleted
	st.LastBotMessage = body
	st.Unlock()

	s.publish(ctx, events.CallCompleted{
		BaseEvent:        events.NewBaseEvent(),
		UserID:           userID,
		ProviderName:     cl.providerName,
		ProviderPhone:    cl.providerPhone,
		CallSID:          cl.callSID,
		ConversationID:   cl.conversationID,
		BookingConfirmed: sum != nil && sum.BookingConfirmed,
	})
	s.recordCall(ctx, calllog.CallRecord{
		UserID:         userID,
		ProviderName:   cl.providerName,
		ProviderPhone:  cl.providerPhone,
		CallSID:        cl.callSID,
		ConversationID: cl.conversationID,
		Outcome:        string(OutcomeCompleted),
		DurationSecs:   durationSecs,
		SummaryText:    summaryText(sum),
	})
	s.save(userID, st)
}

// finishCampaignCall commits one campaign provider's outcome and aggregates
// once the last pending call lands.
func (s *Service) finishCampaignCall(ctx context.Context, userID string, st *State, cl claim, kind Outcome) {
	lang := st.Language
	result := CampaignResult{
		ProviderName:  cl.providerName,
		ProviderPhone: cl.providerPhone,
		Rating:        cl.rating,
		Outcome:       kind,
	}

	var durationSecs int
	if kind == OutcomeCompleted {
		var sum *summary.Summary
		sum, durationSecs = s.summarizeCall(ctx, cl, lang)
		result.Summary = sum
	} else {
		s.send(ctx, userID, s.catalog.Render(lang, "campaign_provider_failed", messages.Vars{
			"name": messages.ProviderDisplayName(cl.providerName, cl.providerPhone),
		}))
	}

	st.Lock()
	campaign := st.MultiCall
	if campaign == nil {
		st.Unlock()
		return
	}
	campaign.Results = append(campaign.Results, result)
	if campaign.PendingCount > 0 {
		campaign.PendingCount--
	}
	last := campaign.PendingCount == 0
	st.Unlock()

	if kind == OutcomeCompleted {
		s.publish(ctx, events.CallCompleted{
			BaseEvent:        events.NewBaseEvent(),
			UserID:           userID,
			ProviderName:     cl.providerName,
			ProviderPhone:    cl.providerPhone,
			CallSID:          cl.callSID,
			ConversationID:   cl.conversationID,
			BookingConfirmed: result.Summary != nil && result.Summary.BookingConfirmed,
		})
	} else {
		s.publish(ctx, events.CallFailed{
			BaseEvent:     events.NewBaseEvent(),
			UserID:        userID,
			ProviderName:  cl.providerName,
			ProviderPhone: cl.providerPhone,
			Outcome:       string(kind),
		})
	}
	s.recordCall(ctx, calllog.CallRecord{
		UserID:         userID,
		ProviderName:   cl.providerName,
		ProviderPhone:  cl.providerPhone,
		CallSID:        cl.callSID,
		ConversationID: cl.conversationID,
		Outcome:        string(kind),
		DurationSecs:   durationSecs,
		SummaryText:    summaryText(result.Summary),
		Campaign:       true,
	})
	s.save(userID, st)

	if last {
		s.aggregateCampaign(ctx, userID, st)
	}
}

// aggregateCampaign ranks the finished campaign and reports it as one
// consolidated message. Exactly one caller wins the campaign here; the
// pending-count check under the state lock makes a second aggregation a
// no-op.
func (s *Service) aggregateCampaign(ctx context.Context, userID string, st *State) {
	st.Lock()
	campaign := st.MultiCall
	if campaign == nil || campaign.PendingCount != 0 {
		st.Unlock()
		return
	}
	st.MultiCall = nil
	st.ActiveCallIDs = nil
	st.Status = StatusCompleted
	results := campaign.Results
	lang := st.Language
	st.Unlock()

	ranked := Rank(results, s.now())
	body := s.renderCampaignReport(lang, ranked)
	s.send(ctx, userID, body)

	confirmed := 0
	unreachable := 0
	for _, r := range ranked {
		if r.Summary != nil && r.Summary.BookingConfirmed {
			confirmed++
		}
		if r.Outcome != OutcomeCompleted {
			unreachable++
		}
	}
	if len(ranked) > 0 {
		best := ranked[0]
		if best.Summary != nil && best.Summary.BookingConfirmed {
			s.confirmBooking(ctx, userID, st, claim{
				providerName:  best.ProviderName,
				providerPhone: best.ProviderPhone,
			}, best.Summary)
		}
	}

	st.Lock()
	st.LastBotMessage = body
	st.Unlock()
	s.publish(ctx, events.CampaignCompleted{
		BaseEvent:     events.NewBaseEvent(),
		UserID:        userID,
		ProviderCount: len(ranked),
		Confirmed:     confirmed,
		Unreachable:   unreachable,
	})
	s.save(userID, st)
}

// renderCampaignReport builds the consolidated best-first result message.
func (s *Service) renderCampaignReport(lang intent.Language, ranked []RankedResult) string {
	var b strings.Builder
	b.WriteString(s.catalog.Render(lang, "campaign_results_header", nil))
	for i, r := range ranked {
		b.WriteString("\n")
		name := messages.ProviderDisplayName(r.ProviderName, r.ProviderPhone)
		vars := messages.Vars{"name": name}
		var key string
		switch {
		case r.Outcome != OutcomeCompleted:
			key = "campaign_result_unreachable"
		case r.Summary != nil && r.Summary.BookingConfirmed:
			key = "campaign_result_booked"
			vars["datetime"] = strings.TrimSpace(r.Summary.Date + " " + r.Summary.Time)
		case r.Summary != nil && r.Summary.SlotDiscussed():
			key = "campaign_result_slots"
			vars["datetime"] = strings.TrimSpace(r.Summary.Date + " " + r.Summary.Time)
		default:
			key = "campaign_result_none"
		}
		b.WriteString(strconv.Itoa(i+1) + ". " + s.catalog.Render(lang, key, vars))
	}
	return b.String()
}

// summarizeCall waits out transcript finalization, fetches the conversation
// details and distills them. Any failure degrades to a nil summary, never
// an error surfaced to the user. The raw transcript is archived best
// effort.
func (s *Service) summarizeCall(ctx context.Context, cl claim, lang intent.Language) (*summary.Summary, int) {
	convID := cl.conversationID
	if convID == "" {
		convID = cl.callSID
	}
	if convID == "" {
		return nil, 0
	}

	s.wait(ctx, s.transcriptDelay)

	transcript, err := s.fetcher.FetchDetails(ctx, convID)
	if err != nil {
		s.log.CollaboratorError("telephony", "fetch_transcript", err)
		return nil, 0
	}
	if transcript == nil || len(transcript.Turns) == 0 {
		return nil, 0
	}

	if s.archiver != nil {
		if raw, err := json.Marshal(transcript); err == nil {
			if err := s.archiver.Archive(ctx, convID, raw); err != nil {
				s.log.CollaboratorError("transcripts", "archive", err)
			}
		}
	}

	sum, err := s.summarizer.Summarize(ctx, cl.providerName, cl.providerPhone, transcript.PlainText(), string(lang))
	if err != nil {
		s.log.CollaboratorError("summary", "summarize", err)
		return nil, transcript.DurationSeconds
	}
	return &sum, transcript.DurationSeconds
}

// confirmBooking creates the calendar event for a confirmed appointment,
// shares the link and persists the appointment.
func (s *Service) confirmBooking(ctx context.Context, userID string, st *State, cl claim, sum *summary.Summary) {
	name := messages.ProviderDisplayName(cl.providerName, cl.providerPhone)
	duration := sum.DurationMinutes
	if duration <= 0 {
		duration = 60
	}

	var link string
	if s.calendar != nil {
		var err error
		link, err = s.calendar.CreateEvent(ctx, name+" - "+st.Entities.ServiceType,
			sum.Date, sum.Time, duration, sum.Address, sum.Notes)
		if err != nil {
			s.log.CollaboratorError("calendar", "create_event", err)
		} else if link != "" {
			s.send(ctx, userID, s.catalog.Render(st.Language, "calendar_link", messages.Vars{"link": link}))
		}
	}

	s.publish(ctx, events.BookingConfirmed{
		BaseEvent:    events.NewBaseEvent(),
		UserID:       userID,
		ProviderName: name,
		Date:         sum.Date,
		Time:         sum.Time,
		Address:      sum.Address,
		Notes:        sum.Notes,
		CalendarLink: link,
	})
	if s.recorder != nil {
		err := s.recorder.RecordAppointment(ctx, calllog.AppointmentRecord{
			UserID:        userID,
			ProviderName:  cl.providerName,
			ProviderPhone: cl.providerPhone,
			ServiceType:   st.Entities.ServiceType,
			Date:          sum.Date,
			StartTime:     sum.Time,
			DurationMins:  duration,
			Address:       sum.Address,
			Notes:         sum.Notes,
			CalendarLink:  link,
		})
		if err != nil {
			s.log.CollaboratorError("calllog", "record_appointment", err)
		}
	}
}

// SweepStuckCalls fails out calls whose terminal callback never arrived.
// Returns the number of calls swept.
func (s *Service) SweepStuckCalls(ctx context.Context) int {
	cutoff := s.now().Add(-s.stuckCallTTL)
	stale := s.store.StaleCalls(cutoff)
	seen := make(map[string]struct{}, len(stale))
	swept := 0
	for _, tc := range stale {
		if _, dup := seen[tc.UserID]; dup {
			continue
		}
		seen[tc.UserID] = struct{}{}
		s.log.CallEvent("stuck_call_sweep", tc.UserID, tc.CallID, "")
		s.HandleCompletion(ctx, tc.CallID, OutcomeFailed)
		swept++
	}
	return swept
}

func failureMessageKey(kind Outcome) string {
	switch kind {
	case OutcomeBusy:
		return "call_busy"
	case OutcomeNoAnswer:
		return "call_not_answered"
	default:
		return "call_failed"
	}
}

func summaryText(sum *summary.Summary) string {
	if sum == nil {
		return ""
	}
	return sum.Message
}
