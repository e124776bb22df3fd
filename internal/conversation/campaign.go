package conversation

import (
	"context"
	"strconv"

	"vocero/internal/calllog"
	"vocero/internal/events"
	"vocero/internal/intent"
	"vocero/internal/messages"
	"vocero/platform/phone"
)

// TriggerMultiCall fans the current request out to the top search results
// with a reachable number, capped at the configured batch size. Dispatch is
// sequential and rate limited; each placement failure is consumed
// immediately so the campaign can never hang on a call that was never
// made.
func (s *Service) TriggerMultiCall(ctx context.Context, userID string, st *State) {
	st.Lock()
	if st.MultiCall != nil {
		st.Unlock()
		return
	}
	var providers []*CampaignProvider
	for _, r := range st.SearchResults {
		if r.Phone == "" {
			continue
		}
		providers = append(providers, &CampaignProvider{
			Name:        r.Name,
			Phone:       phone.NormalizeE164(r.Phone),
			Rating:      r.Rating,
			RatingCount: r.RatingCount,
		})
		if len(providers) == s.maxCampaignCalls {
			break
		}
	}
	if len(providers) == 0 {
		lang := st.Language
		st.Unlock()
		s.send(ctx, userID, s.catalog.Render(lang, "campaign_no_candidates", nil))
		return
	}
	campaign := &Campaign{
		Providers:    providers,
		PendingCount: len(providers),
		StartedAt:    s.now(),
	}
	st.MultiCall = campaign
	st.SearchResults = nil
	st.Status = StatusCalling
	lang := st.Language
	st.Unlock()
	s.save(userID, st)

	s.send(ctx, userID, s.catalog.Render(lang, "campaign_started", messages.Vars{
		"count": strconv.Itoa(len(providers)),
	}))

	for i, p := range providers {
		if i > 0 {
			if err := s.limiter.Wait(ctx); err != nil {
				s.failCampaignProvider(ctx, userID, st, campaign, p, lang)
				continue
			}
		}
		name := messages.ProviderDisplayName(p.Name, p.Phone)
		placed, err := s.placer.PlaceCall(ctx, p.Phone, s.dynamicVars(st, name), string(lang))
		if err != nil || (placed.CallSID == "" && placed.ConversationID == "") {
			if err != nil {
				s.log.CollaboratorError("telephony", "place_call", err)
			}
			s.failCampaignProvider(ctx, userID, st, campaign, p, lang)
			continue
		}

		st.Lock()
		p.CallSID = placed.CallSID
		p.ConversationID = placed.ConversationID
		if placed.CallSID != "" {
			st.ActiveCallIDs = append(st.ActiveCallIDs, placed.CallSID)
		}
		if placed.ConversationID != "" {
			st.ActiveCallIDs = append(st.ActiveCallIDs, placed.ConversationID)
		}
		st.Unlock()
		s.save(userID, st)

		s.log.CallEvent("campaign_call_placed", userID, placed.CallSID, placed.ConversationID)
		s.publish(ctx, events.CallPlaced{
			BaseEvent:      events.NewBaseEvent(),
			UserID:         userID,
			ProviderName:   p.Name,
			ProviderPhone:  p.Phone,
			CallSID:        placed.CallSID,
			ConversationID: placed.ConversationID,
			CampaignCall:   true,
		})
	}
}

// failCampaignProvider consumes a provider whose call was never placed.
// When it was the last pending one the campaign aggregates right here,
// since no callback will ever arrive for it.
func (s *Service) failCampaignProvider(ctx context.Context, userID string, st *State, campaign *Campaign, p *CampaignProvider, lang intent.Language) {
	st.Lock()
	p.Consumed = true
	campaign.Results = append(campaign.Results, CampaignResult{
		ProviderName:  p.Name,
		ProviderPhone: p.Phone,
		Rating:        p.Rating,
		Outcome:       OutcomeNotReached,
	})
	if campaign.PendingCount > 0 {
		campaign.PendingCount--
	}
	last := campaign.PendingCount == 0
	st.Unlock()

	s.send(ctx, userID, s.catalog.Render(lang, "campaign_provider_failed", messages.Vars{
		"name": messages.ProviderDisplayName(p.Name, p.Phone),
	}))
	s.publish(ctx, events.CallFailed{
		BaseEvent:     events.NewBaseEvent(),
		UserID:        userID,
		ProviderName:  p.Name,
		ProviderPhone: p.Phone,
		Outcome:       string(OutcomeNotReached),
	})
	s.recordCall(ctx, calllog.CallRecord{
		UserID:        userID,
		ProviderName:  p.Name,
		ProviderPhone: p.Phone,
		Outcome:       string(OutcomeNotReached),
		Campaign:      true,
	})
	s.save(userID, st)
	if last {
		s.aggregateCampaign(ctx, userID, st)
	}
}
