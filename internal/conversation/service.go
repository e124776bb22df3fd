package conversation

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"vocero/internal/calllog"
	"vocero/internal/events"
	"vocero/internal/messages"
	"vocero/internal/telephony"
	"vocero/platform/config"
	"vocero/platform/logger"
)

// Deps bundles the collaborators the orchestration core drives. Recorder,
// Archiver, Calendar and Search may be nil-disabled implementations.
type Deps struct {
	Store      Store
	Guard      *Guard
	Extractor  IntentExtractor
	Placer     CallPlacer
	Fetcher    TranscriptFetcher
	Summarizer CallSummarizer
	Sender     MessageSender
	Media      MediaFetcher
	Search     ProviderSearcher
	Calendar   CalendarBuilder
	Recorder   CallRecorder
	Archiver   TranscriptArchiver
	Bus        events.Bus
	Catalog    *messages.Catalog
}

// Service is the conversation orchestrator. One instance serves all users;
// per-user serialization lives in the Guard, callback commits in each
// State's own lock.
type Service struct {
	store      Store
	guard      *Guard
	extractor  IntentExtractor
	placer     CallPlacer
	fetcher    TranscriptFetcher
	summarizer CallSummarizer
	sender     MessageSender
	media      MediaFetcher
	search     ProviderSearcher
	calendar   CalendarBuilder
	recorder   CallRecorder
	archiver   TranscriptArchiver
	bus        events.Bus
	catalog    *messages.Catalog
	log        *logger.Logger

	limiter          *rate.Limiter
	maxCampaignCalls int
	transcriptDelay  time.Duration
	stuckCallTTL     time.Duration

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration)
}

// New builds the orchestrator from its collaborators and tuning config.
func New(deps Deps, cfg config.ConversationConfig, log *logger.Logger) *Service {
	interval := cfg.GetCampaignDispatchInterval()
	limiter := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &Service{
		store:            deps.Store,
		guard:            deps.Guard,
		extractor:        deps.Extractor,
		placer:           deps.Placer,
		fetcher:          deps.Fetcher,
		summarizer:       deps.Summarizer,
		sender:           deps.Sender,
		media:            deps.Media,
		search:           deps.Search,
		calendar:         deps.Calendar,
		recorder:         deps.Recorder,
		archiver:         deps.Archiver,
		bus:              deps.Bus,
		catalog:          deps.Catalog,
		log:              log,
		limiter:          limiter,
		maxCampaignCalls: cfg.GetMaxCampaignCalls(),
		transcriptDelay:  cfg.GetTranscriptDelay(),
		stuckCallTTL:     cfg.GetStuckCallTTL(),
		now:              time.Now,
		wait:             sleepCtx,
	}
}

// Guard exposes the dedup and locking guard to the transport layer.
func (s *Service) Guard() *Guard { return s.guard }

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// send delivers a chat message and logs delivery failures without
// propagating them; an undeliverable notification never aborts call flow.
func (s *Service) send(ctx context.Context, userID, body string) {
	if body == "" {
		return
	}
	if _, err := s.sender.Send(ctx, userID, body); err != nil {
		s.log.CollaboratorError("messenger", "send", err)
	}
}

func (s *Service) save(userID string, st *State) {
	st.Lock()
	st.UpdatedAt = s.now()
	st.Unlock()
	if err := s.store.Save(userID, st); err != nil {
		s.log.DatabaseError("state_save", err)
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, ev)
}

func (s *Service) recordCall(ctx context.Context, rec calllog.CallRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordCall(ctx, rec); err != nil {
		s.log.CollaboratorError("calllog", "record_call", err)
	}
}

// dynamicVars assembles the variable bundle handed to the voice agent at
// call time.
func (s *Service) dynamicVars(st *State, providerName string) telephony.DynamicVariables {
	vars := telephony.DynamicVariables{
		"language":      string(st.Language),
		"provider_name": providerName,
	}
	if st.UserName != "" {
		vars["user_name"] = st.UserName
	}
	if st.Entities.ServiceType != "" {
		vars["service_type"] = st.Entities.ServiceType
	}
	if st.Entities.DatePreference != "" {
		vars["date_preference"] = st.Entities.DatePreference
	}
	if st.Entities.TimePreference != "" {
		vars["time_preference"] = st.Entities.TimePreference
	}
	if st.Entities.SpecialRequests != "" {
		vars["special_requests"] = st.Entities.SpecialRequests
	}
	return vars
}
