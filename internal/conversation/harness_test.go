package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"vocero/internal/calllog"
	"vocero/internal/intent"
	"vocero/internal/messages"
	"vocero/internal/places"
	"vocero/internal/summary"
	"vocero/internal/telephony"
	"vocero/platform/logger"
)

type testConfig struct {
	maxCalls int
}

func (c testConfig) GetMaxCampaignCalls() int {
	if c.maxCalls == 0 {
		return 3
	}
	return c.maxCalls
}
func (testConfig) GetCampaignDispatchInterval() time.Duration { return 0 }
func (testConfig) GetTranscriptDelay() time.Duration          { return 0 }
func (testConfig) GetDedupCapacity() int                      { return 100 }
func (testConfig) GetStuckCallTTL() time.Duration             { return 30 * time.Minute }
func (testConfig) GetStateStore() string                      { return "memory" }
func (testConfig) GetRedisURL() string                        { return "" }

type fakeExtractor struct {
	mu   sync.Mutex
	res  intent.Result
	err  error
	seen []string
}

func (f *fakeExtractor) Extract(_ context.Context, message, _ string) (intent.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, message)
	return f.res, f.err
}

type fakePlacer struct {
	mu        sync.Mutex
	dialed    []string
	vars      []telephony.DynamicVariables
	err       error
	released  []string
	convIndex map[string]string
	seq       int
}

func (f *fakePlacer) PlaceCall(_ context.Context, toNumber string, vars telephony.DynamicVariables, _ string) (telephony.PlacedCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialed = append(f.dialed, toNumber)
	f.vars = append(f.vars, vars)
	if f.err != nil {
		return telephony.PlacedCall{}, f.err
	}
	f.seq++
	return telephony.PlacedCall{
		CallSID:        fmt.Sprintf("CA%04d", f.seq),
		ConversationID: fmt.Sprintf("conv%04d", f.seq),
	}, nil
}

func (f *fakePlacer) ConversationID(callSID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.convIndex[callSID]
	return id, ok
}

func (f *fakePlacer) Release(callSID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, callSID)
}

func (f *fakePlacer) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dialed)
}

func (f *fakePlacer) varsAt(i int) telephony.DynamicVariables {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.vars) {
		return nil
	}
	return f.vars[i]
}

type fakeFetcher struct {
	transcript *telephony.Transcript
	err        error
}

func (f *fakeFetcher) FetchDetails(context.Context, string) (*telephony.Transcript, error) {
	return f.transcript, f.err
}

type fakeSummarizer struct {
	sum summary.Summary
	err error
}

func (f *fakeSummarizer) Summarize(context.Context, string, string, string, string) (summary.Summary, error) {
	return f.sum, f.err
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Send(_ context.Context, _ string, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	return "SM0001", nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeSender) contains(substr string) bool {
	for _, m := range f.messages() {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type fakeMedia struct {
	body []byte
	err  error
}

func (f *fakeMedia) FetchMedia(context.Context, string) ([]byte, error) {
	return f.body, f.err
}

type fakeSearcher struct {
	results []places.Result
	err     error
}

func (f *fakeSearcher) Search(context.Context, string, float64, float64) ([]places.Result, error) {
	return f.results, f.err
}

type fakeCalendar struct {
	mu      sync.Mutex
	link    string
	err     error
	created int
}

func (f *fakeCalendar) CreateEvent(context.Context, string, string, string, int, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return f.link, f.err
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []calllog.CallRecord
	appts []calllog.AppointmentRecord
}

func (f *fakeRecorder) RecordCall(_ context.Context, rec calllog.CallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rec)
	return nil
}

func (f *fakeRecorder) RecordAppointment(_ context.Context, rec calllog.AppointmentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appts = append(f.appts, rec)
	return nil
}

type fixture struct {
	svc        *Service
	store      *MemoryStore
	extractor  *fakeExtractor
	placer     *fakePlacer
	fetcher    *fakeFetcher
	summarizer *fakeSummarizer
	sender     *fakeSender
	media      *fakeMedia
	searcher   *fakeSearcher
	calendar   *fakeCalendar
	recorder   *fakeRecorder
}

func newFixture(cfg testConfig) *fixture {
	f := &fixture{
		store:      NewMemoryStore(),
		extractor:  &fakeExtractor{},
		placer:     &fakePlacer{convIndex: make(map[string]string)},
		fetcher:    &fakeFetcher{},
		summarizer: &fakeSummarizer{},
		sender:     &fakeSender{},
		media:      &fakeMedia{},
		searcher:   &fakeSearcher{},
		calendar:   &fakeCalendar{},
		recorder:   &fakeRecorder{},
	}
	log := logger.New("development")
	f.svc = New(Deps{
		Store:      f.store,
		Guard:      NewGuard(cfg.GetDedupCapacity()),
		Extractor:  f.extractor,
		Placer:     f.placer,
		Fetcher:    f.fetcher,
		Summarizer: f.summarizer,
		Sender:     f.sender,
		Media:      f.media,
		Search:     f.searcher,
		Calendar:   f.calendar,
		Recorder:   f.recorder,
		Catalog:    messages.MustLoad(),
	}, cfg, log)
	return f
}

const testUser = "+5491100000001"
