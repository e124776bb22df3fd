package conversation

import (
	"context"
	"testing"

	"vocero/internal/intent"
	"vocero/internal/places"
)

func TestHandleMessageArmsAndDialsOnce(t *testing.T) {
	f := newFixture(testConfig{})
	f.extractor.res = intent.Result{
		Intent:   intent.TypeCallNumber,
		Language: intent.LanguageES,
		Entities: intent.Entities{
			PhoneNumber: "+5491155550000",
			ServiceType: "plomero",
		},
		Reply: "Dale, lo llamo",
	}

	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "llama al plomero", MessageSID: "SM1"})

	if got := f.placer.dialCount(); got != 1 {
		t.Fatalf("expected 1 dial, got %d", got)
	}
	st := f.store.Get(testUser)
	if st.Status != StatusCalling {
		t.Fatalf("expected status %q, got %q", StatusCalling, st.Status)
	}
	if st.LastConversationID == "" {
		t.Fatal("expected conversation id recorded after placement")
	}
	for _, id := range st.ActiveCallIDs {
		if id == PendingCallSentinel {
			t.Fatal("sentinel must not survive a successful placement")
		}
	}
	if !f.sender.contains("Llamando") {
		t.Fatalf("expected calling notification, got %v", f.sender.messages())
	}
	if f.sender.contains("Dale, lo llamo") {
		t.Fatal("extractor reply must be suppressed when the dispatch message is sent")
	}
}

func TestDialForwardsContextInDynamicVariables(t *testing.T) {
	f := newFixture(testConfig{})
	f.extractor.res = intent.Result{
		Intent:   intent.TypeCallNumber,
		Language: intent.LanguageES,
		Entities: intent.Entities{
			PhoneNumber:    "+5491155550000",
			ServiceType:    "corte de pelo",
			DatePreference: "manana",
			TimePreference: "por la tarde",
		},
	}

	f.svc.HandleMessage(context.Background(), InboundMessage{
		UserID:      testUser,
		Body:        "pedime turno en la peluqueria para manana a la tarde",
		MessageSID:  "SM1",
		ProfileName: "Ana",
	})

	if got := f.placer.dialCount(); got != 1 {
		t.Fatalf("expected 1 dial, got %d", got)
	}
	vars := f.placer.varsAt(0)
	if vars["service_type"] != "corte de pelo" {
		t.Fatalf("service_type = %q, want the extracted service", vars["service_type"])
	}
	if vars["date_preference"] != "manana" || vars["time_preference"] != "por la tarde" {
		t.Fatalf("schedule preferences not forwarded: %v", vars)
	}
	if vars["user_name"] != "Ana" {
		t.Fatalf("user_name = %q", vars["user_name"])
	}
	if vars["language"] != "es" {
		t.Fatalf("language = %q", vars["language"])
	}
	if _, ok := vars["special_requests"]; ok {
		t.Fatal("empty special_requests must be omitted")
	}
}

func TestHandleMessageMissingServiceParks(t *testing.T) {
	f := newFixture(testConfig{})
	f.extractor.res = intent.Result{
		Intent:   intent.TypeCallNumber,
		Entities: intent.Entities{PhoneNumber: "+5491155550000"},
		Reply:    "Que necesitas que le pida?",
	}

	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "llamalo", MessageSID: "SM1"})

	if f.placer.dialCount() != 0 {
		t.Fatal("must not dial without a known service")
	}
	st := f.store.Get(testUser)
	if st.Status != StatusAwaitingProvider {
		t.Fatalf("expected status %q, got %q", StatusAwaitingProvider, st.Status)
	}
	if !f.sender.contains("Que necesitas") {
		t.Fatal("extractor reply should be forwarded while parked")
	}
}

func TestRepeatedRequestDoesNotRedialInFlightCall(t *testing.T) {
	f := newFixture(testConfig{})
	f.extractor.res = intent.Result{
		Intent: intent.TypeCallNumber,
		Entities: intent.Entities{
			PhoneNumber: "+5491155550000",
			ServiceType: "plomero",
		},
	}

	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "llama", MessageSID: "SM1"})
	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "llama", MessageSID: "SM2"})

	if got := f.placer.dialCount(); got != 1 {
		t.Fatalf("expected 1 dial despite repeated request, got %d", got)
	}
}

func TestCompletedSessionRollsOver(t *testing.T) {
	f := newFixture(testConfig{})
	st := f.store.GetOrCreate(testUser)
	st.Status = StatusCompleted
	st.LastConversationID = "conv-old"
	st.ProviderPhone = "+5491155550000"
	st.Language = intent.LanguageEN

	f.extractor.res = intent.Result{Intent: intent.TypeHelp, Reply: "hi"}
	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "hola", MessageSID: "SM1"})

	fresh := f.store.Get(testUser)
	if fresh.Status == StatusCompleted {
		t.Fatal("expected a fresh session after completion")
	}
	if fresh.ProviderPhone != "" {
		t.Fatal("provider slots must not survive the rollover")
	}
	if fresh.LastConversationID != "conv-old" {
		t.Fatalf("conversation reference must survive the rollover, got %q", fresh.LastConversationID)
	}
	if fresh.Language != intent.LanguageEN {
		t.Fatalf("language must survive the rollover, got %q", fresh.Language)
	}
}

func TestSelectionDialsChosenProvider(t *testing.T) {
	f := newFixture(testConfig{})
	st := f.store.GetOrCreate(testUser)
	st.Status = StatusAwaitingProvider
	st.Entities.ServiceType = "dentista"
	st.SearchResults = []places.Result{
		{Name: "Clinica Norte", Phone: "+5491155550001"},
		{Name: "Clinica Sur", Phone: "+5491155550002"},
	}

	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "2", MessageSID: "SM1"})

	if got := f.placer.dialCount(); got != 1 {
		t.Fatalf("expected 1 dial, got %d", got)
	}
	if f.placer.dialed[0] != "+5491155550002" {
		t.Fatalf("expected second provider dialed, got %s", f.placer.dialed[0])
	}
	updated := f.store.Get(testUser)
	if len(updated.SearchResults) != 0 {
		t.Fatal("search results must be cleared once acted on")
	}
	if len(f.extractor.seen) != 0 {
		t.Fatal("a valid selection must not reach the extractor")
	}
}

func TestSelectionOutOfRangeKeepsResults(t *testing.T) {
	f := newFixture(testConfig{})
	st := f.store.GetOrCreate(testUser)
	st.Status = StatusAwaitingProvider
	st.SearchResults = []places.Result{{Name: "Clinica Norte", Phone: "+5491155550001"}}

	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "5", MessageSID: "SM1"})

	if f.placer.dialCount() != 0 {
		t.Fatal("out-of-range selection must not dial")
	}
	if !f.sender.contains("no esta en la lista") {
		t.Fatalf("expected corrective prompt, got %v", f.sender.messages())
	}
	if len(f.store.Get(testUser).SearchResults) != 1 {
		t.Fatal("results must stay open for another attempt")
	}
}

func TestSelectionAllStartsCampaign(t *testing.T) {
	f := newFixture(testConfig{maxCalls: 2})
	st := f.store.GetOrCreate(testUser)
	st.Status = StatusAwaitingProvider
	st.SearchResults = []places.Result{
		{Name: "A", Phone: "+5491155550001"},
		{Name: "B", Phone: "+5491155550002"},
		{Name: "C", Phone: "+5491155550003"},
	}

	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "todos", MessageSID: "SM1"})

	if got := f.placer.dialCount(); got != 2 {
		t.Fatalf("campaign must cap at configured size, dialed %d", got)
	}
	updated := f.store.Get(testUser)
	if updated.MultiCall == nil {
		t.Fatal("expected an open campaign")
	}
	if updated.MultiCall.PendingCount != 2 {
		t.Fatalf("expected 2 pending calls, got %d", updated.MultiCall.PendingCount)
	}
}

func TestExtractorFailureDegradesGracefully(t *testing.T) {
	f := newFixture(testConfig{})
	f.extractor.err = context.DeadlineExceeded

	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "hola", MessageSID: "SM1"})

	if f.placer.dialCount() != 0 {
		t.Fatal("no dial on extractor failure")
	}
	if !f.sender.contains("entender") {
		t.Fatalf("expected fallback message, got %v", f.sender.messages())
	}
}

func TestCancelLeavesRunningCampaign(t *testing.T) {
	f := newFixture(testConfig{})
	st := f.store.GetOrCreate(testUser)
	st.Status = StatusCalling
	st.ProviderPhone = "+5491155550000"
	st.MultiCall = &Campaign{
		Providers:    []*CampaignProvider{{Name: "A", Phone: "+5491155550001", CallSID: "CA1"}},
		PendingCount: 1,
	}

	f.extractor.res = intent.Result{Intent: intent.TypeCancel, Reply: "Listo, cancelo."}
	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "cancela", MessageSID: "SM1"})

	updated := f.store.Get(testUser)
	if updated.Status != StatusIdle {
		t.Fatalf("expected idle after cancel, got %q", updated.Status)
	}
	if updated.ProviderPhone != "" {
		t.Fatal("provider slots must be cleared on cancel")
	}
	if updated.MultiCall == nil {
		t.Fatal("a dispatched campaign must survive cancel")
	}
	if !f.sender.contains("llamadas en curso") {
		t.Fatalf("expected pending-results acknowledgement, got %v", f.sender.messages())
	}
}

func TestSharedContactFeedsProviderSlots(t *testing.T) {
	f := newFixture(testConfig{})
	f.media.body = []byte("BEGIN:VCARD\nVERSION:3.0\nFN:Dr Lopez\nTEL;TYPE=CELL:+54 9 11 5555-0000\nEND:VCARD")
	f.extractor.res = intent.Result{
		Intent:   intent.TypeCallNumber,
		Entities: intent.Entities{ServiceType: "turno dental"},
	}

	f.svc.HandleMessage(context.Background(), InboundMessage{
		UserID:           testUser,
		Body:             "turno con este",
		MessageSID:       "SM1",
		MediaURL:         "https://api.example.com/media/1",
		MediaContentType: "text/vcard",
	})

	if got := f.placer.dialCount(); got != 1 {
		t.Fatalf("expected contact card to arm a call, got %d dials", got)
	}
	st := f.store.Get(testUser)
	if st.ProviderName != "Dr Lopez" {
		t.Fatalf("expected provider name from the card, got %q", st.ProviderName)
	}
}
