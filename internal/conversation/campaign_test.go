package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"vocero/internal/places"
)

func TestCampaignSkipsProvidersWithoutPhone(t *testing.T) {
	f := newFixture(testConfig{maxCalls: 3})
	st := f.store.GetOrCreate(testUser)
	st.Status = StatusAwaitingProvider
	st.SearchResults = []places.Result{
		{Name: "Alfa", Phone: "+5491155550001"},
		{Name: "SinTel"},
		{Name: "Beta", Phone: "+5491155550002"},
	}

	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "todos", MessageSID: "SM1"})

	if got := f.placer.dialCount(); got != 2 {
		t.Fatalf("expected 2 dials, got %d", got)
	}
	campaign := f.store.Get(testUser).MultiCall
	if campaign == nil || len(campaign.Providers) != 2 {
		t.Fatalf("expected 2 campaign providers, got %+v", campaign)
	}
}

func TestCampaignWithNoCallableCandidates(t *testing.T) {
	f := newFixture(testConfig{})
	st := f.store.GetOrCreate(testUser)
	st.Status = StatusAwaitingProvider
	st.SearchResults = []places.Result{{Name: "SinTel"}}

	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "todos", MessageSID: "SM1"})

	if f.placer.dialCount() != 0 {
		t.Fatal("no dials without callable candidates")
	}
	if f.store.Get(testUser).MultiCall != nil {
		t.Fatal("no campaign should be opened")
	}
	if !f.sender.contains("telefono") {
		t.Fatalf("expected no-candidates message, got %v", f.sender.messages())
	}
}

func TestCampaignAllPlacementsFailAggregatesImmediately(t *testing.T) {
	f := newFixture(testConfig{maxCalls: 2})
	f.placer.err = errors.New("carrier down")
	st := f.store.GetOrCreate(testUser)
	st.Status = StatusAwaitingProvider
	st.SearchResults = []places.Result{
		{Name: "Alfa", Phone: "+5491155550001"},
		{Name: "Beta", Phone: "+5491155550002"},
	}

	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "todos", MessageSID: "SM1"})

	updated := f.store.Get(testUser)
	if updated.MultiCall != nil {
		t.Fatal("campaign must aggregate once every placement failed")
	}
	if updated.Status != StatusCompleted {
		t.Fatalf("expected completed session, got %q", updated.Status)
	}
	reports := 0
	for _, m := range f.sender.messages() {
		if strings.Contains(m, "lo que consegui") {
			reports++
		}
	}
	if reports != 1 {
		t.Fatalf("expected exactly one consolidated report, got %d", reports)
	}
	if len(f.recorder.calls) != 2 {
		t.Fatalf("expected both placement failures recorded, got %d", len(f.recorder.calls))
	}
	for _, rec := range f.recorder.calls {
		if rec.Outcome != string(OutcomeNotReached) || !rec.Campaign {
			t.Fatalf("unexpected record %+v", rec)
		}
	}
}

func TestCampaignPartialPlacementFailure(t *testing.T) {
	f := newFixture(testConfig{maxCalls: 2})
	st := f.store.GetOrCreate(testUser)
	st.Status = StatusAwaitingProvider
	st.SearchResults = []places.Result{
		{Name: "Alfa", Phone: "+5491155550001"},
		{Name: "Beta", Phone: "+5491155550002"},
	}

	f.svc.HandleMessage(context.Background(), InboundMessage{UserID: testUser, Body: "todos", MessageSID: "SM1"})

	campaign := f.store.Get(testUser).MultiCall
	if campaign == nil {
		t.Fatal("expected an open campaign")
	}
	if campaign.PendingCount != 2 {
		t.Fatalf("expected 2 pending, got %d", campaign.PendingCount)
	}

	// One callback lands; the campaign stays open for the other.
	f.fetcher.transcript = nil
	f.svc.HandleCompletion(context.Background(), "CA0001", OutcomeCompleted)

	campaign = f.store.Get(testUser).MultiCall
	if campaign == nil || campaign.PendingCount != 1 {
		t.Fatalf("expected campaign to stay open with 1 pending, got %+v", campaign)
	}
}
