package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"vocero/platform/logger"
)

func TestMemoryStoreIndexFollowsTrackedIDs(t *testing.T) {
	m := NewMemoryStore()
	st := m.GetOrCreate("+5491100000001")
	st.ActiveCallIDs = []string{"CA1", "conv1"}
	if err := m.Save("+5491100000001", st); err != nil {
		t.Fatalf("save: %v", err)
	}

	for _, id := range []string{"CA1", "conv1"} {
		userID, got, ok := m.FindByCallID(id)
		if !ok || userID != "+5491100000001" || got != st {
			t.Fatalf("lookup by %s failed", id)
		}
	}

	st.ActiveCallIDs = nil
	if err := m.Save("+5491100000001", st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, _, ok := m.FindByCallID("CA1"); ok {
		t.Fatal("index must drop released ids")
	}
}

func TestMemoryStoreSentinelIsNeverIndexed(t *testing.T) {
	m := NewMemoryStore()
	st := m.GetOrCreate("u")
	st.ClaimDispatchSlot()
	if err := m.Save("u", st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, _, ok := m.FindByCallID(PendingCallSentinel); ok {
		t.Fatal("the pending sentinel must never be a lookup key")
	}
}

func TestMemoryStoreIndexesCampaignIDs(t *testing.T) {
	m := NewMemoryStore()
	st := m.GetOrCreate("u")
	st.MultiCall = &Campaign{
		Providers: []*CampaignProvider{
			{Name: "A", Phone: "+1", CallSID: "CA1", ConversationID: "conv1"},
			{Name: "B", Phone: "+2", CallSID: "CA2", Consumed: true},
		},
		PendingCount: 1,
	}
	if err := m.Save("u", st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, _, ok := m.FindByCallID("conv1"); !ok {
		t.Fatal("campaign conversation ids must be indexed")
	}
	if _, _, ok := m.FindByCallID("CA2"); ok {
		t.Fatal("consumed providers must not be indexed")
	}
}

func TestMemoryStoreReset(t *testing.T) {
	m := NewMemoryStore()
	st := m.GetOrCreate("u")
	st.ActiveCallIDs = []string{"CA1"}
	if err := m.Save("u", st); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := m.Reset("u")
	if fresh == st {
		t.Fatal("reset must produce a new state")
	}
	if fresh.Status != StatusIdle {
		t.Fatalf("fresh state must be idle, got %q", fresh.Status)
	}
	if _, _, ok := m.FindByCallID("CA1"); ok {
		t.Fatal("reset must drop the user's index entries")
	}
}

func TestMemoryStoreStaleCalls(t *testing.T) {
	m := NewMemoryStore()
	stale := m.GetOrCreate("old")
	stale.ActiveCallIDs = []string{"CA1"}
	stale.UpdatedAt = time.Now().Add(-time.Hour)

	fresh := m.GetOrCreate("new")
	fresh.ActiveCallIDs = []string{"CA2"}
	fresh.UpdatedAt = time.Now()

	pending := m.GetOrCreate("pending")
	pending.ActiveCallIDs = []string{PendingCallSentinel}
	pending.UpdatedAt = time.Now().Add(-time.Hour)

	got := m.StaleCalls(time.Now().Add(-30 * time.Minute))
	if len(got) != 1 {
		t.Fatalf("expected 1 stale call, got %+v", got)
	}
	if got[0].UserID != "old" || got[0].CallID != "CA1" {
		t.Fatalf("unexpected stale call %+v", got[0])
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	log := logger.New("development")
	ctx := context.Background()

	store, err := NewRedisStore(ctx, "redis://"+srv.Addr(), log)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	st := store.GetOrCreate("u")
	st.Status = StatusCalling
	st.ProviderPhone = "+5491155550000"
	st.ActiveCallIDs = []string{"CA1", "conv1"}
	st.LastConversationID = "conv1"
	if err := store.Save("u", st); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A second store instance simulates a restarted process.
	reborn, err := NewRedisStore(ctx, "redis://"+srv.Addr(), log)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer reborn.Close()

	loaded := reborn.Get("u")
	if loaded == nil {
		t.Fatal("state must survive a restart")
	}
	if loaded.Status != StatusCalling || loaded.LastConversationID != "conv1" {
		t.Fatalf("unexpected state after reload: %+v", loaded)
	}

	userID, byCall, ok := reborn.FindByCallID("CA1")
	if !ok || userID != "u" || byCall == nil {
		t.Fatal("call-id index must survive a restart")
	}
}

func TestRedisStoreResetDropsPersistedState(t *testing.T) {
	srv := miniredis.RunT(t)
	log := logger.New("development")
	ctx := context.Background()

	store, err := NewRedisStore(ctx, "redis://"+srv.Addr(), log)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	st := store.GetOrCreate("u")
	st.Status = StatusCompleted
	if err := store.Save("u", st); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := store.Reset("u")
	if fresh.Status != StatusIdle {
		t.Fatalf("fresh state must be idle, got %q", fresh.Status)
	}
	if srv.Exists(redisStateKeyPrefix + "u") {
		t.Fatal("reset must delete the persisted state")
	}
}
