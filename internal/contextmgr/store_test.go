package contextmgr

import (
	"database/sql"
	"testing"
	"time"

	"github.com/jlindqvist/braid/internal/convo"
	"github.com/jlindqvist/braid/internal/db"
	"github.com/jlindqvist/braid/internal/errors"
	"github.com/jlindqvist/braid/internal/turn"
)

func openStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database), database
}

func seedSession(t *testing.T, database *sql.DB, id string) convo.OwnerRef {
	t.Helper()
	now := time.Now().Unix()
	if err := db.InsertSession(database, &convo.Session{ID: id, Title: "test", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}
	return convo.OwnerRef{Kind: convo.OwnerSession, ID: id}
}

func TestStoreCreate_RequiresOwnerRecord(t *testing.T) {
	store, _ := openStore(t)

	_, err := store.Create(convo.OwnerRef{Kind: convo.OwnerSession, ID: "ghost"}, 1000)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Create error = %v, want NOT_FOUND for missing owner", err)
	}
}

func TestStoreCreate_RejectsNonPositiveBudget(t *testing.T) {
	store, database := openStore(t)
	owner := seedSession(t, database, "s1")

	_, err := store.Create(owner, 0)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Create error = %v, want INVALID_REQUEST", err)
	}
}

func TestStoreCreate_SecondCreateReturnsExisting(t *testing.T) {
	store, database := openStore(t)
	owner := seedSession(t, database, "s1")

	first, err := store.Create(owner, 1000)
	if err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	second, err := store.Create(owner, 1000)
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second Create returned %q, want existing %q", second.ID, first.ID)
	}

	all, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len(List()) = %d, want 1", len(all))
	}
}

func TestStoreSaveLoad_RoundTrip(t *testing.T) {
	store, database := openStore(t)
	owner := seedSession(t, database, "s1")

	c, err := store.Create(owner, 500)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	c.Turns = []turn.Turn{
		{ID: "a", Role: turn.RoleUser, Content: "hello", TokenCount: 4},
		{ID: "b", Role: turn.RoleAssistant, Content: "hi", TokenCount: 3},
	}
	c.TotalTokens = 7
	c.SummaryText = "opening pleasantries"
	if err := store.Save(c); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, found, err := store.Load(owner)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !found {
		t.Fatal("Load found = false, want true")
	}
	if got.TotalTokens != 7 || len(got.Turns) != 2 || got.SummaryText != "opening pleasantries" {
		t.Errorf("round trip lost state: %+v", got)
	}

	byID, err := store.LoadByID(c.ID)
	if err != nil {
		t.Fatalf("LoadByID failed: %v", err)
	}
	if byID.Owner != owner {
		t.Errorf("Owner = %v, want %v", byID.Owner, owner)
	}
}

func TestStoreRecordOwnerUsage(t *testing.T) {
	store, database := openStore(t)
	owner := seedSession(t, database, "s1")

	c, err := store.Create(owner, 200)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	c.TotalTokens = 50
	c.SummaryText = "halfway recap"
	if err := store.Save(c); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.RecordOwnerUsage(c, 0.9); err != nil {
		t.Fatalf("RecordOwnerUsage failed: %v", err)
	}

	s, err := db.GetSession(database, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if s.LastTotalTokens != 50 {
		t.Errorf("LastTotalTokens = %d, want 50", s.LastTotalTokens)
	}
	if s.LastPercentUsed != 25.0 {
		t.Errorf("LastPercentUsed = %v, want 25.0", s.LastPercentUsed)
	}
	if s.LastSummary == nil || *s.LastSummary != "halfway recap" {
		t.Errorf("LastSummary = %v, want %q", s.LastSummary, "halfway recap")
	}
}
